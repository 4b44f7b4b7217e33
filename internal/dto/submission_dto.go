package dto

import (
	"time"

	"github.com/noah-isme/classboard-go-api/internal/models"
)

// SubmitLinkRequest carries a pasted-link submission from a student.
type SubmitLinkRequest struct {
	AssignmentID uint   `json:"assignment_id" validate:"required,gt=0"`
	StudentID    uint   `json:"student_id" validate:"required,gt=0"`
	Link         string `json:"link" validate:"required,url"`
}

// RecordAttemptRequest appends one exercise run to a submission's history.
type RecordAttemptRequest struct {
	AssignmentID      uint                   `json:"assignment_id" validate:"required,gt=0"`
	StudentID         uint                   `json:"student_id" validate:"required,gt=0"`
	Score             float64                `json:"score" validate:"gte=0"`
	Status            string                 `json:"status" validate:"required,oneof=completed incomplete"`
	CompletedArtifact string                 `json:"completed_artifact"`
	DetectedErrors    []DetectedError        `json:"detected_errors" validate:"omitempty,dive"`
	CategoryPayload   map[string]interface{} `json:"category_payload"`
	TimeSpentSeconds  int                    `json:"time_spent_seconds" validate:"gte=0"`
	OccurredAt        *time.Time             `json:"occurred_at"`
}

// DetectedError is one structured error descriptor reported by the
// exercise surface.
type DetectedError struct {
	Code     string `json:"code" validate:"required"`
	Message  string `json:"message"`
	Position int    `json:"position" validate:"gte=0"`
}

// GradeRequest carries a teacher's grading decision.
type GradeRequest struct {
	Grade           float64 `json:"grade" validate:"gte=0"`
	Feedback        string  `json:"feedback"`
	IsRedoRequired  bool    `json:"is_redo_required"`
	GradedDriveLink string  `json:"graded_drive_link" validate:"omitempty,url"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	AssignmentID *uint   `query:"assignment_id"`
	StudentID    *uint   `query:"student_id"`
	Status       *string `query:"status" validate:"omitempty,oneof=submitted graded"`
}

// AttemptResponse serializes one immutable exercise run.
type AttemptResponse struct {
	AttemptIndex      int                    `json:"attempt_index"`
	Score             float64                `json:"score"`
	Status            string                 `json:"status"`
	CompletedArtifact string                 `json:"completed_artifact"`
	DetectedErrors    []DetectedError        `json:"detected_errors"`
	CategoryPayload   map[string]interface{} `json:"category_payload"`
	TimeSpentSeconds  int                    `json:"time_spent_seconds"`
	Late              bool                   `json:"late"`
	CreatedAt         time.Time              `json:"created_at"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID               uint              `json:"id"`
	AssignmentID     uint              `json:"assignment_id"`
	StudentID        uint              `json:"student_id"`
	Status           string            `json:"status"`
	IsRedoRequired   bool              `json:"is_redo_required"`
	Grade            *float64          `json:"grade"`
	AISuggestedGrade *float64          `json:"ai_suggested_grade"`
	TeacherFeedback  string            `json:"teacher_feedback"`
	GradedDriveLink  string            `json:"graded_drive_link"`
	SubmittedLink    string            `json:"submitted_link"`
	SubmittedAt      time.Time         `json:"submitted_at"`
	Attempts         []AttemptResponse `json:"attempts"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Assignment       AssignmentLite    `json:"assignment"`
	Student          StudentLite       `json:"student"`
}

// AssignmentLite summarizes an assignment in submission responses.
type AssignmentLite struct {
	ID       uint      `json:"id"`
	ClassID  uint      `json:"class_id"`
	Title    string    `json:"title"`
	Category string    `json:"category"`
	DueDate  time.Time `json:"due_date"`
	MaxScore float64   `json:"max_score"`
}

// StudentLite summarizes a student without exposing full profile data.
type StudentLite struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:               model.ID,
		AssignmentID:     model.AssignmentID,
		StudentID:        model.StudentID,
		Status:           model.Status,
		IsRedoRequired:   model.IsRedoRequired,
		Grade:            model.Grade,
		AISuggestedGrade: model.AISuggestedGrade,
		TeacherFeedback:  model.TeacherFeedback,
		GradedDriveLink:  model.GradedDriveLink,
		SubmittedLink:    model.SubmittedLink,
		SubmittedAt:      model.SubmittedAt,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}

	if len(model.Attempts) > 0 {
		attempts := make([]AttemptResponse, 0, len(model.Attempts))
		for _, attempt := range model.Attempts {
			attempts = append(attempts, NewAttemptResponse(attempt))
		}
		response.Attempts = attempts
	}

	if model.Assignment.ID != 0 {
		response.Assignment = AssignmentLite{
			ID:       model.Assignment.ID,
			ClassID:  model.Assignment.ClassID,
			Title:    model.Assignment.Title,
			Category: string(model.Assignment.Category),
			DueDate:  model.Assignment.DueDate,
			MaxScore: model.Assignment.MaxScore,
		}
	}

	if model.Student.ID != 0 {
		response.Student = StudentLite{
			ID:   model.Student.ID,
			Name: model.Student.Name,
		}
	}

	return response
}

// NewAttemptResponse converts an Attempt model into a DTO.
func NewAttemptResponse(model models.Attempt) AttemptResponse {
	response := AttemptResponse{
		AttemptIndex:      model.AttemptIndex,
		Score:             model.Score,
		Status:            model.Status,
		CompletedArtifact: model.CompletedArtifact,
		TimeSpentSeconds:  model.TimeSpentSeconds,
		Late:              model.Late,
		CreatedAt:         model.CreatedAt,
	}

	if len(model.DetectedErrors) > 0 {
		_ = unmarshalDetectedErrors(model.DetectedErrors, &response.DetectedErrors)
	}

	if len(model.CategoryPayload) > 0 {
		response.CategoryPayload = map[string]interface{}(model.CategoryPayload)
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, submission := range items {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
