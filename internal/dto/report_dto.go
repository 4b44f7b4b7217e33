package dto

import (
	"time"

	"github.com/noah-isme/classboard-go-api/internal/models"
)

// CompletionReportRequest is the envelope the external exercise surface
// posts when a student finishes a run. The three *_attempt fields are
// free-text identity claims, not record identifiers.
type CompletionReportRequest struct {
	StudentNameAttempt     string                 `json:"student_name_attempt" validate:"required,min=1,max=255"`
	ClassNameAttempt       string                 `json:"class_name_attempt" validate:"required,min=1,max=255"`
	AssignmentTitleAttempt string                 `json:"assignment_title_attempt" validate:"required,min=1,max=255"`
	Score                  float64                `json:"score" validate:"gte=0"`
	CompletionStatus       string                 `json:"completion_status" validate:"required,oneof=completed incomplete"`
	TimeSpentSeconds       int                    `json:"time_spent_seconds" validate:"gte=0"`
	SubmittedAt            *time.Time             `json:"submitted_at"`
	CompletedArtifact      string                 `json:"completed_artifact"`
	DetectedErrors         []DetectedError        `json:"detected_errors" validate:"omitempty,dive"`
	CategoryPayload        map[string]interface{} `json:"category_payload"`
}

// ConfirmMatchRequest carries a teacher's explicit manual resolution. The
// class is implied by the assignment.
type ConfirmMatchRequest struct {
	StudentID    uint `json:"student_id" validate:"required,gt=0"`
	AssignmentID uint `json:"assignment_id" validate:"required,gt=0"`
}

// PendingReportResponse serializes a staged completion report.
type PendingReportResponse struct {
	ID                     string     `json:"id"`
	StudentNameAttempt     string     `json:"student_name_attempt"`
	ClassNameAttempt       string     `json:"class_name_attempt"`
	AssignmentTitleAttempt string     `json:"assignment_title_attempt"`
	Score                  float64    `json:"score"`
	CompletionStatus       string     `json:"completion_status"`
	TimeSpentSeconds       int        `json:"time_spent_seconds"`
	SubmittedAt            time.Time  `json:"submitted_at"`
	Resolution             string     `json:"resolution"`
	ResolvedStudentID      *uint      `json:"resolved_student_id"`
	ResolvedAssignmentID   *uint      `json:"resolved_assignment_id"`
	ResolvedAt             *time.Time `json:"resolved_at"`
	ResolutionNote         string     `json:"resolution_note"`
	CreatedAt              time.Time  `json:"created_at"`
}

// IngestResultResponse reports the immediate outcome of ingesting a
// completion report.
type IngestResultResponse struct {
	Report    PendingReportResponse `json:"report"`
	Duplicate bool                  `json:"duplicate"`
}

// NewPendingReportResponse converts a PendingReport model into a DTO.
func NewPendingReportResponse(model models.PendingReport) PendingReportResponse {
	return PendingReportResponse{
		ID:                     model.ID,
		StudentNameAttempt:     model.StudentNameAttempt,
		ClassNameAttempt:       model.ClassNameAttempt,
		AssignmentTitleAttempt: model.AssignmentTitleAttempt,
		Score:                  model.Score,
		CompletionStatus:       model.CompletionStatus,
		TimeSpentSeconds:       model.TimeSpentSeconds,
		SubmittedAt:            model.SubmittedAt,
		Resolution:             string(model.Resolution),
		ResolvedStudentID:      model.ResolvedStudentID,
		ResolvedAssignmentID:   model.ResolvedAssignmentID,
		ResolvedAt:             model.ResolvedAt,
		ResolutionNote:         model.ResolutionNote,
		CreatedAt:              model.CreatedAt,
	}
}

// NewPendingReportResponseSlice converts report models into DTOs.
func NewPendingReportResponseSlice(items []models.PendingReport) []PendingReportResponse {
	responses := make([]PendingReportResponse, 0, len(items))
	for _, report := range items {
		responses = append(responses, NewPendingReportResponse(report))
	}

	return responses
}
