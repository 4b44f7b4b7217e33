package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// SubmissionStatusSubmitted indicates work has been turned in but not graded.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusGraded indicates the teacher has evaluated the work.
	SubmissionStatusGraded = "graded"
)

// Submission is the per-student record of work against one assignment.
// Exactly one submission exists per (assignment, student) pair.
type Submission struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	AssignmentID uint `gorm:"not null;uniqueIndex:idx_assignment_student" json:"assignment_id"`
	StudentID    uint `gorm:"not null;uniqueIndex:idx_assignment_student" json:"student_id"`

	Status         string `gorm:"size:32;not null" json:"status"`
	IsRedoRequired bool   `gorm:"not null;default:false" json:"is_redo_required"`

	Grade            *float64 `json:"grade"`
	AISuggestedGrade *float64 `json:"ai_suggested_grade"`
	TeacherFeedback  string   `gorm:"type:text" json:"teacher_feedback"`
	GradedDriveLink  string   `gorm:"size:512" json:"graded_drive_link"`
	SubmittedLink    string   `gorm:"size:512" json:"submitted_link"`

	SubmittedAt time.Time `json:"submitted_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Attempts is append-only: entries are never reordered or deleted and
	// AttemptIndex always equals the position in the sequence.
	Attempts []Attempt `gorm:"foreignKey:SubmissionID" json:"attempts"`

	Assignment Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Student    Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// IsGraded reports whether the submission carries a final grade.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}

// AcceptsNewWork reports whether the pair may receive a pasted-link
// submission: anything except graded work that is not flagged for redo.
func (s Submission) AcceptsNewWork() bool {
	return s.Status != SubmissionStatusGraded || s.IsRedoRequired
}

const (
	// AttemptStatusCompleted marks an exercise run the student finished.
	AttemptStatusCompleted = "completed"
	// AttemptStatusIncomplete marks a run that ended before completion.
	AttemptStatusIncomplete = "incomplete"
)

// Attempt is one immutable run of an interactive exercise. Rows are only
// ever appended to a submission, never mutated or removed.
type Attempt struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	SubmissionID uint `gorm:"not null;index" json:"submission_id"`
	AttemptIndex int  `gorm:"not null" json:"attempt_index"`

	Score             float64 `gorm:"not null" json:"score"`
	Status            string  `gorm:"size:32;not null" json:"status"`
	CompletedArtifact string  `gorm:"type:text" json:"completed_artifact"`

	// DetectedErrors holds the structured error descriptors the exercise
	// surface reported for this run.
	DetectedErrors datatypes.JSON `json:"detected_errors"`

	// CategoryPayload carries the category-specific envelope extension:
	// vocabulary lists, translation sub-scores, and similar optional fields
	// keyed by the assignment category.
	CategoryPayload datatypes.JSONMap `gorm:"type:json" json:"category_payload"`

	TimeSpentSeconds int       `gorm:"not null;default:0" json:"time_spent_seconds"`
	Late             bool      `gorm:"not null;default:false" json:"late"`
	CreatedAt        time.Time `json:"created_at"`
}

// SubmissionGradeHistory records every grading action taken against a
// submission, in the order the grades were written.
type SubmissionGradeHistory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubmissionID   uint      `gorm:"not null;index" json:"submission_id"`
	Score          float64   `gorm:"not null" json:"score"`
	Feedback       string    `gorm:"type:text" json:"feedback"`
	IsRedoRequired bool      `gorm:"not null;default:false" json:"is_redo_required"`
	GradedBy       uint      `gorm:"not null" json:"graded_by"`
	GradedAt       time.Time `gorm:"not null" json:"graded_at"`
}
