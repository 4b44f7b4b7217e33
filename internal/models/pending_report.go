package models

import (
	"time"

	"gorm.io/datatypes"
)

// ReportResolution enumerates the lifecycle of a pending report. A report
// moves from unresolved to exactly one terminal state and never back.
type ReportResolution string

const (
	ResolutionUnresolved        ReportResolution = "unresolved"
	ResolutionAutoConfirmed     ReportResolution = "auto_confirmed"
	ResolutionManuallyConfirmed ReportResolution = "manually_confirmed"
	ResolutionRejected          ReportResolution = "rejected"
)

// IsTerminal reports whether the resolution is final.
func (r ReportResolution) IsTerminal() bool {
	return r != ResolutionUnresolved && r != ""
}

// PendingReport stages a completion report from the external exercise
// surface. The surface only knows free-text names, so the three *Attempt
// fields hold unverified identity claims until reconciliation binds them to
// real records or a teacher rejects the report.
type PendingReport struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`

	StudentNameAttempt     string `gorm:"size:255;not null" json:"student_name_attempt"`
	ClassNameAttempt       string `gorm:"size:255;not null" json:"class_name_attempt"`
	AssignmentTitleAttempt string `gorm:"size:255;not null" json:"assignment_title_attempt"`

	Score            float64   `gorm:"not null" json:"score"`
	CompletionStatus string    `gorm:"size:32;not null" json:"completion_status"`
	TimeSpentSeconds int       `gorm:"not null;default:0" json:"time_spent_seconds"`
	SubmittedAt      time.Time `gorm:"not null" json:"submitted_at"`

	// The full run payload is staged alongside the identity claims so a
	// manual confirmation months later can still append a complete attempt.
	CompletedArtifact string            `gorm:"type:text" json:"completed_artifact"`
	DetectedErrors    datatypes.JSON    `json:"detected_errors"`
	CategoryPayload   datatypes.JSONMap `gorm:"type:json" json:"category_payload"`

	Resolution ReportResolution `gorm:"size:32;not null;default:unresolved;index" json:"resolution"`
	// ResolvedStudentID and ResolvedAssignmentID are set when the report is
	// confirmed; a confirmed report always references exactly one existing
	// (assignment, student) pair.
	ResolvedStudentID    *uint      `json:"resolved_student_id"`
	ResolvedAssignmentID *uint      `json:"resolved_assignment_id"`
	ResolvedAt           *time.Time `json:"resolved_at"`
	ResolutionNote       string     `gorm:"type:text" json:"resolution_note"`

	// DedupKey makes duplicate delivery of the same completion report a
	// no-op on ingest.
	DedupKey string `gorm:"size:64;uniqueIndex;not null" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
