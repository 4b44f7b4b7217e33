package models

import (
	"time"

	"gorm.io/datatypes"
)

// AssignmentCategory tags the kind of work an assignment expects. The
// category decides which optional payload an exercise attempt carries.
type AssignmentCategory string

const (
	CategoryEssay       AssignmentCategory = "essay"
	CategoryVocabulary  AssignmentCategory = "vocabulary"
	CategoryTranslation AssignmentCategory = "translation"
	CategoryExercise    AssignmentCategory = "exercise"
)

// Assignment represents a task issued to a class. It is owned by the class
// and only changes through teacher edits.
type Assignment struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	ClassID     uint               `gorm:"not null;index" json:"class_id"`
	Title       string             `gorm:"size:255;not null;index" json:"title"`
	Category    AssignmentCategory `gorm:"size:32;not null;default:exercise" json:"category"`
	Description string             `gorm:"type:text" json:"description"`
	DueDate     time.Time          `gorm:"not null" json:"due_date"`
	MaxScore    float64            `gorm:"not null;default:100" json:"max_score"`

	// AssignedStudentIDs optionally restricts the assignment to a subset of
	// the class roster. Empty means the whole class.
	AssignedStudentIDs datatypes.JSONSlice[uint] `json:"assigned_student_ids"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Class Class `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"class"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueDate)
}

// IsAssignedTo reports whether the assignment applies to the given student.
func (a Assignment) IsAssignedTo(studentID uint) bool {
	if len(a.AssignedStudentIDs) == 0 {
		return true
	}
	for _, id := range a.AssignedStudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}
