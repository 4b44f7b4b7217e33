package models

import "time"

// Class represents a group of students that assignments are issued to.
type Class struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;index" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Enrollment links a student to a class. A student may be enrolled in
// several classes at once.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ClassID   uint      `gorm:"not null;uniqueIndex:idx_class_student" json:"class_id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_class_student" json:"student_id"`
	CreatedAt time.Time `json:"created_at"`

	Class   Class   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"class"`
	Student Student `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}
