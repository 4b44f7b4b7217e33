package dto

import (
	"time"

	"github.com/noah-isme/classboard-go-api/internal/models"
)

// AssignmentCreateRequest describes the payload for creating an assignment.
type AssignmentCreateRequest struct {
	ClassID            uint    `json:"class_id" validate:"required,gt=0"`
	Title              string  `json:"title" validate:"required,min=1,max=255"`
	Category           string  `json:"category" validate:"omitempty,oneof=essay vocabulary translation exercise"`
	Description        string  `json:"description" validate:"omitempty,max=2000"`
	DueDate            string  `json:"due_date" validate:"required"`
	MaxScore           float64 `json:"max_score" validate:"omitempty,gt=0"`
	AssignedStudentIDs []uint  `json:"assigned_student_ids" validate:"omitempty,dive,gt=0"`
}

// AssignmentUpdateRequest carries teacher edits to an existing assignment.
type AssignmentUpdateRequest struct {
	Title              *string  `json:"title" validate:"omitempty,min=1,max=255"`
	Category           *string  `json:"category" validate:"omitempty,oneof=essay vocabulary translation exercise"`
	Description        *string  `json:"description" validate:"omitempty,max=2000"`
	DueDate            *string  `json:"due_date"`
	MaxScore           *float64 `json:"max_score" validate:"omitempty,gt=0"`
	AssignedStudentIDs []uint   `json:"assigned_student_ids" validate:"omitempty,dive,gt=0"`
}

// AssignmentListRequest describes query options for listing assignments.
type AssignmentListRequest struct {
	ClassID  *uint  `query:"class_id"`
	Search   string `query:"search"`
	Page     int    `query:"page" validate:"omitempty,gte=1"`
	PageSize int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// AssignmentResponse is returned to API clients when viewing assignments.
type AssignmentResponse struct {
	ID                 uint      `json:"id"`
	ClassID            uint      `json:"class_id"`
	Title              string    `json:"title"`
	Category           string    `json:"category"`
	Description        string    `json:"description"`
	DueDate            time.Time `json:"due_date"`
	MaxScore           float64   `json:"max_score"`
	AssignedStudentIDs []uint    `json:"assigned_student_ids"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AssignmentListResponse wraps a page of assignments.
type AssignmentListResponse struct {
	Items      []AssignmentResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// PaginationMeta describes the shape of a paginated collection.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewAssignmentResponse converts an Assignment model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:                 model.ID,
		ClassID:            model.ClassID,
		Title:              model.Title,
		Category:           string(model.Category),
		Description:        model.Description,
		DueDate:            model.DueDate,
		MaxScore:           model.MaxScore,
		AssignedStudentIDs: []uint(model.AssignedStudentIDs),
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	}
}

// NewAssignmentResponseSlice converts assignment models into DTOs.
func NewAssignmentResponseSlice(items []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(items))
	for _, assignment := range items {
		responses = append(responses, NewAssignmentResponse(assignment))
	}

	return responses
}
