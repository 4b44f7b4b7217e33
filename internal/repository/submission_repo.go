package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/classboard-go-api/internal/models"
)

// SubmissionFilter narrows submission queries.
type SubmissionFilter struct {
	AssignmentID *uint
	StudentID    *uint
	Status       *string
}

// SubmissionRepository defines data operations for submissions and their
// attempt sequences. Attempts are only ever appended.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByPair(ctx context.Context, assignmentID, studentID uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	AppendAttempt(ctx context.Context, submission *models.Submission, attempt *models.Attempt) error
	CreateGradeHistory(ctx context.Context, entry *models.SubmissionGradeHistory) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Attempts", func(db *gorm.DB) *gorm.DB {
			return db.Order("attempt_index ASC")
		}).
		Preload("Assignment").
		Preload("Student")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var submissions []models.Submission
	if err := query.Order("submitted_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByPair(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Attempts", "Assignment", "Student").Save(submission).Error
}

// AppendAttempt writes the attempt and the updated submission header in one
// transaction so a failed append never leaves a half-written pair.
func (r *submissionRepository) AppendAttempt(ctx context.Context, submission *models.Submission, attempt *models.Attempt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if submission.ID == 0 {
			if err := tx.Omit("Attempts", "Assignment", "Student").Create(submission).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Omit("Attempts", "Assignment", "Student").Save(submission).Error; err != nil {
				return err
			}
		}

		attempt.SubmissionID = submission.ID
		return tx.Create(attempt).Error
	})
}

func (r *submissionRepository) CreateGradeHistory(ctx context.Context, entry *models.SubmissionGradeHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
