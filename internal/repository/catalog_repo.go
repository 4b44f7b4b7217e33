package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/classboard-go-api/internal/models"
)

// CatalogRepository reads the roster, class, and enrollment catalogs that
// reconciliation matches against. It is read-only by design: catalog
// mutations belong to the roster management surface, not this service.
type CatalogRepository interface {
	ListStudents(ctx context.Context) ([]models.Student, error)
	ListClasses(ctx context.Context) ([]models.Class, error)
	ListEnrollments(ctx context.Context) ([]models.Enrollment, error)
	ListEnrolledStudents(ctx context.Context, classID uint) ([]models.Student, error)
	GetStudentByID(ctx context.Context, id uint) (models.Student, error)
	GetClassByID(ctx context.Context, id uint) (models.Class, error)
	IsEnrolled(ctx context.Context, classID, studentID uint) (bool, error)
}

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository constructs the catalog repository.
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) ListStudents(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&students).Error; err != nil {
		return nil, err
	}

	return students, nil
}

func (r *catalogRepository) ListClasses(ctx context.Context) ([]models.Class, error) {
	var classes []models.Class
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&classes).Error; err != nil {
		return nil, err
	}

	return classes, nil
}

func (r *catalogRepository) ListEnrollments(ctx context.Context) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := r.db.WithContext(ctx).Find(&enrollments).Error; err != nil {
		return nil, err
	}

	return enrollments, nil
}

func (r *catalogRepository) ListEnrolledStudents(ctx context.Context, classID uint) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.WithContext(ctx).
		Joins("JOIN enrollments ON enrollments.student_id = students.id").
		Where("enrollments.class_id = ?", classID).
		Order("students.name ASC").
		Find(&students).Error; err != nil {
		return nil, err
	}

	return students, nil
}

func (r *catalogRepository) GetStudentByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *catalogRepository) GetClassByID(ctx context.Context, id uint) (models.Class, error) {
	var class models.Class
	if err := r.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return models.Class{}, err
	}

	return class, nil
}

func (r *catalogRepository) IsEnrolled(ctx context.Context, classID, studentID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("class_id = ?", classID).
		Where("student_id = ?", studentID).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}
