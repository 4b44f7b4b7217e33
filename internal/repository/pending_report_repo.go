package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/classboard-go-api/internal/models"
)

// PendingReportRepository is the append-only intake buffer for completion
// reports. Rows are created once and only their resolution fields change.
type PendingReportRepository interface {
	Create(ctx context.Context, report *models.PendingReport) error
	GetByID(ctx context.Context, id string) (models.PendingReport, error)
	GetByDedupKey(ctx context.Context, key string) (models.PendingReport, error)
	ListUnresolved(ctx context.Context) ([]models.PendingReport, error)
	Update(ctx context.Context, report *models.PendingReport) error
}

type pendingReportRepository struct {
	db *gorm.DB
}

// NewPendingReportRepository constructs the pending report repository.
func NewPendingReportRepository(db *gorm.DB) PendingReportRepository {
	return &pendingReportRepository{db: db}
}

func (r *pendingReportRepository) Create(ctx context.Context, report *models.PendingReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *pendingReportRepository) GetByID(ctx context.Context, id string) (models.PendingReport, error) {
	var report models.PendingReport
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error; err != nil {
		return models.PendingReport{}, err
	}

	return report, nil
}

func (r *pendingReportRepository) GetByDedupKey(ctx context.Context, key string) (models.PendingReport, error) {
	var report models.PendingReport
	if err := r.db.WithContext(ctx).Where("dedup_key = ?", key).First(&report).Error; err != nil {
		return models.PendingReport{}, err
	}

	return report, nil
}

func (r *pendingReportRepository) ListUnresolved(ctx context.Context) ([]models.PendingReport, error) {
	var reports []models.PendingReport
	if err := r.db.WithContext(ctx).
		Where("resolution = ?", models.ResolutionUnresolved).
		Order("submitted_at ASC").
		Find(&reports).Error; err != nil {
		return nil, err
	}

	return reports, nil
}

func (r *pendingReportRepository) Update(ctx context.Context, report *models.PendingReport) error {
	return r.db.WithContext(ctx).Save(report).Error
}
