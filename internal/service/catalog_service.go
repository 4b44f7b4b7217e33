package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/classboard-go-api/internal/models"
	"github.com/noah-isme/classboard-go-api/internal/repository"
)

const catalogCacheKey = "catalog:snapshot"

// CatalogSnapshot is a read-only view of the roster, class, enrollment, and
// assignment catalogs taken before the reconciliation engine runs. Matching
// logic only ever sees this value, never the live store, which keeps the
// resolver pure and the snapshot stable for the whole invocation.
type CatalogSnapshot struct {
	Students    []models.Student    `json:"students"`
	Classes     []models.Class      `json:"classes"`
	Assignments []models.Assignment `json:"assignments"`
	Enrollments []models.Enrollment `json:"enrollments"`
	TakenAt     time.Time           `json:"taken_at"`
}

// IsEnrolled reports whether the student belongs to the class in this snapshot.
func (s CatalogSnapshot) IsEnrolled(classID, studentID uint) bool {
	for _, enrollment := range s.Enrollments {
		if enrollment.ClassID == classID && enrollment.StudentID == studentID {
			return true
		}
	}
	return false
}

// CatalogService builds catalog snapshots for reconciliation.
type CatalogService interface {
	Snapshot(ctx context.Context) (CatalogSnapshot, error)
}

type catalogService struct {
	catalog     repository.CatalogRepository
	assignments repository.AssignmentRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewCatalogService constructs the snapshot builder. The redis client is
// optional; without it every call reads the store directly.
func NewCatalogService(catalog repository.CatalogRepository, assignments repository.AssignmentRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) CatalogService {
	return &catalogService{
		catalog:     catalog,
		assignments: assignments,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "catalog_service").Logger(),
		now:         time.Now,
	}
}

func (s *catalogService) Snapshot(ctx context.Context) (CatalogSnapshot, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, catalogCacheKey).Result(); err == nil {
			var snapshot CatalogSnapshot
			if unmarshalErr := json.Unmarshal([]byte(cached), &snapshot); unmarshalErr == nil {
				s.logger.Debug().Msg("catalog snapshot cache hit")
				return snapshot, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read catalog cache")
		}
	}

	students, err := s.catalog.ListStudents(ctx)
	if err != nil {
		return CatalogSnapshot{}, err
	}

	classes, err := s.catalog.ListClasses(ctx)
	if err != nil {
		return CatalogSnapshot{}, err
	}

	enrollments, err := s.catalog.ListEnrollments(ctx)
	if err != nil {
		return CatalogSnapshot{}, err
	}

	assignments, err := s.assignments.ListAll(ctx)
	if err != nil {
		return CatalogSnapshot{}, err
	}

	snapshot := CatalogSnapshot{
		Students:    students,
		Classes:     classes,
		Assignments: assignments,
		Enrollments: enrollments,
		TakenAt:     s.now().UTC(),
	}

	if s.cache != nil {
		if payload, err := json.Marshal(snapshot); err == nil {
			if err := s.cache.Set(ctx, catalogCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store catalog cache")
			}
		}
	}

	return snapshot, nil
}
