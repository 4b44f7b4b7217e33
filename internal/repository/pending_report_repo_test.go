package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/classboard-go-api/internal/models"
)

func stagedReport(dedupKey string, submittedAt time.Time) models.PendingReport {
	return models.PendingReport{
		ID:                     uuid.NewString(),
		StudentNameAttempt:     "Budi Santoso",
		ClassNameAttempt:       "English Basic A",
		AssignmentTitleAttempt: "Vocabulary Quiz 3",
		Score:                  80,
		CompletionStatus:       models.AttemptStatusCompleted,
		SubmittedAt:            submittedAt,
		Resolution:             models.ResolutionUnresolved,
		DedupKey:               dedupKey,
	}
}

func TestPendingReportRepositoryDedupKeyUnique(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPendingReportRepository(db)

	key := uuid.NewString()
	first := stagedReport(key, time.Now().UTC())
	require.NoError(t, repo.Create(context.Background(), &first))

	duplicate := stagedReport(key, time.Now().UTC())
	require.Error(t, repo.Create(context.Background(), &duplicate))

	found, err := repo.GetByDedupKey(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)

	_, err = repo.GetByDedupKey(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPendingReportRepositoryListUnresolvedOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPendingReportRepository(db)

	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	newer := stagedReport(uuid.NewString(), base.Add(time.Hour))
	older := stagedReport(uuid.NewString(), base)
	resolved := stagedReport(uuid.NewString(), base.Add(2*time.Hour))
	resolved.Resolution = models.ResolutionRejected

	require.NoError(t, repo.Create(context.Background(), &newer))
	require.NoError(t, repo.Create(context.Background(), &older))
	require.NoError(t, repo.Create(context.Background(), &resolved))

	reports, err := repo.ListUnresolved(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(reports), 2)

	// Oldest submissions first, terminal reports excluded.
	var sawOlder, sawNewer bool
	previous := time.Time{}
	for _, report := range reports {
		require.Equal(t, models.ResolutionUnresolved, report.Resolution)
		require.False(t, report.SubmittedAt.Before(previous))
		previous = report.SubmittedAt
		if report.ID == older.ID {
			sawOlder = true
		}
		if report.ID == newer.ID {
			require.True(t, sawOlder, "older report must come before newer")
			sawNewer = true
		}
	}
	require.True(t, sawOlder)
	require.True(t, sawNewer)
}

func TestPendingReportRepositoryResolutionUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPendingReportRepository(db)

	report := stagedReport(uuid.NewString(), time.Now().UTC())
	require.NoError(t, repo.Create(context.Background(), &report))

	studentID := uint(1)
	assignmentID := uint(100)
	resolvedAt := time.Now().UTC()
	report.Resolution = models.ResolutionManuallyConfirmed
	report.ResolvedStudentID = &studentID
	report.ResolvedAssignmentID = &assignmentID
	report.ResolvedAt = &resolvedAt
	require.NoError(t, repo.Update(context.Background(), &report))

	reloaded, err := repo.GetByID(context.Background(), report.ID)
	require.NoError(t, err)
	require.Equal(t, models.ResolutionManuallyConfirmed, reloaded.Resolution)
	require.Equal(t, studentID, *reloaded.ResolvedStudentID)
	require.Equal(t, assignmentID, *reloaded.ResolvedAssignmentID)
}
