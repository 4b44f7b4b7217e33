package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/classboard-go-api/internal/dto"
	"github.com/noah-isme/classboard-go-api/internal/models"
	"github.com/noah-isme/classboard-go-api/internal/observability"
	"github.com/noah-isme/classboard-go-api/internal/repository"
)

// ErrPendingReportNotFound indicates the pending report does not exist.
var ErrPendingReportNotFound = errors.New("pending report not found")

// ErrInconsistentMatch indicates a manual match that violates the
// enrollment constraint: the chosen student is not enrolled in the chosen
// assignment's class.
var ErrInconsistentMatch = errors.New("student is not enrolled in the assignment's class")

// ReconcileService binds completion reports from the external exercise
// surface to real (student, class, assignment) records, or stages them for
// manual resolution. It never attaches a report to the wrong student: every
// automatic binding requires a unique exact match plus enrollment and
// ownership cross-checks.
type ReconcileService interface {
	Ingest(ctx context.Context, payload dto.CompletionReportRequest) (dto.IngestResultResponse, error)
	ListUnresolved(ctx context.Context) ([]dto.PendingReportResponse, error)
	ConfirmMatch(ctx context.Context, pendingID string, payload dto.ConfirmMatchRequest, actor ActivityActor) (dto.PendingReportResponse, error)
	Reject(ctx context.Context, pendingID string, actor ActivityActor) (dto.PendingReportResponse, error)
}

type reconcileService struct {
	reports     repository.PendingReportRepository
	assignments repository.AssignmentRepository
	catalogRepo repository.CatalogRepository
	catalog     CatalogService
	submissions SubmissionService
	validator   *validator.Validate
	events      EventPublisher
	activity    ActivityRecorder
	sanitizer   *bluemonday.Policy
	locks       *keyedLocker
	logger      zerolog.Logger
	now         func() time.Time
}

// NewReconcileService constructs the reconciliation engine.
func NewReconcileService(reports repository.PendingReportRepository, assignments repository.AssignmentRepository, catalogRepo repository.CatalogRepository, catalog CatalogService, submissions SubmissionService, validate *validator.Validate, events EventPublisher, activity ActivityRecorder, logger zerolog.Logger) ReconcileService {
	return &reconcileService{
		reports:     reports,
		assignments: assignments,
		catalogRepo: catalogRepo,
		catalog:     catalog,
		submissions: submissions,
		validator:   validate,
		events:      events,
		activity:    activity,
		sanitizer:   bluemonday.StrictPolicy(),
		locks:       newKeyedLocker(),
		logger:      logger.With().Str("component", "reconcile_service").Logger(),
		now:         time.Now,
	}
}

func (s *reconcileService) Ingest(ctx context.Context, payload dto.CompletionReportRequest) (dto.IngestResultResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/classboard-go-api/internal/service/reconcile")
	ctx, span := tracer.Start(ctx, "reconcile.ingest")
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.IngestResultResponse{}, err
	}

	// The exercise surface is untrusted; its free text never reaches the
	// catalogs unsanitized.
	studentName := s.cleanText(payload.StudentNameAttempt)
	className := s.cleanText(payload.ClassNameAttempt)
	assignmentTitle := s.cleanText(payload.AssignmentTitleAttempt)
	if studentName == "" || className == "" || assignmentTitle == "" {
		err := fmt.Errorf("identity fields empty after sanitization")
		span.SetStatus(codes.Error, "sanitization_rejected")
		return dto.IngestResultResponse{}, err
	}

	submittedAt := s.now().UTC()
	if payload.SubmittedAt != nil {
		submittedAt = payload.SubmittedAt.UTC()
	}

	dedupKey := reportDedupKey(studentName, className, assignmentTitle, payload.Score, submittedAt)

	if existing, err := s.reports.GetByDedupKey(ctx, dedupKey); err == nil {
		span.SetAttributes(attribute.Bool("reconcile.duplicate", true))
		return dto.IngestResultResponse{
			Report:    dto.NewPendingReportResponse(existing),
			Duplicate: true,
		}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return dto.IngestResultResponse{}, err
	}

	detectedErrors, err := dto.MarshalDetectedErrors(payload.DetectedErrors)
	if err != nil {
		return dto.IngestResultResponse{}, err
	}

	report := models.PendingReport{
		ID:                     uuid.NewString(),
		StudentNameAttempt:     studentName,
		ClassNameAttempt:       className,
		AssignmentTitleAttempt: assignmentTitle,
		Score:                  payload.Score,
		CompletionStatus:       payload.CompletionStatus,
		TimeSpentSeconds:       payload.TimeSpentSeconds,
		SubmittedAt:            submittedAt,
		CompletedArtifact:      payload.CompletedArtifact,
		DetectedErrors:         detectedErrors,
		CategoryPayload:        datatypes.JSONMap(payload.CategoryPayload),
		Resolution:             models.ResolutionUnresolved,
		DedupKey:               dedupKey,
	}

	if err := s.reports.Create(ctx, &report); err != nil {
		// A concurrent delivery of the same run can win the unique dedup
		// index between the lookup above and this insert; acknowledge the
		// stored report instead of surfacing the constraint violation.
		if existing, lookupErr := s.reports.GetByDedupKey(ctx, dedupKey); lookupErr == nil {
			span.SetAttributes(attribute.Bool("reconcile.duplicate", true))
			return dto.IngestResultResponse{
				Report:    dto.NewPendingReportResponse(existing),
				Duplicate: true,
			}, nil
		}
		span.RecordError(err)
		return dto.IngestResultResponse{}, err
	}

	// The report is visible in the resolution queue from this point on, so
	// auto-confirmation contends with manual resolution like any other writer.
	unlock := s.locks.Lock(report.ID)
	defer unlock()

	if s.events != nil {
		_ = s.events.Publish(ctx, DomainEvent{
			Kind:       EventReportIngested,
			EntityType: "pending_report",
			EntityID:   report.ID,
		})
	}

	snapshot, err := s.catalog.Snapshot(ctx)
	if err != nil {
		// The report is staged; a catalog outage just defers resolution.
		s.logger.Warn().Err(err).Str("report_id", report.ID).Msg("catalog snapshot unavailable, report left unresolved")
		observability.ReportsIngested().WithLabelValues("unresolved").Inc()
		return dto.IngestResultResponse{Report: dto.NewPendingReportResponse(report)}, nil
	}

	resolved, failure := resolveReport(snapshot, report)
	if failure != "" {
		report.ResolutionNote = string(failure)
		if err := s.reports.Update(ctx, &report); err != nil {
			s.logger.Warn().Err(err).Str("report_id", report.ID).Msg("failed to record resolution note")
		}
		observability.ReportsIngested().WithLabelValues("unresolved").Inc()
		span.SetAttributes(attribute.String("reconcile.outcome", string(failure)))

		s.logger.Info().
			Str("report_id", report.ID).
			Str("reason", string(failure)).
			Msg("report queued for manual resolution")

		return dto.IngestResultResponse{Report: dto.NewPendingReportResponse(report)}, nil
	}

	if err := s.appendReportAttempt(ctx, report, resolved.AssignmentID, resolved.StudentID); err != nil {
		// Never drop the report: a failed append leaves it queued.
		s.logger.Error().Err(err).Str("report_id", report.ID).Msg("auto-confirm append failed, report left unresolved")
		observability.ReportsIngested().WithLabelValues("unresolved").Inc()
		return dto.IngestResultResponse{Report: dto.NewPendingReportResponse(report)}, nil
	}

	now := s.now().UTC()
	report.Resolution = models.ResolutionAutoConfirmed
	report.ResolvedStudentID = &resolved.StudentID
	report.ResolvedAssignmentID = &resolved.AssignmentID
	report.ResolvedAt = &now
	if err := s.reports.Update(ctx, &report); err != nil {
		span.RecordError(err)
		return dto.IngestResultResponse{}, err
	}

	observability.ReportsIngested().WithLabelValues("auto_confirmed").Inc()
	span.SetAttributes(attribute.String("reconcile.outcome", "auto_confirmed"))

	if s.events != nil {
		_ = s.events.Publish(ctx, DomainEvent{
			Kind:       EventReportAutoConfirmed,
			EntityType: "pending_report",
			EntityID:   report.ID,
			Payload: map[string]interface{}{
				"student_id":    resolved.StudentID,
				"assignment_id": resolved.AssignmentID,
			},
		})
	}

	s.logger.Info().
		Str("report_id", report.ID).
		Uint("student_id", resolved.StudentID).
		Uint("assignment_id", resolved.AssignmentID).
		Msg("report auto-confirmed")

	return dto.IngestResultResponse{Report: dto.NewPendingReportResponse(report)}, nil
}

func (s *reconcileService) ListUnresolved(ctx context.Context) ([]dto.PendingReportResponse, error) {
	reports, err := s.reports.ListUnresolved(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewPendingReportResponseSlice(reports), nil
}

func (s *reconcileService) ConfirmMatch(ctx context.Context, pendingID string, payload dto.ConfirmMatchRequest, actor ActivityActor) (dto.PendingReportResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PendingReportResponse{}, err
	}

	// Resolution writers for one report are serialized, and the terminal
	// check runs under the lock: re-invoking on a resolved entry reports the
	// existing resolution, the transition itself happens at most once.
	unlock := s.locks.Lock(strings.TrimSpace(pendingID))
	defer unlock()

	report, err := s.getReport(ctx, pendingID)
	if err != nil {
		return dto.PendingReportResponse{}, err
	}

	if report.Resolution.IsTerminal() {
		return dto.NewPendingReportResponse(report), nil
	}

	assignment, err := s.assignments.GetByID(ctx, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PendingReportResponse{}, ErrAssignmentNotFound
		}
		return dto.PendingReportResponse{}, err
	}

	if _, err := s.catalogRepo.GetStudentByID(ctx, payload.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PendingReportResponse{}, ErrStudentNotFound
		}
		return dto.PendingReportResponse{}, err
	}

	// Same cross-check as the automatic path: the class is implied by the
	// assignment and the student must be enrolled in it.
	enrolled, err := s.catalogRepo.IsEnrolled(ctx, assignment.ClassID, payload.StudentID)
	if err != nil {
		return dto.PendingReportResponse{}, err
	}
	if !enrolled {
		return dto.PendingReportResponse{}, ErrInconsistentMatch
	}

	if err := s.appendReportAttempt(ctx, report, payload.AssignmentID, payload.StudentID); err != nil {
		return dto.PendingReportResponse{}, err
	}

	now := s.now().UTC()
	report.Resolution = models.ResolutionManuallyConfirmed
	report.ResolvedStudentID = &payload.StudentID
	report.ResolvedAssignmentID = &payload.AssignmentID
	report.ResolvedAt = &now
	if err := s.reports.Update(ctx, &report); err != nil {
		return dto.PendingReportResponse{}, err
	}

	observability.ReportsResolved().WithLabelValues("manually_confirmed").Inc()

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "report.confirmed",
			EntityType: "pending_report",
			Metadata: map[string]interface{}{
				"report_id":     report.ID,
				"student_id":    payload.StudentID,
				"assignment_id": payload.AssignmentID,
			},
		})
	}

	if s.events != nil {
		_ = s.events.Publish(ctx, DomainEvent{
			Kind:       EventReportManualConfirmed,
			EntityType: "pending_report",
			EntityID:   report.ID,
		})
	}

	return dto.NewPendingReportResponse(report), nil
}

func (s *reconcileService) Reject(ctx context.Context, pendingID string, actor ActivityActor) (dto.PendingReportResponse, error) {
	unlock := s.locks.Lock(strings.TrimSpace(pendingID))
	defer unlock()

	report, err := s.getReport(ctx, pendingID)
	if err != nil {
		return dto.PendingReportResponse{}, err
	}

	if report.Resolution.IsTerminal() {
		return dto.NewPendingReportResponse(report), nil
	}

	now := s.now().UTC()
	report.Resolution = models.ResolutionRejected
	report.ResolvedAt = &now
	if err := s.reports.Update(ctx, &report); err != nil {
		return dto.PendingReportResponse{}, err
	}

	observability.ReportsResolved().WithLabelValues("rejected").Inc()

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "report.rejected",
			EntityType: "pending_report",
			Metadata:   map[string]interface{}{"report_id": report.ID},
		})
	}

	if s.events != nil {
		_ = s.events.Publish(ctx, DomainEvent{
			Kind:       EventReportRejected,
			EntityType: "pending_report",
			EntityID:   report.ID,
		})
	}

	s.logger.Info().Str("report_id", report.ID).Msg("report rejected")

	return dto.NewPendingReportResponse(report), nil
}

func (s *reconcileService) getReport(ctx context.Context, id string) (models.PendingReport, error) {
	report, err := s.reports.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PendingReport{}, ErrPendingReportNotFound
		}
		return models.PendingReport{}, err
	}

	return report, nil
}

// appendReportAttempt writes the staged run into the submission state
// machine via the normal attempt path, so confirmed reports obey the same
// serialization and append-only rules as direct submissions.
func (s *reconcileService) appendReportAttempt(ctx context.Context, report models.PendingReport, assignmentID, studentID uint) error {
	var detectedErrors []dto.DetectedError
	if len(report.DetectedErrors) > 0 {
		if err := json.Unmarshal(report.DetectedErrors, &detectedErrors); err != nil {
			return err
		}
	}

	occurredAt := report.SubmittedAt
	_, err := s.submissions.RecordAttempt(ctx, dto.RecordAttemptRequest{
		AssignmentID:      assignmentID,
		StudentID:         studentID,
		Score:             report.Score,
		Status:            report.CompletionStatus,
		CompletedArtifact: report.CompletedArtifact,
		DetectedErrors:    detectedErrors,
		CategoryPayload:   map[string]interface{}(report.CategoryPayload),
		TimeSpentSeconds:  report.TimeSpentSeconds,
		OccurredAt:        &occurredAt,
	})

	return err
}

func (s *reconcileService) cleanText(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func reportDedupKey(studentName, className, assignmentTitle string, score float64, submittedAt time.Time) string {
	seed := fmt.Sprintf("%s|%s|%s|%.4f|%d",
		foldName(studentName), foldName(className), foldName(assignmentTitle), score, submittedAt.Unix())
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}
