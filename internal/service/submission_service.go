package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
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

// ErrAssignmentNotFound indicates the referenced assignment does not exist.
var ErrAssignmentNotFound = errors.New("assignment not found")

// ErrStudentNotFound indicates the referenced student does not exist.
var ErrStudentNotFound = errors.New("student not found")

// ErrSubmissionNotFound indicates a submission could not be found.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrSubmissionLocked indicates a resubmission was attempted on graded work
// that is not flagged for redo.
var ErrSubmissionLocked = errors.New("submission is graded and locked")

// ErrGradeOutOfRange indicates a grade outside the assignment's declared
// scale. Out-of-range grades are rejected, never clamped.
var ErrGradeOutOfRange = errors.New("grade is outside the assignment scale")

// GradeSuggester produces an advisory grade for a completed attempt. The
// suggestion never replaces the teacher's grade.
type GradeSuggester interface {
	Suggest(ctx context.Context, assignment models.Assignment, attempt models.Attempt) (float64, error)
}

// SubmissionService governs the submission lifecycle: link submissions,
// attempt appends, and grading.
type SubmissionService interface {
	SubmitLink(ctx context.Context, payload dto.SubmitLinkRequest) (dto.SubmissionResponse, error)
	RecordAttempt(ctx context.Context, payload dto.RecordAttemptRequest) (dto.SubmissionResponse, error)
	Grade(ctx context.Context, submissionID uint, payload dto.GradeRequest, actor ActivityActor) (dto.SubmissionResponse, error)
	Get(ctx context.Context, assignmentID, studentID uint) (dto.SubmissionResponse, error)
	List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	catalog     repository.CatalogRepository
	validator   *validator.Validate
	locks       *keyedLocker
	events      EventPublisher
	activity    ActivityRecorder
	suggester   GradeSuggester
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance. The events,
// activity, and suggester collaborators are optional.
func NewSubmissionService(subRepo repository.SubmissionRepository, assignmentRepo repository.AssignmentRepository, catalogRepo repository.CatalogRepository, validate *validator.Validate, events EventPublisher, activity ActivityRecorder, suggester GradeSuggester, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: subRepo,
		assignments: assignmentRepo,
		catalog:     catalogRepo,
		validator:   validate,
		locks:       newKeyedLocker(),
		events:      events,
		activity:    activity,
		suggester:   suggester,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *submissionService) SubmitLink(ctx context.Context, payload dto.SubmitLinkRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if _, err := s.lookupAssignment(ctx, payload.AssignmentID); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if err := s.lookupStudent(ctx, payload.StudentID); err != nil {
		return dto.SubmissionResponse{}, err
	}

	unlock := s.locks.Lock(pairKey(payload.AssignmentID, payload.StudentID))
	defer unlock()

	submission, err := s.submissions.GetByPair(ctx, payload.AssignmentID, payload.StudentID)
	switch {
	case err == nil:
		if !submission.AcceptsNewWork() {
			return dto.SubmissionResponse{}, ErrSubmissionLocked
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		submission = models.Submission{
			AssignmentID: payload.AssignmentID,
			StudentID:    payload.StudentID,
		}
	default:
		return dto.SubmissionResponse{}, err
	}

	now := s.now().UTC()
	submission.Status = models.SubmissionStatusSubmitted
	// A submitted record may never carry the redo flag.
	submission.IsRedoRequired = false
	submission.SubmittedLink = payload.Link
	submission.SubmittedAt = now

	if submission.ID == 0 {
		err = s.submissions.Create(ctx, &submission)
	} else {
		err = s.submissions.Update(ctx, &submission)
	}
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	reloaded, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", reloaded.ID).
		Uint("assignment_id", payload.AssignmentID).
		Uint("student_id", payload.StudentID).
		Msg("link submission recorded")

	return dto.NewSubmissionResponse(reloaded), nil
}

func (s *submissionService) RecordAttempt(ctx context.Context, payload dto.RecordAttemptRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	assignment, err := s.lookupAssignment(ctx, payload.AssignmentID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if err := s.lookupStudent(ctx, payload.StudentID); err != nil {
		return dto.SubmissionResponse{}, err
	}

	unlock := s.locks.Lock(pairKey(payload.AssignmentID, payload.StudentID))
	defer unlock()

	submission, err := s.submissions.GetByPair(ctx, payload.AssignmentID, payload.StudentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, err
		}
		submission = models.Submission{
			AssignmentID: payload.AssignmentID,
			StudentID:    payload.StudentID,
		}
	}

	occurredAt := s.now().UTC()
	if payload.OccurredAt != nil {
		occurredAt = payload.OccurredAt.UTC()
	}

	detectedErrors, err := dto.MarshalDetectedErrors(payload.DetectedErrors)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	// The append is unconditional: the attempt ledger stays a faithful
	// history even when grading state is stale.
	attempt := models.Attempt{
		AttemptIndex:      len(submission.Attempts),
		Score:             payload.Score,
		Status:            payload.Status,
		CompletedArtifact: payload.CompletedArtifact,
		DetectedErrors:    detectedErrors,
		CategoryPayload:   datatypes.JSONMap(payload.CategoryPayload),
		TimeSpentSeconds:  payload.TimeSpentSeconds,
		Late:              assignment.IsPastDue(occurredAt),
	}

	submission.Status = models.SubmissionStatusSubmitted
	submission.IsRedoRequired = false
	submission.SubmittedAt = occurredAt

	if err := s.submissions.AppendAttempt(ctx, &submission, &attempt); err != nil {
		return dto.SubmissionResponse{}, err
	}

	observability.AttemptsAppended().WithLabelValues(string(assignment.Category)).Inc()

	s.suggestGrade(ctx, assignment, &submission, attempt)

	if s.events != nil {
		_ = s.events.Publish(ctx, DomainEvent{
			Kind:       EventSubmissionAttemptAdded,
			EntityType: "submission",
			EntityID:   pairKey(submission.AssignmentID, submission.StudentID),
			Payload: map[string]interface{}{
				"submission_id": submission.ID,
				"attempt_index": attempt.AttemptIndex,
				"score":         attempt.Score,
				"late":          attempt.Late,
			},
		})
	}

	reloaded, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", reloaded.ID).
		Int("attempt_index", attempt.AttemptIndex).
		Msg("attempt appended")

	return dto.NewSubmissionResponse(reloaded), nil
}

func (s *submissionService) Grade(ctx context.Context, submissionID uint, payload dto.GradeRequest, actor ActivityActor) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/classboard-go-api/internal/service/submission")
	ctx, span := tracer.Start(ctx, "submission.grade")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	unlock := s.locks.Lock(pairKey(submission.AssignmentID, submission.StudentID))
	defer unlock()

	// Re-read under the pair lock so a concurrent attempt append cannot be
	// overwritten by a stale grade write.
	submission, err = s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	maxScore := submission.Assignment.MaxScore
	if maxScore <= 0 {
		maxScore = 100
	}

	if payload.Grade < 0 || payload.Grade > maxScore {
		span.SetStatus(codes.Error, "grade_out_of_range")
		return dto.SubmissionResponse{}, ErrGradeOutOfRange
	}

	now := s.now().UTC()
	grade := payload.Grade
	submission.Status = models.SubmissionStatusGraded
	submission.Grade = &grade
	submission.TeacherFeedback = payload.Feedback
	submission.GradedDriveLink = payload.GradedDriveLink
	// Always the explicit argument, never a stale prior value.
	submission.IsRedoRequired = payload.IsRedoRequired

	if err := s.submissions.Update(ctx, &submission); err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	history := models.SubmissionGradeHistory{
		SubmissionID:   submission.ID,
		Score:          payload.Grade,
		Feedback:       payload.Feedback,
		IsRedoRequired: payload.IsRedoRequired,
		GradedBy:       actor.ID,
		GradedAt:       now,
	}
	if err := s.submissions.CreateGradeHistory(ctx, &history); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to persist grading history")
	}

	observability.GradesWritten().WithLabelValues(boolLabel(payload.IsRedoRequired)).Inc()

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "submission.graded",
			EntityType: "submission",
			EntityID:   &submission.ID,
			Metadata: map[string]interface{}{
				"assignment_id":    submission.AssignmentID,
				"student_id":       submission.StudentID,
				"grade":            payload.Grade,
				"is_redo_required": payload.IsRedoRequired,
			},
		})
	}

	if s.events != nil {
		_ = s.events.Publish(ctx, DomainEvent{
			Kind:       EventSubmissionGraded,
			EntityType: "submission",
			EntityID:   pairKey(submission.AssignmentID, submission.StudentID),
			Payload: map[string]interface{}{
				"submission_id":    submission.ID,
				"grade":            payload.Grade,
				"is_redo_required": payload.IsRedoRequired,
			},
		})
	}

	span.SetAttributes(attribute.Float64("grading.grade", payload.Grade))

	reloaded, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(reloaded), nil
}

func (s *submissionService) Get(ctx context.Context, assignmentID, studentID uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByPair(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		AssignmentID: filter.AssignmentID,
		StudentID:    filter.StudentID,
		Status:       filter.Status,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) lookupAssignment(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (s *submissionService) lookupStudent(ctx context.Context, id uint) error {
	if _, err := s.catalog.GetStudentByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}

	return nil
}

// suggestGrade asks the advisory grader for a suggestion on completed
// attempts. Failures only log; the attempt is already persisted.
func (s *submissionService) suggestGrade(ctx context.Context, assignment models.Assignment, submission *models.Submission, attempt models.Attempt) {
	if s.suggester == nil || attempt.Status != models.AttemptStatusCompleted {
		return
	}

	suggested, err := s.suggester.Suggest(ctx, assignment, attempt)
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("grade suggestion failed")
		return
	}

	submission.AISuggestedGrade = &suggested
	if err := s.submissions.Update(ctx, submission); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to store suggested grade")
	}
}

func boolLabel(value bool) string {
	if value {
		return "true"
	}
	return "false"
}
