package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/classboard-go-api/internal/dto"
	"github.com/noah-isme/classboard-go-api/internal/models"
	"github.com/noah-isme/classboard-go-api/internal/repository"
)

type fakeSubmissionRepo struct {
	submissions map[uint]*models.Submission
	histories   []models.SubmissionGradeHistory
	nextID      uint
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{submissions: map[uint]*models.Submission{}, nextID: 1}
}

func (f *fakeSubmissionRepo) List(ctx context.Context, filter repository.SubmissionFilter) ([]models.Submission, error) {
	var result []models.Submission
	for _, submission := range f.submissions {
		if filter.AssignmentID != nil && submission.AssignmentID != *filter.AssignmentID {
			continue
		}
		if filter.StudentID != nil && submission.StudentID != *filter.StudentID {
			continue
		}
		if filter.Status != nil && submission.Status != *filter.Status {
			continue
		}
		result = append(result, *submission)
	}
	return result, nil
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	if submission, ok := f.submissions[id]; ok {
		return *submission, nil
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (f *fakeSubmissionRepo) GetByPair(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	for _, submission := range f.submissions {
		if submission.AssignmentID == assignmentID && submission.StudentID == studentID {
			return *submission, nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	submission.ID = f.nextID
	f.nextID++
	stored := *submission
	f.submissions[submission.ID] = &stored
	return nil
}

func (f *fakeSubmissionRepo) Update(ctx context.Context, submission *models.Submission) error {
	stored, ok := f.submissions[submission.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	attempts := stored.Attempts
	assignment := stored.Assignment
	updated := *submission
	updated.Attempts = attempts
	updated.Assignment = assignment
	f.submissions[submission.ID] = &updated
	return nil
}

func (f *fakeSubmissionRepo) AppendAttempt(ctx context.Context, submission *models.Submission, attempt *models.Attempt) error {
	if submission.ID == 0 {
		if err := f.Create(ctx, submission); err != nil {
			return err
		}
	} else if err := f.Update(ctx, submission); err != nil {
		return err
	}
	attempt.SubmissionID = submission.ID
	attempt.CreatedAt = time.Now().UTC()
	stored := f.submissions[submission.ID]
	stored.Attempts = append(stored.Attempts, *attempt)
	return nil
}

func (f *fakeSubmissionRepo) CreateGradeHistory(ctx context.Context, entry *models.SubmissionGradeHistory) error {
	f.histories = append(f.histories, *entry)
	return nil
}

type fakeAssignmentRepo struct {
	assignments map[uint]models.Assignment
}

func (f *fakeAssignmentRepo) List(ctx context.Context, filter repository.AssignmentFilter) ([]models.Assignment, int64, error) {
	all, err := f.ListAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	return all, int64(len(all)), nil
}

func (f *fakeAssignmentRepo) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	if assignment, ok := f.assignments[id]; ok {
		return assignment, nil
	}
	return models.Assignment{}, gorm.ErrRecordNotFound
}

func (f *fakeAssignmentRepo) ListAll(ctx context.Context) ([]models.Assignment, error) {
	result := make([]models.Assignment, 0, len(f.assignments))
	for _, assignment := range f.assignments {
		result = append(result, assignment)
	}
	return result, nil
}

func (f *fakeAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	if f.assignments == nil {
		f.assignments = map[uint]models.Assignment{}
	}
	assignment.ID = uint(len(f.assignments) + 1)
	f.assignments[assignment.ID] = *assignment
	return nil
}

func (f *fakeAssignmentRepo) Update(ctx context.Context, assignment *models.Assignment) error {
	f.assignments[assignment.ID] = *assignment
	return nil
}

type fakeCatalogRepo struct {
	students    map[uint]models.Student
	classes     map[uint]models.Class
	enrollments []models.Enrollment
}

func (f *fakeCatalogRepo) ListStudents(ctx context.Context) ([]models.Student, error) {
	result := make([]models.Student, 0, len(f.students))
	for _, student := range f.students {
		result = append(result, student)
	}
	return result, nil
}

func (f *fakeCatalogRepo) ListClasses(ctx context.Context) ([]models.Class, error) {
	result := make([]models.Class, 0, len(f.classes))
	for _, class := range f.classes {
		result = append(result, class)
	}
	return result, nil
}

func (f *fakeCatalogRepo) ListEnrollments(ctx context.Context) ([]models.Enrollment, error) {
	return f.enrollments, nil
}

func (f *fakeCatalogRepo) ListEnrolledStudents(ctx context.Context, classID uint) ([]models.Student, error) {
	var result []models.Student
	for _, enrollment := range f.enrollments {
		if enrollment.ClassID == classID {
			if student, ok := f.students[enrollment.StudentID]; ok {
				result = append(result, student)
			}
		}
	}
	return result, nil
}

func (f *fakeCatalogRepo) GetStudentByID(ctx context.Context, id uint) (models.Student, error) {
	if student, ok := f.students[id]; ok {
		return student, nil
	}
	return models.Student{}, gorm.ErrRecordNotFound
}

func (f *fakeCatalogRepo) GetClassByID(ctx context.Context, id uint) (models.Class, error) {
	if class, ok := f.classes[id]; ok {
		return class, nil
	}
	return models.Class{}, gorm.ErrRecordNotFound
}

func (f *fakeCatalogRepo) IsEnrolled(ctx context.Context, classID, studentID uint) (bool, error) {
	for _, enrollment := range f.enrollments {
		if enrollment.ClassID == classID && enrollment.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func testCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		students: map[uint]models.Student{
			1: {ID: 1, Name: "Budi Santoso"},
			2: {ID: 2, Name: "Siti Rahma"},
		},
		classes: map[uint]models.Class{
			10: {ID: 10, Name: "English Basic A"},
		},
		enrollments: []models.Enrollment{
			{ClassID: 10, StudentID: 1},
			{ClassID: 10, StudentID: 2},
		},
	}
}

func testAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{
		assignments: map[uint]models.Assignment{
			100: {
				ID:       100,
				ClassID:  10,
				Title:    "Vocabulary Quiz 3",
				Category: models.CategoryVocabulary,
				DueDate:  time.Now().Add(24 * time.Hour),
				MaxScore: 100,
			},
		},
	}
}

func newTestSubmissionService(subRepo *fakeSubmissionRepo) SubmissionService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewSubmissionService(subRepo, testAssignmentRepo(), testCatalogRepo(), validate, nil, nil, nil, testLogger())
}

func TestSubmitLinkCreatesSubmission(t *testing.T) {
	repo := newFakeSubmissionRepo()
	svc := newTestSubmissionService(repo)

	result, err := svc.SubmitLink(context.Background(), dto.SubmitLinkRequest{
		AssignmentID: 100,
		StudentID:    1,
		Link:         "https://drive.example.com/doc/123",
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusSubmitted, result.Status)
	require.False(t, result.IsRedoRequired)
	require.Equal(t, "https://drive.example.com/doc/123", result.SubmittedLink)
}

func TestSubmitLinkRejectedWhenGradedAndLocked(t *testing.T) {
	repo := newFakeSubmissionRepo()
	grade := 85.0
	require.NoError(t, repo.Create(context.Background(), &models.Submission{
		AssignmentID:   100,
		StudentID:      1,
		Status:         models.SubmissionStatusGraded,
		IsRedoRequired: false,
		Grade:          &grade,
	}))
	svc := newTestSubmissionService(repo)

	_, err := svc.SubmitLink(context.Background(), dto.SubmitLinkRequest{
		AssignmentID: 100,
		StudentID:    1,
		Link:         "https://drive.example.com/doc/456",
	})
	require.ErrorIs(t, err, ErrSubmissionLocked)
}

func TestSubmitLinkAllowedWhenRedoRequired(t *testing.T) {
	repo := newFakeSubmissionRepo()
	grade := 40.0
	require.NoError(t, repo.Create(context.Background(), &models.Submission{
		AssignmentID:   100,
		StudentID:      1,
		Status:         models.SubmissionStatusGraded,
		IsRedoRequired: true,
		Grade:          &grade,
	}))
	svc := newTestSubmissionService(repo)

	result, err := svc.SubmitLink(context.Background(), dto.SubmitLinkRequest{
		AssignmentID: 100,
		StudentID:    1,
		Link:         "https://drive.example.com/doc/redo",
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusSubmitted, result.Status)
	// Returning to submitted always clears the redo flag.
	require.False(t, result.IsRedoRequired)
}

func TestSubmitLinkUnknownAssignment(t *testing.T) {
	svc := newTestSubmissionService(newFakeSubmissionRepo())

	_, err := svc.SubmitLink(context.Background(), dto.SubmitLinkRequest{
		AssignmentID: 999,
		StudentID:    1,
		Link:         "https://drive.example.com/doc/123",
	})
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestRecordAttemptAppendsInOrder(t *testing.T) {
	repo := newFakeSubmissionRepo()
	svc := newTestSubmissionService(repo)

	first, err := svc.RecordAttempt(context.Background(), dto.RecordAttemptRequest{
		AssignmentID: 100,
		StudentID:    1,
		Score:        60,
		Status:       models.AttemptStatusCompleted,
	})
	require.NoError(t, err)
	require.Len(t, first.Attempts, 1)
	require.Equal(t, 0, first.Attempts[0].AttemptIndex)

	second, err := svc.RecordAttempt(context.Background(), dto.RecordAttemptRequest{
		AssignmentID: 100,
		StudentID:    1,
		Score:        75,
		Status:       models.AttemptStatusCompleted,
	})
	require.NoError(t, err)
	require.Len(t, second.Attempts, 2)
	require.Equal(t, 1, second.Attempts[1].AttemptIndex)
	require.Equal(t, 60.0, second.Attempts[0].Score)
	require.Equal(t, 75.0, second.Attempts[1].Score)
}

func TestRecordAttemptAcceptedOnGradedSubmission(t *testing.T) {
	repo := newFakeSubmissionRepo()
	grade := 90.0
	require.NoError(t, repo.Create(context.Background(), &models.Submission{
		AssignmentID: 100,
		StudentID:    1,
		Status:       models.SubmissionStatusGraded,
		Grade:        &grade,
	}))
	svc := newTestSubmissionService(repo)

	// Attempt appends are unconditional: the ledger keeps growing even after
	// grading, and the submission returns to the submitted state.
	result, err := svc.RecordAttempt(context.Background(), dto.RecordAttemptRequest{
		AssignmentID: 100,
		StudentID:    1,
		Score:        95,
		Status:       models.AttemptStatusCompleted,
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusSubmitted, result.Status)
	require.False(t, result.IsRedoRequired)
	require.Len(t, result.Attempts, 1)
}

func TestRecordAttemptFlagsLateRuns(t *testing.T) {
	repo := newFakeSubmissionRepo()
	svc := newTestSubmissionService(repo)

	occurredAt := time.Now().Add(72 * time.Hour)
	result, err := svc.RecordAttempt(context.Background(), dto.RecordAttemptRequest{
		AssignmentID: 100,
		StudentID:    1,
		Score:        80,
		Status:       models.AttemptStatusCompleted,
		OccurredAt:   &occurredAt,
	})
	require.NoError(t, err)
	require.True(t, result.Attempts[0].Late)
}

func TestGradeRejectsOutOfRange(t *testing.T) {
	repo := newFakeSubmissionRepo()
	require.NoError(t, repo.Create(context.Background(), &models.Submission{
		AssignmentID: 100,
		StudentID:    1,
		Status:       models.SubmissionStatusSubmitted,
		Assignment:   models.Assignment{ID: 100, MaxScore: 100},
	}))
	svc := newTestSubmissionService(repo)

	_, err := svc.Grade(context.Background(), 1, dto.GradeRequest{Grade: 150}, ActivityActor{ID: 7, Role: "teacher"})
	require.ErrorIs(t, err, ErrGradeOutOfRange)
	require.Empty(t, repo.histories)
}

func TestGradeSetsStateAndHistory(t *testing.T) {
	repo := newFakeSubmissionRepo()
	require.NoError(t, repo.Create(context.Background(), &models.Submission{
		AssignmentID: 100,
		StudentID:    1,
		Status:       models.SubmissionStatusSubmitted,
		Assignment:   models.Assignment{ID: 100, MaxScore: 100},
	}))
	svc := newTestSubmissionService(repo)

	result, err := svc.Grade(context.Background(), 1, dto.GradeRequest{
		Grade:          88,
		Feedback:       "solid work",
		IsRedoRequired: false,
	}, ActivityActor{ID: 7, Role: "teacher"})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusGraded, result.Status)
	require.Equal(t, 88.0, *result.Grade)
	require.Equal(t, "solid work", result.TeacherFeedback)
	require.Len(t, repo.histories, 1)
	require.Equal(t, uint(7), repo.histories[0].GradedBy)
}

func TestGradeWithRedoAllowsResubmission(t *testing.T) {
	repo := newFakeSubmissionRepo()
	require.NoError(t, repo.Create(context.Background(), &models.Submission{
		AssignmentID: 100,
		StudentID:    1,
		Status:       models.SubmissionStatusSubmitted,
		Assignment:   models.Assignment{ID: 100, MaxScore: 100},
	}))
	svc := newTestSubmissionService(repo)

	graded, err := svc.Grade(context.Background(), 1, dto.GradeRequest{
		Grade:          40,
		Feedback:       "please redo",
		IsRedoRequired: true,
	}, ActivityActor{ID: 7, Role: "teacher"})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusGraded, graded.Status)
	require.True(t, graded.IsRedoRequired)

	resubmitted, err := svc.SubmitLink(context.Background(), dto.SubmitLinkRequest{
		AssignmentID: 100,
		StudentID:    1,
		Link:         "https://drive.example.com/doc/redo",
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusSubmitted, resubmitted.Status)
	require.False(t, resubmitted.IsRedoRequired)
	// The old grade stays visible until the teacher grades again.
	require.NotNil(t, resubmitted.Grade)
	require.Equal(t, 40.0, *resubmitted.Grade)
}

func TestGradeUnknownSubmission(t *testing.T) {
	svc := newTestSubmissionService(newFakeSubmissionRepo())

	_, err := svc.Grade(context.Background(), 42, dto.GradeRequest{Grade: 50}, ActivityActor{ID: 7, Role: "teacher"})
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}
