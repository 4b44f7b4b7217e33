package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/classboard-go-api/internal/config"
	"github.com/noah-isme/classboard-go-api/internal/dto"
	"github.com/noah-isme/classboard-go-api/internal/handler"
	"github.com/noah-isme/classboard-go-api/internal/models"
	"github.com/noah-isme/classboard-go-api/internal/repository"
	"github.com/noah-isme/classboard-go-api/internal/router"
	"github.com/noah-isme/classboard-go-api/internal/service"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
}

func setupApp(t *testing.T) testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Class{},
		&models.Enrollment{},
		&models.Assignment{},
		&models.Submission{},
		&models.Attempt{},
		&models.SubmissionGradeHistory{},
		&models.PendingReport{},
		&models.ActivityLog{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	pendingReportRepo := repository.NewPendingReportRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, validate, logger)
	catalogService := service.NewCatalogService(catalogRepo, assignmentRepo, nil, time.Minute, logger)

	assignmentService := service.NewAssignmentService(assignmentRepo, catalogRepo, validate, activityService, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, catalogRepo, validate, nil, activityService, nil, logger)
	reconcileService := service.NewReconcileService(pendingReportRepo, assignmentRepo, catalogRepo, catalogService, submissionService, validate, nil, activityService, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret", IngestRateLimit: 1000, IngestRateWindow: time.Minute}, router.Dependencies{
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		ReportHandler:     handler.NewReportHandler(reconcileService, logger),
		ActivityHandler:   handler.NewActivityHandler(activityService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(1))
			role := c.Get("X-Test-Role")
			if role == "" {
				role = "teacher"
			}
			c.Locals("user_role", role)
			return c.Next()
		},
	})

	return testEnv{app: app, db: db}
}

func seedCatalog(t *testing.T, db *gorm.DB, suffix string) (models.Assignment, models.Student) {
	t.Helper()

	class := models.Class{Name: "English Basic " + suffix}
	require.NoError(t, db.Create(&class).Error)

	student := models.Student{Name: "Student " + suffix, Email: fmt.Sprintf("student-%s@example.com", suffix)}
	require.NoError(t, db.Create(&student).Error)
	require.NoError(t, db.Create(&models.Enrollment{ClassID: class.ID, StudentID: student.ID}).Error)

	assignment := models.Assignment{
		ClassID:  class.ID,
		Title:    "Quiz " + suffix,
		Category: models.CategoryVocabulary,
		DueDate:  time.Now().Add(24 * time.Hour),
		MaxScore: 100,
	}
	require.NoError(t, db.Create(&assignment).Error)

	return assignment, student
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}, headers map[string]string) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func TestSubmissionLifecycleOverHTTP(t *testing.T) {
	env := setupApp(t)
	assignment, student := seedCatalog(t, env.db, "lifecycle")

	// Submit a link.
	resp := postJSON(t, env.app, "/api/v2/submissions/link", dto.SubmitLinkRequest{
		AssignmentID: assignment.ID,
		StudentID:    student.ID,
		Link:         "https://drive.example.com/doc/1",
	}, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var submitBody struct {
		Success bool                   `json:"success"`
		Data    dto.SubmissionResponse `json:"data"`
	}
	decodeEnvelope(t, resp, &submitBody)
	require.True(t, submitBody.Success)
	require.Equal(t, models.SubmissionStatusSubmitted, submitBody.Data.Status)
	submissionID := submitBody.Data.ID

	// Record an attempt.
	resp = postJSON(t, env.app, "/api/v2/submissions/attempts", dto.RecordAttemptRequest{
		AssignmentID: assignment.ID,
		StudentID:    student.ID,
		Score:        72,
		Status:       models.AttemptStatusCompleted,
	}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var attemptBody struct {
		Data dto.SubmissionResponse `json:"data"`
	}
	decodeEnvelope(t, resp, &attemptBody)
	require.Len(t, attemptBody.Data.Attempts, 1)
	require.Equal(t, 0, attemptBody.Data.Attempts[0].AttemptIndex)

	// Grade it as a teacher.
	resp = postJSON(t, env.app, fmt.Sprintf("/api/v2/submissions/%d/grade", submissionID), dto.GradeRequest{
		Grade:    85,
		Feedback: "good effort",
	}, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var gradeBody struct {
		Data dto.SubmissionResponse `json:"data"`
	}
	decodeEnvelope(t, resp, &gradeBody)
	require.Equal(t, models.SubmissionStatusGraded, gradeBody.Data.Status)
	require.Equal(t, 85.0, *gradeBody.Data.Grade)

	// A second link submission is now rejected: graded and not flagged for redo.
	resp = postJSON(t, env.app, "/api/v2/submissions/link", dto.SubmitLinkRequest{
		AssignmentID: assignment.ID,
		StudentID:    student.ID,
		Link:         "https://drive.example.com/doc/2",
	}, nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestGradeRequiresTeacherRole(t *testing.T) {
	env := setupApp(t)
	assignment, student := seedCatalog(t, env.db, "rbac")

	resp := postJSON(t, env.app, "/api/v2/submissions/link", dto.SubmitLinkRequest{
		AssignmentID: assignment.ID,
		StudentID:    student.ID,
		Link:         "https://drive.example.com/doc/1",
	}, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var submitBody struct {
		Data dto.SubmissionResponse `json:"data"`
	}
	decodeEnvelope(t, resp, &submitBody)

	resp = postJSON(t, env.app, fmt.Sprintf("/api/v2/submissions/%d/grade", submitBody.Data.ID), dto.GradeRequest{
		Grade: 90,
	}, map[string]string{"X-Test-Role": "student"})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestGradeOutOfRangeOverHTTP(t *testing.T) {
	env := setupApp(t)
	assignment, student := seedCatalog(t, env.db, "range")

	resp := postJSON(t, env.app, "/api/v2/submissions/link", dto.SubmitLinkRequest{
		AssignmentID: assignment.ID,
		StudentID:    student.ID,
		Link:         "https://drive.example.com/doc/1",
	}, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var submitBody struct {
		Data dto.SubmissionResponse `json:"data"`
	}
	decodeEnvelope(t, resp, &submitBody)

	resp = postJSON(t, env.app, fmt.Sprintf("/api/v2/submissions/%d/grade", submitBody.Data.ID), dto.GradeRequest{
		Grade: 150,
	}, nil)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestSubmissionLookupNotFound(t *testing.T) {
	env := setupApp(t)

	req := httptest.NewRequest("GET", "/api/v2/submissions/lookup?assignment_id=99999&student_id=99999", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
