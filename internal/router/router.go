package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/classboard-go-api/internal/config"
	"github.com/noah-isme/classboard-go-api/internal/handler"
	"github.com/noah-isme/classboard-go-api/internal/middleware"
	"github.com/noah-isme/classboard-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler *handler.AssignmentHandler
	SubmissionHandler *handler.SubmissionHandler
	ReportHandler     *handler.ReportHandler
	ActivityHandler   *handler.ActivityHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	teacherOnly := middleware.RequireRole("teacher", "admin")

	// Assignment catalog
	if deps.AssignmentHandler != nil {
		assignments := app.Group("/api/v2/assignments", jwtMiddleware)
		deps.AssignmentHandler.Register(assignments)
	}

	// Submission lifecycle (link submissions, attempts, grading)
	if deps.SubmissionHandler != nil {
		submissions := app.Group("/api/v2/submissions", jwtMiddleware)
		deps.SubmissionHandler.Register(submissions)

		grading := app.Group("/api/v2/submissions", jwtMiddleware, teacherOnly)
		deps.SubmissionHandler.RegisterGrading(grading)
	}

	// Completion report ingest & resolution queue
	if deps.ReportHandler != nil {
		ingest := app.Group("/api/v2/reports", jwtMiddleware,
			middleware.RateLimit("report-ingest", cfg.IngestRateLimit, cfg.IngestRateWindow))
		deps.ReportHandler.RegisterIngest(ingest)

		resolution := app.Group("/api/v2/reports", jwtMiddleware, teacherOnly)
		deps.ReportHandler.RegisterResolution(resolution)
	}

	// Audit trail
	if deps.ActivityHandler != nil {
		activity := app.Group("/api/v2/activity", jwtMiddleware, teacherOnly)
		deps.ActivityHandler.Register(activity)
	}
}
