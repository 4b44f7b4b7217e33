package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/classboard-go-api/internal/config"
	"github.com/noah-isme/classboard-go-api/internal/database"
	"github.com/noah-isme/classboard-go-api/internal/handler"
	"github.com/noah-isme/classboard-go-api/internal/middleware"
	"github.com/noah-isme/classboard-go-api/internal/models"
	"github.com/noah-isme/classboard-go-api/internal/repository"
	"github.com/noah-isme/classboard-go-api/internal/router"
	"github.com/noah-isme/classboard-go-api/internal/service"
	"github.com/noah-isme/classboard-go-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Class{},
		&models.Enrollment{},
		&models.Assignment{},
		&models.Submission{},
		&models.Attempt{},
		&models.SubmissionGradeHistory{},
		&models.PendingReport{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, catalog snapshots will read the store directly")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, domain events will be dropped")
		natsConn = nil
	} else if natsConn != nil {
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	pendingReportRepo := repository.NewPendingReportRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	events := service.NewNATSPublisher(natsConn, cfg.EventSubjectBase, logger)
	activityService := service.NewActivityService(activityRepo, validate, logger)
	catalogService := service.NewCatalogService(catalogRepo, assignmentRepo, redisClient, cfg.CatalogCacheTTL, logger)

	var suggester service.GradeSuggester
	if cfg.OpenAIAPIKey != "" {
		openaiSuggester, err := ai.NewOpenAISuggester(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.AIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create ai suggester: %v", err)
		}
		suggester = service.NewAIGradeSuggester(openaiSuggester)
	}

	assignmentService := service.NewAssignmentService(assignmentRepo, catalogRepo, validate, activityService, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, catalogRepo, validate, events, activityService, suggester, logger)
	reconcileService := service.NewReconcileService(pendingReportRepo, assignmentRepo, catalogRepo, catalogService, submissionService, validate, events, activityService, logger)

	assignmentHandler := handler.NewAssignmentHandler(assignmentService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)
	reportHandler := handler.NewReportHandler(reconcileService, logger)
	activityHandler := handler.NewActivityHandler(activityService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler: assignmentHandler,
		SubmissionHandler: submissionHandler,
		ReportHandler:     reportHandler,
		ActivityHandler:   activityHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
