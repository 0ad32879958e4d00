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

	"github.com/lumenlms/pocketsync/internal/config"
	"github.com/lumenlms/pocketsync/internal/connectivity"
	"github.com/lumenlms/pocketsync/internal/database"
	"github.com/lumenlms/pocketsync/internal/handler"
	"github.com/lumenlms/pocketsync/internal/middleware"
	"github.com/lumenlms/pocketsync/internal/remote"
	"github.com/lumenlms/pocketsync/internal/repository"
	"github.com/lumenlms/pocketsync/internal/router"
	"github.com/lumenlms/pocketsync/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	store := database.NewStore()
	if err := store.Open(cfg.StorePath); err != nil {
		log.Fatalf("failed to open local store: %v", err)
	}
	db, err := store.DB()
	if err != nil {
		log.Fatalf("local store not ready: %v", err)
	}

	client := remote.NewClient(cfg.ServerBaseURL, cfg.RequestTimeout, logger)
	watcher := connectivity.NewManualWatcher(true)

	validate := validator.New(validator.WithRequiredStructEnabled())

	clockRepo := repository.NewClockStateRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	statusRepo := repository.NewStatusRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	checkpointRepo := repository.NewCheckpointRepository(db)

	clockService := service.NewClockService(clockRepo, cfg.ClockForwardTolerance, logger)
	freshnessService := service.NewFreshnessService(checkpointRepo, service.FreshnessBudgets{
		Courses:          cfg.FreshnessCourses,
		AssessmentDetail: cfg.FreshnessDetail,
		QuestionSets:     cfg.FreshnessQuestions,
	}, logger)
	attemptService := service.NewAttemptService(
		attemptRepo, uploadRepo, assessmentRepo,
		clockService, client,
		cfg.AnswerDebounce, cfg.IntegrityCheckEvery,
		logger,
	)
	syncService := service.NewSyncService(
		clockService, client,
		attemptRepo, uploadRepo, statusRepo, courseRepo, assessmentRepo,
		freshnessService, cfg.SyncCooldown,
		logger,
	)
	courseService := service.NewCourseService(courseRepo, assessmentRepo, client, freshnessService, watcher, logger)
	sessionService := service.NewSessionService(client, clockService, logger)

	sessionHandler := handler.NewSessionHandler(sessionService, validate, logger)
	courseHandler := handler.NewCourseHandler(courseService, logger)
	attemptHandler := handler.NewAttemptHandler(attemptService, validate, logger)
	syncHandler := handler.NewSyncHandler(syncService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, logger)
	router.Register(app, cfg, router.Dependencies{
		Store:          store,
		Watcher:        watcher,
		SessionHandler: sessionHandler,
		CourseHandler:  courseHandler,
		AttemptHandler: attemptHandler,
		SyncHandler:    syncHandler,
	})

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if cfg.UserEmail != "" {
		// Auto-sync on every offline-to-online edge for the configured
		// session owner.
		go syncService.Watch(watchCtx, cfg.UserEmail, watcher)
	}

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start agent api: %v", err)
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

	log.Println("agent stopped")
}
