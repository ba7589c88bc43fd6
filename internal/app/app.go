package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/config"
	"github.com/codeschool/lms-service/internal/delivery/httpd"
	"github.com/codeschool/lms-service/internal/middleware"
	"github.com/codeschool/lms-service/internal/repository"
	"github.com/codeschool/lms-service/internal/service"
	"github.com/codeschool/lms-service/internal/service/integration"
)

type App struct {
	server    *http.Server
	logger    zerolog.Logger
	config    *config.Config
	db        *sql.DB
	publisher integration.EventPublisher
	worker    *Worker
	cancel    context.CancelFunc
}

func New(cfg *config.Config, log zerolog.Logger, db *sql.DB) (*App, error) {
	retry := repository.RetryPolicy{
		Count: cfg.Database.RetryCount,
		Delay: cfg.Database.RetryDelay,
	}

	courseRepo := repository.NewCourseRepository(db, log, retry)
	enrollmentRepo := repository.NewEnrollmentRepository(db, log, retry)
	progressRepo := repository.NewProgressRepository(db, log, retry)
	homeworkRepo := repository.NewHomeworkRepository(db, log, retry)
	studentRepo := repository.NewStudentRepository(db, log, retry)

	// Side effects are best effort: without a broker the API keeps serving
	// and events are only logged.
	publisher, err := integration.NewRabbitMQClient(
		cfg.RabbitMQ.URL,
		cfg.RabbitMQ.Exchange,
		cfg.RabbitMQ.QueueName,
		log,
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to RabbitMQ, events will only be logged")
		publisher = integration.NewLogPublisher(log)
	}

	var notificationWorker *Worker
	if cfg.Worker.Embedded {
		notificationWorker, err = NewWorker(cfg, log)
		if err != nil {
			log.Warn().Err(err).Msg("Embedded notification worker is disabled")
		}
	}

	learningService := service.NewLearningService(courseRepo, enrollmentRepo, progressRepo, homeworkRepo, log)
	progressService := service.NewProgressService(courseRepo, enrollmentRepo, progressRepo, homeworkRepo, log)
	homeworkService := service.NewHomeworkService(courseRepo, enrollmentRepo, progressRepo, homeworkRepo, publisher, log)
	studentService := service.NewStudentService(studentRepo, log)

	handler := httpd.NewHandler(
		learningService,
		progressService,
		homeworkService,
		studentService,
		repository.NewPostgresRepository(db, log, retry),
		cfg.Auth,
		log,
	)

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middleware.NewCORS(cfg.CORS))

	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		server:    server,
		logger:    log,
		config:    cfg,
		db:        db,
		publisher: publisher,
		worker:    notificationWorker,
	}, nil
}

func (a *App) Run() error {
	if a.worker != nil {
		ctx, cancel := context.WithCancel(context.Background())
		a.cancel = cancel
		if err := a.worker.Start(ctx); err != nil {
			a.logger.Error().Err(err).Msg("Failed to start notification worker")
			return err
		}
	}

	a.logger.Info().Msgf("Starting LMS service on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down LMS service...")

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Failed to shutdown HTTP server")
		return err
	}

	if a.worker != nil {
		if err := a.worker.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop notification worker")
		}
		if a.cancel != nil {
			a.cancel()
		}
	}

	if err := a.publisher.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close event publisher")
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}

	a.logger.Info().Msg("LMS service stopped")
	return nil
}
