package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/app"
	"github.com/codeschool/lms-service/internal/config"
	"github.com/codeschool/lms-service/internal/database"
	"github.com/codeschool/lms-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewWithConfig(cfg.Logging.Level, cfg.Logging.Pretty, cfg.Logging.NoColor)

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations(cfg, log, os.Args[2:])
			return
		case "worker":
			runWorker(cfg, log)
			return
		case "serve":
		default:
			log.Fatal().Str("command", os.Args[1]).Msg("Unknown command. Use serve, migrate or worker")
		}
	}

	runServer(cfg, log)
}

func runServer(cfg *config.Config, log zerolog.Logger) {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	log.Info().Msg("Database connection established")

	application, err := app.New(cfg, log, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	go func() {
		if err := application.Run(); err != nil {
			log.Fatal().Err(err).Msg("Failed to run application")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown gracefully")
	}
}

// runMigrations handles `migrate [up|down] [-force N]`.
func runMigrations(cfg *config.Config, log zerolog.Logger, args []string) {
	direction := "up"
	if len(args) > 0 && (args[0] == "up" || args[0] == "down") {
		direction = args[0]
		args = args[1:]
	}

	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	force := migrateCmd.Int("force", -1, "force the schema version before migrating, clearing the dirty flag")
	migrateCmd.Parse(args)

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, cfg.Database.MigrationsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrator")
	}

	if *force >= 0 {
		if err := migrator.Force(*force); err != nil {
			log.Fatal().Err(err).Msg("Failed to force migration version")
		}
		log.Info().Int("version", *force).Msg("Migration version forced")
	}

	switch direction {
	case "up":
		if err := migrator.Up(); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Msg("Migrations applied successfully")
	case "down":
		if err := migrator.Down(); err != nil {
			log.Fatal().Err(err).Msg("Failed to rollback migrations")
		}
		log.Info().Msg("Migrations rolled back successfully")
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read migration version")
		return
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Current schema version")
}

func runWorker(cfg *config.Config, log zerolog.Logger) {
	w, err := app.NewWorker(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create notification worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	if err := w.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start notification worker")
	}

	log.Info().Msg("Standalone notification worker started")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := w.Stop(); err != nil {
				log.Error().Err(err).Msg("Failed to stop notification worker")
			}
			return
		case <-ticker.C:
			stats := w.Stats()
			log.Info().
				Int("processed", stats.Processed).
				Int("failed", stats.Failed).
				Int("dropped", stats.Dropped).
				Int("busy", stats.Busy).
				Msg("Worker stats")
		}
	}
}
