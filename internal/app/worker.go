package app

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/config"
	"github.com/codeschool/lms-service/internal/models"
	"github.com/codeschool/lms-service/internal/service/integration"
	"github.com/codeschool/lms-service/internal/worker"
	"github.com/codeschool/lms-service/internal/worker/queue"
	"github.com/codeschool/lms-service/pkg/rabbitmq"
)

// Worker consumes side-effect events: review emails and attachment cleanup.
// It runs embedded in the API process or on its own via the worker command.
type Worker struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	worker  worker.NotificationWorker
	logger  zerolog.Logger
}

func NewWorker(cfg *config.Config, log zerolog.Logger) (*Worker, error) {
	conn, err := rabbitmq.NewConnection(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	channel, err := rabbitmq.NewChannel(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	err = rabbitmq.DeclareTopology(channel, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.QueueName,
		models.RoutingKeyHomeworkReviewed,
		models.RoutingKeyAttachmentsSuperseded,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	storage, err := integration.NewMinIOStorageClient(
		cfg.MinIO.Endpoint,
		cfg.MinIO.AccessKey,
		cfg.MinIO.SecretKey,
		cfg.MinIO.Bucket,
		cfg.MinIO.PublicBaseURL,
		cfg.MinIO.UseSSL,
		log,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	consumer := queue.NewRabbitMQConsumer(
		channel,
		cfg.RabbitMQ.QueueName,
		cfg.RabbitMQ.ConsumerTag,
		cfg.RabbitMQ.Prefetch,
		log,
	)

	handler := worker.NewHandler(newEmailSender(cfg, log), storage, cfg.Server.FrontendBaseURL, log)
	pool := worker.NewWorkerPool(cfg.Worker.MaxWorkers, log)

	return &Worker{
		conn:    conn,
		channel: channel,
		worker:  worker.NewNotificationWorker(pool, consumer, handler, cfg.Worker.TaskTimeout, log),
		logger:  log,
	}, nil
}

func (w *Worker) Start(ctx context.Context) error {
	return w.worker.Start(ctx)
}

func (w *Worker) Stop() error {
	if err := w.worker.Stop(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to stop notification worker")
	}

	if err := w.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		w.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
	}

	if err := w.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("failed to close RabbitMQ connection: %w", err)
	}
	return nil
}

func (w *Worker) Stats() worker.WorkerStats {
	return w.worker.GetStats()
}

// newEmailSender falls back to logging emails when no SendGrid key is set.
func newEmailSender(cfg *config.Config, log zerolog.Logger) integration.EmailSender {
	if cfg.Email.SendgridAPIKey == "" {
		log.Warn().Msg("SendGrid API key is not set, review emails will only be logged")
		return integration.NewLogSender(log)
	}
	return integration.NewSendgridSender(
		cfg.Email.SendgridAPIKey,
		cfg.Email.FromName,
		cfg.Email.FromAddress,
		cfg.Email.SubjectPrefix,
		log,
	)
}
