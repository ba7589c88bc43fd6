package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/models"
	"github.com/codeschool/lms-service/internal/service/integration"
	"github.com/codeschool/lms-service/internal/worker/queue"
)

type NotificationWorker interface {
	Start(ctx context.Context) error
	Stop() error
	GetStats() WorkerStats
}

type WorkerStats struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Dropped   int `json:"dropped"`
	Busy      int `json:"busy"`
}

// Handler performs the side effects behind each routing key.
type Handler struct {
	emailSender     integration.EmailSender
	storage         integration.StorageClient
	frontendBaseURL string
	logger          zerolog.Logger
}

func NewHandler(emailSender integration.EmailSender, storage integration.StorageClient, frontendBaseURL string, logger zerolog.Logger) *Handler {
	return &Handler{
		emailSender:     emailSender,
		storage:         storage,
		frontendBaseURL: frontendBaseURL,
		logger:          logger,
	}
}

func (h *Handler) Handle(ctx context.Context, routingKey string, body []byte) error {
	switch routingKey {
	case models.RoutingKeyHomeworkReviewed:
		return h.handleHomeworkReviewed(ctx, body)
	case models.RoutingKeyAttachmentsSuperseded:
		return h.handleAttachmentsSuperseded(ctx, body)
	default:
		return permanent(fmt.Errorf("unknown routing key %q", routingKey))
	}
}

func (h *Handler) handleHomeworkReviewed(ctx context.Context, body []byte) error {
	var event models.HomeworkReviewedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return permanent(fmt.Errorf("failed to unmarshal event: %w", err))
	}
	if strings.TrimSpace(event.SubmissionID) == "" {
		return permanent(errors.New("empty submission_id"))
	}

	msg, err := integration.RenderHomeworkReviewed(&event, h.frontendBaseURL)
	if err != nil {
		return permanent(err)
	}

	if err := h.emailSender.Send(ctx, msg); err != nil {
		if errors.Is(err, integration.ErrEmailRejected) {
			return permanent(err)
		}
		return err
	}

	h.logger.Info().
		Str("submission_id", event.SubmissionID).
		Str("student_id", event.StudentID).
		Str("decision", event.Decision).
		Msg("Review notification sent")

	return nil
}

func (h *Handler) handleAttachmentsSuperseded(ctx context.Context, body []byte) error {
	var event models.AttachmentsSupersededEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return permanent(fmt.Errorf("failed to unmarshal event: %w", err))
	}

	var failed []string
	for _, u := range event.URLs {
		key, ok := h.storage.ObjectKey(u)
		if !ok {
			h.logger.Debug().Str("url", u).Msg("Attachment is not stored by us, skipping")
			continue
		}
		if err := h.storage.DeleteObject(ctx, key); err != nil {
			h.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete attachment")
			failed = append(failed, key)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to delete %d of %d attachments", len(failed), len(event.URLs))
	}

	h.logger.Info().
		Str("submission_id", event.SubmissionID).
		Int("urls", len(event.URLs)).
		Msg("Superseded attachments cleaned up")

	return nil
}

type notificationWorker struct {
	workerPool    *WorkerPool
	queueConsumer queue.RabbitMQConsumer
	handler       *Handler
	taskTimeout   time.Duration
	logger        zerolog.Logger
	done          chan struct{}

	stats      WorkerStats
	statsMutex sync.Mutex
	startTime  time.Time
}

func NewNotificationWorker(
	workerPool *WorkerPool,
	queueConsumer queue.RabbitMQConsumer,
	handler *Handler,
	taskTimeout time.Duration,
	logger zerolog.Logger,
) NotificationWorker {
	if taskTimeout <= 0 {
		taskTimeout = 30 * time.Second
	}
	return &notificationWorker{
		workerPool:    workerPool,
		queueConsumer: queueConsumer,
		handler:       handler,
		taskTimeout:   taskTimeout,
		logger:        logger,
		done:          make(chan struct{}),
		startTime:     time.Now(),
	}
}

func (w *notificationWorker) Start(ctx context.Context) error {
	w.logger.Info().Msg("Starting notification worker...")

	w.workerPool.Start()

	msgs, err := w.queueConsumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	go w.processMessages(ctx, msgs)

	w.logger.Info().Msg("Notification worker started")
	return nil
}

func (w *notificationWorker) Stop() error {
	w.logger.Info().Msg("Stopping notification worker...")

	if err := w.queueConsumer.Close(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to close queue consumer")
	}

	select {
	case <-w.done:
	case <-time.After(10 * time.Second):
		w.logger.Warn().Msg("Timed out waiting for the delivery loop to exit")
	}

	w.workerPool.Stop()

	stats := w.GetStats()
	w.logger.Info().
		Int("processed", stats.Processed).
		Int("failed", stats.Failed).
		Int("dropped", stats.Dropped).
		Dur("uptime", time.Since(w.startTime)).
		Msg("Notification worker stopped")

	return nil
}

func (w *notificationWorker) GetStats() WorkerStats {
	w.statsMutex.Lock()
	defer w.statsMutex.Unlock()

	stats := w.stats
	stats.Busy = w.workerPool.Busy()
	return stats
}

func (w *notificationWorker) processMessages(ctx context.Context, msgs <-chan queue.RabbitMQMessage) {
	defer close(w.done)

	for msg := range msgs {
		msg := msg
		if !w.workerPool.Submit(ctx, func() { w.process(ctx, msg) }) {
			if err := msg.Nack(false, true); err != nil {
				w.logger.Error().Err(err).Msg("Failed to nack message")
			}
		}
	}
	w.logger.Info().Msg("Message processing stopped")
}

// process settles a delivery: ack on success or permanent failure, one
// requeue for transient failures, then drop.
func (w *notificationWorker) process(ctx context.Context, msg queue.RabbitMQMessage) {
	taskCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	err := w.handler.Handle(taskCtx, msg.RoutingKey, msg.Body)

	w.statsMutex.Lock()
	switch {
	case err == nil:
		w.stats.Processed++
	case isPermanentError(err) || msg.Redelivered:
		w.stats.Dropped++
	default:
		w.stats.Failed++
	}
	w.statsMutex.Unlock()

	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			w.logger.Error().Err(ackErr).Msg("Failed to ack message")
		}
		return
	}

	log := w.logger.Error().Err(err).Str("routing_key", msg.RoutingKey)
	if isPermanentError(err) || msg.Redelivered {
		log.Bool("redelivered", msg.Redelivered).Msg("Dropping message")
		if ackErr := msg.Ack(false); ackErr != nil {
			w.logger.Error().Err(ackErr).Msg("Failed to ack message")
		}
		return
	}

	log.Msg("Failed to process message, requeueing")
	if nackErr := msg.Nack(false, true); nackErr != nil {
		w.logger.Error().Err(nackErr).Msg("Failed to nack message")
	}
}
