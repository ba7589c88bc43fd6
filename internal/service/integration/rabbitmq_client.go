package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/models"
	"github.com/codeschool/lms-service/pkg/rabbitmq"
)

// EventPublisher delivers post-commit side effects to the worker.
type EventPublisher interface {
	PublishHomeworkReviewed(ctx context.Context, event *models.HomeworkReviewedEvent) error
	PublishAttachmentsSuperseded(ctx context.Context, event *models.AttachmentsSupersededEvent) error
	Close() error
}

type rabbitMQClient struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   zerolog.Logger
}

func NewRabbitMQClient(url, exchange, queueName string, logger zerolog.Logger) (EventPublisher, error) {
	conn, err := rabbitmq.NewConnection(url)
	if err != nil {
		return nil, err
	}

	channel, err := rabbitmq.NewChannel(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	err = rabbitmq.DeclareTopology(channel, exchange, queueName,
		models.RoutingKeyHomeworkReviewed,
		models.RoutingKeyAttachmentsSuperseded,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	logger.Info().
		Str("exchange", exchange).
		Str("queue", queueName).
		Msg("Connected to RabbitMQ")

	return &rabbitMQClient{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (c *rabbitMQClient) PublishHomeworkReviewed(ctx context.Context, event *models.HomeworkReviewedEvent) error {
	if err := c.publish(ctx, models.RoutingKeyHomeworkReviewed, event); err != nil {
		return err
	}

	c.logger.Info().
		Str("submission_id", event.SubmissionID).
		Str("decision", event.Decision).
		Msg("Homework reviewed event published")

	return nil
}

func (c *rabbitMQClient) PublishAttachmentsSuperseded(ctx context.Context, event *models.AttachmentsSupersededEvent) error {
	if err := c.publish(ctx, models.RoutingKeyAttachmentsSuperseded, event); err != nil {
		return err
	}

	c.logger.Info().
		Str("submission_id", event.SubmissionID).
		Int("urls", len(event.URLs)).
		Msg("Attachments superseded event published")

	return nil
}

func (c *rabbitMQClient) publish(ctx context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		publishCtx,
		c.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	return nil
}

func (c *rabbitMQClient) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	return nil
}

type logPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher returns a publisher that only logs events. It is used when
// RabbitMQ is unavailable at startup.
func NewLogPublisher(logger zerolog.Logger) EventPublisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) PublishHomeworkReviewed(_ context.Context, event *models.HomeworkReviewedEvent) error {
	p.logger.Warn().
		Str("submission_id", event.SubmissionID).
		Str("student_id", event.StudentID).
		Str("decision", event.Decision).
		Msg("RabbitMQ disabled, homework reviewed notification dropped")
	return nil
}

func (p *logPublisher) PublishAttachmentsSuperseded(_ context.Context, event *models.AttachmentsSupersededEvent) error {
	p.logger.Warn().
		Str("submission_id", event.SubmissionID).
		Strs("urls", event.URLs).
		Msg("RabbitMQ disabled, superseded attachments left in storage")
	return nil
}

func (p *logPublisher) Close() error {
	return nil
}
