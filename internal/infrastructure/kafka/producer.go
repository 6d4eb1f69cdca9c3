package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	"github.com/segmentio/kafka-go"
)

type KafkaProducer interface {
	Send(ctx context.Context, topic string, key int64, value []byte) error
	Close() error
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Error("failed to deliver Kafka messages", "count", len(messages), "error", err)
			}
		},
	}
	return &Producer{writer: writer}
}

func (p *Producer) Send(ctx context.Context, topic string, key int64, value []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(key, 10)),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("failed to send Kafka message", "topic", topic, "key", key, "error", err)
		return err
	}
	slog.Debug("Kafka message sent", "topic", topic, "key", key)
	return nil
}

func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		slog.Error("failed to close Kafka writer", "error", err)
		return err
	}
	slog.Info("Kafka writer closed")
	return nil
}

// EventPublisher emits audit events. Publishing never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event models.AuthEvent)
}

// AuthEventPublisher encodes events as JSON keyed by user id, so that all
// events of one user land on one partition in order.
type AuthEventPublisher struct {
	producer KafkaProducer
	topic    string
	now      func() time.Time
}

func NewAuthEventPublisher(producer KafkaProducer, topic string) *AuthEventPublisher {
	return &AuthEventPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *AuthEventPublisher) Publish(ctx context.Context, event models.AuthEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = p.now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to encode auth event", "event_type", event.EventType, "error", err)
		return
	}
	// The request may finish before the write is queued.
	if err := p.producer.Send(context.WithoutCancel(ctx), p.topic, event.UserID, payload); err != nil {
		slog.Warn("auth event dropped", "event_type", event.EventType, "user_id", event.UserID, "error", err)
	}
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, models.AuthEvent) {}
