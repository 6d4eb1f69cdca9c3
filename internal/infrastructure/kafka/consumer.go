package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	"github.com/segmentio/kafka-go"
)

// EventHandler processes one decoded audit event.
type EventHandler func(ctx context.Context, event models.AuthEvent) error

// LogEvent is the default audit sink: one structured log line per event.
func LogEvent(_ context.Context, event models.AuthEvent) error {
	slog.Info("audit event",
		"event_type", event.EventType,
		"user_id", event.UserID,
		"actor_id", event.ActorID,
		"username", event.Username,
		"user_type", event.UserType,
		"reason", event.Reason,
		"created_at", event.CreatedAt,
	)
	return nil
}

type Consumer struct {
	reader  *kafka.Reader
	handler EventHandler
}

func NewConsumer(brokers []string, topic, groupID string, handler EventHandler) *Consumer {
	if handler == nil {
		handler = LogEvent
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		handler: handler,
	}
}

func decodeEvent(msg kafka.Message) (models.AuthEvent, error) {
	var event models.AuthEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal auth event: %w", err)
	}
	if event.EventType == "" {
		return event, errors.New("auth event without event_type")
	}
	return event, nil
}

// handleMessage processes one message. Malformed messages are logged and
// skipped so that one bad record does not stall the group.
func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) {
	event, err := decodeEvent(msg)
	if err != nil {
		slog.Error("skipping Kafka message", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return
	}
	if err := c.handler(ctx, event); err != nil {
		slog.Error("failed to handle auth event", "event_type", event.EventType, "user_id", event.UserID, "error", err)
	}
}

// Consume blocks until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}
		c.handleMessage(ctx, msg)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
