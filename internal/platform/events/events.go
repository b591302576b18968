// Package events publishes record lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	TypeResultCaptured    = "result.captured"
	TypeAttachmentCreated = "attachment.created"
	TypeAttachmentDeleted = "attachment.deleted"
)

// Event is the JSON envelope written to the topic. Key orders events of the
// same order on one partition.
type Event struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Tenant       string            `json:"tenant,omitempty"`
	OrderRef     string            `json:"order_ref"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// Publisher delivers events. Callers treat delivery as best effort.
type Publisher interface {
	Publish(ctx context.Context, evts ...Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) error { return nil }
func (NopPublisher) Close() error                            { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by order reference.
type KafkaPublisher struct {
	w      messageWriter
	logger zerolog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           50 * time.Millisecond,
			WriteTimeout:           5 * time.Second,
			AllowAutoTopicCreation: true,
		},
		logger: logger.With().Str("component", "events").Str("topic", topic).Logger(),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evts ...Event) error {
	if len(evts) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evts))
	for _, evt := range evts {
		if evt.ID == "" {
			evt.ID = uuid.NewString()
		}
		if evt.OccurredAt.IsZero() {
			evt.OccurredAt = time.Now().UTC()
		}
		value, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", evt.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(evt.OrderRef),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(evt.Type)},
			},
		})
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d events: %w", len(msgs), err)
	}
	p.logger.Debug().Int("count", len(msgs)).Msg("events published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// PublishQuietly publishes and logs failures instead of returning them.
func PublishQuietly(ctx context.Context, p Publisher, logger zerolog.Logger, evts ...Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, evts...); err != nil {
		logger.Warn().Err(err).Int("count", len(evts)).Msg("event publish failed")
	}
}
