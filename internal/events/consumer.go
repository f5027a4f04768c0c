package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Event is one decoded message from the order topic. Exactly one of Created
// and StatusChanged is set.
type Event struct {
	Type          string              `json:"type"`
	Key           string              `json:"key"`
	Created       *OrderCreatedEvent  `json:"created,omitempty"`
	StatusChanged *StatusChangedEvent `json:"status_changed,omitempty"`
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer follows the order topic, e.g. for the CLI's events tail.
type Consumer struct {
	reader messageReader
	logger *slog.Logger
}

func NewConsumer(topic, groupID string, logger *slog.Logger, brokers ...string) *Consumer {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: logger}
}

// Run hands every decodable event to handle until ctx is done. Undecodable
// messages are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handle func(Event) error) error {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		ev, err := Decode(m)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping order event", "offset", m.Offset, "error", err)
			continue
		}
		if err := handle(ev); err != nil {
			return err
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func Decode(m kafka.Message) (Event, error) {
	ev := Event{Key: string(m.Key)}
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			ev.Type = string(h.Value)
		}
	}

	switch ev.Type {
	case TypeOrderCreated:
		ev.Created = &OrderCreatedEvent{}
		if err := json.Unmarshal(m.Value, ev.Created); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
	case TypeOrderStatusChanged:
		ev.StatusChanged = &StatusChangedEvent{}
		if err := json.Unmarshal(m.Value, ev.StatusChanged); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
	default:
		return Event{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return ev, nil
}
