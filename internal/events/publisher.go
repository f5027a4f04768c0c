package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic = "order-events"

	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"

	// Publishes run inline with order writes, so a lone event must not wait
	// out kafka-go's one-second default batch window.
	publishBatchTimeout = 10 * time.Millisecond
)

type OrderCreatedEvent struct {
	OrderID   string             `json:"order_id"`
	UserID    string             `json:"user_id"`
	Total     float64            `json:"total"`
	Status    domain.OrderStatus `json:"status"`
	Items     []domain.OrderItem `json:"items"`
	CreatedAt time.Time          `json:"created_at"`
}

type StatusChangedEvent struct {
	OrderID   string             `json:"order_id"`
	Status    domain.OrderStatus `json:"status"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes order events keyed by order id, so every event of one
// order lands on the same partition in order.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           publishBatchTimeout,
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) OrderCreated(ctx context.Context, o domain.Order) error {
	return p.publish(ctx, TypeOrderCreated, o.ID, OrderCreatedEvent{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Total:     o.Total,
		Status:    o.Status,
		Items:     o.Items,
		CreatedAt: o.CreatedAt,
	})
}

func (p *KafkaPublisher) OrderStatusChanged(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error {
	return p.publish(ctx, TypeOrderStatusChanged, orderID, StatusChangedEvent{
		OrderID:   orderID,
		Status:    status,
		UpdatedAt: at,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType, key string, payload any) (err error) {
	defer func() { metrics.ObserveEvent(eventType, err) }()

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}
	return nil
}
