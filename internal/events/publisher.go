// Package events publishes order lifecycle events to Kafka for downstream
// consumers (notifications, kitchen displays). Publishing never fails the
// request that triggered it; errors are logged and dropped.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/platepilot/ordering/internal/order"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

type orderEvent struct {
	Event          string `json:"event"`
	OrderID        string `json:"order_id"`
	OwnerID        string `json:"owner_id"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	TotalAmount    string `json:"total_amount"`
	OccurredAt     string `json:"occurred_at"`
}

// Publisher writes order events to a single Kafka topic, keyed by order id
// so per-order ordering is preserved. With no brokers configured every
// method is a no-op, which keeps local development broker-free.
type Publisher struct {
	writer *kafka.Writer
}

var _ order.EventPublisher = (*Publisher)(nil)

// NewPublisher builds a publisher from a comma-separated broker list.
// An empty list yields a disabled publisher.
func NewPublisher(brokersCSV, topic string) *Publisher {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return &Publisher{}
	}

	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *Publisher) OrderCreated(ctx context.Context, o *order.Order) {
	p.publish(ctx, orderEvent{
		Event:       EventOrderCreated,
		OrderID:     o.ID.String(),
		OwnerID:     o.OwnerID.String(),
		Status:      o.Status.String(),
		TotalAmount: o.TotalAmount.StringFixed(2),
		OccurredAt:  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (p *Publisher) OrderStatusChanged(ctx context.Context, o *order.Order, previous order.Status) {
	p.publish(ctx, orderEvent{
		Event:          EventOrderStatusChanged,
		OrderID:        o.ID.String(),
		OwnerID:        o.OwnerID.String(),
		Status:         o.Status.String(),
		PreviousStatus: previous.String(),
		TotalAmount:    o.TotalAmount.StringFixed(2),
		OccurredAt:     time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (p *Publisher) publish(ctx context.Context, ev orderEvent) {
	if p.writer == nil {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event", ev.Event).Msg("events: failed to marshal order event")
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: payload,
	})
	if err != nil {
		log.Error().Err(err).Str("event", ev.Event).Str("order_id", ev.OrderID).Msg("events: failed to publish order event")
	}
}
