// Package events publishes order lifecycle events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
)

// Subjects
const (
	SubjectOrderCreated = "order.created"
	SubjectOrderPaid    = "order.paid"
)

// Publisher emits order events.
type Publisher interface {
	OrderCreated(ctx context.Context, order *domain.Order) error
	OrderPaid(ctx context.Context, paymentIntentID string) error
}

// OrderCreated is the payload of order.created.
type OrderCreated struct {
	OrderID       uuid.UUID            `json:"order_id"`
	UserID        string               `json:"user_id"`
	Total         decimal.Decimal      `json:"total"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	ItemCount     int                  `json:"item_count"`
	CreatedAt     time.Time            `json:"created_at"`
}

// OrderPaid is the payload of order.paid.
type OrderPaid struct {
	PaymentIntentID string    `json:"payment_intent_id"`
	PaidAt          time.Time `json:"paid_at"`
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes JSON events on core NATS subjects.
type NATSPublisher struct {
	conn conn
	now  func() time.Time
}

var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher wraps an established connection.
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: nc, now: time.Now}
}

// Connect dials url and returns a publisher plus the connection to drain on
// shutdown.
func Connect(url, name string) (*NATSPublisher, *nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}
	return NewNATSPublisher(nc), nc, nil
}

func (p *NATSPublisher) OrderCreated(ctx context.Context, order *domain.Order) error {
	items := 0
	for _, it := range order.CartItems {
		items += it.Quantity
	}
	return p.publish(ctx, SubjectOrderCreated, order.ID.String(), OrderCreated{
		OrderID:       order.ID,
		UserID:        order.UserID,
		Total:         order.Total,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		ItemCount:     items,
		CreatedAt:     order.CreatedAt,
	})
}

func (p *NATSPublisher) OrderPaid(ctx context.Context, paymentIntentID string) error {
	return p.publish(ctx, SubjectOrderPaid, paymentIntentID, OrderPaid{
		PaymentIntentID: paymentIntentID,
		PaidAt:          p.now().UTC(),
	})
}

func (p *NATSPublisher) publish(ctx context.Context, subject, id string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, id)
	msg.Header.Set("Content-Type", "application/json")
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Nop discards events. Used when no NATS URL is configured.
type Nop struct{}

func (Nop) OrderCreated(context.Context, *domain.Order) error { return nil }
func (Nop) OrderPaid(context.Context, string) error          { return nil }
