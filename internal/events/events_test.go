package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	msgs []*nats.Msg
	err  error
}

func (c *recordingConn) PublishMsg(m *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func TestNATSPublisher_OrderCreated(t *testing.T) {
	rc := &recordingConn{}
	p := &NATSPublisher{conn: rc, now: time.Now}

	order := &domain.Order{
		ID:        uuid.New(),
		CreatedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		OrderSubmission: domain.OrderSubmission{
			UserID:        "user-1",
			Total:         decimal.NewFromInt(504),
			PaymentMethod: domain.PaymentMethodCreditCard,
			PaymentStatus: domain.PaymentStatusPaid,
			CartItems:     []domain.OrderItem{{Quantity: 2}, {Quantity: 1}},
		},
	}
	require.NoError(t, p.OrderCreated(context.Background(), order))

	require.Len(t, rc.msgs, 1)
	msg := rc.msgs[0]
	assert.Equal(t, SubjectOrderCreated, msg.Subject)
	assert.Equal(t, order.ID.String(), msg.Header.Get(nats.MsgIdHdr))

	var got OrderCreated
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, order.ID, got.OrderID)
	assert.Equal(t, 3, got.ItemCount)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(504)))
}

func TestNATSPublisher_Errors(t *testing.T) {
	rc := &recordingConn{err: errors.New("nats: connection closed")}
	p := &NATSPublisher{conn: rc, now: time.Now}

	err := p.OrderPaid(context.Background(), "pi_123")
	assert.ErrorContains(t, err, "publish order.paid")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.OrderPaid(ctx, "pi_123"), context.Canceled)
}
