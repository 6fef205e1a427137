// Package postgres persists order API records with pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// OrderStore implements order persistence on PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewOrderStore creates a store on an existing pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool, now: time.Now}
}

const orderColumns = `id, idempotency_key, user_id, total::text, payment_method, payment_status,
	status, coalesce(payment_intent_id, ''), coalesce(promo_code, ''), billing, customer, items,
	created_at, paid_at`

// Create inserts an order under the submitting user's idempotencyKey. When
// that user already used the key the stored order is returned with
// created=false and nothing is written. Keys never match across users.
func (s *OrderStore) Create(ctx context.Context, idempotencyKey string, sub domain.OrderSubmission) (order *domain.Order, created bool, err error) {
	const op = "postgres.create_order"

	billing, err := json.Marshal(sub.Billing)
	if err != nil {
		return nil, false, domain.Internal(err, op, "failed to encode billing")
	}
	customer, err := json.Marshal(sub.Customer)
	if err != nil {
		return nil, false, domain.Internal(err, op, "failed to encode customer")
	}
	items, err := json.Marshal(sub.CartItems)
	if err != nil {
		return nil, false, domain.Internal(err, op, "failed to encode items")
	}

	var paidAt *time.Time
	if sub.PaymentStatus == domain.PaymentStatusPaid {
		t := s.now().UTC()
		paidAt = &t
	}

	var id uuid.UUID
	err = s.pool.QueryRow(ctx, `
		INSERT INTO orders (id, idempotency_key, user_id, total, payment_method, payment_status,
			status, payment_intent_id, promo_code, billing, customer, items, paid_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, nullif($8, ''), nullif($9, ''), $10, $11, $12, $13)
		ON CONFLICT (user_id, idempotency_key) DO NOTHING
		RETURNING id`,
		uuid.New(), idempotencyKey, sub.UserID, sub.Total.StringFixed(2),
		string(sub.PaymentMethod), string(sub.PaymentStatus), string(sub.Status),
		sub.PaymentIntentID, sub.PromoCode, billing, customer, items, paidAt,
	).Scan(&id)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		existing, err := s.byKey(ctx, sub.UserID, idempotencyKey)
		if err != nil {
			return nil, false, domain.WithOp(err, op)
		}
		return existing, false, nil
	case err != nil:
		return nil, false, domain.Internal(err, op, "failed to insert order")
	}

	order, err = s.Get(ctx, id)
	if err != nil {
		return nil, false, domain.WithOp(err, op)
	}
	return order, true, nil
}

// Get returns one order by ID.
func (s *OrderStore) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row, "postgres.get_order")
}

func (s *OrderStore) byKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
	return scanOrder(row, "postgres.get_order_by_key")
}

// ListByUser returns a user's orders, newest first.
func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	const op = "postgres.list_orders"

	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to query orders")
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows, op)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read orders")
	}
	return orders, nil
}

// MarkPaid records a confirmed card payment for every order carrying the
// payment intent. Repeated calls keep the first paid_at.
func (s *OrderStore) MarkPaid(ctx context.Context, paymentIntentID string) error {
	return s.setPaymentStatus(ctx, "postgres.mark_paid", paymentIntentID, domain.PaymentStatusPaid)
}

// MarkPaymentFailed records a failed card payment.
func (s *OrderStore) MarkPaymentFailed(ctx context.Context, paymentIntentID string) error {
	return s.setPaymentStatus(ctx, "postgres.mark_payment_failed", paymentIntentID, domain.PaymentStatusFailed)
}

func (s *OrderStore) setPaymentStatus(ctx context.Context, op, paymentIntentID string, status domain.PaymentStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET payment_status = $2,
			paid_at = CASE WHEN $2 = 'paid' THEN coalesce(paid_at, $3) ELSE paid_at END
		WHERE payment_intent_id = $1`,
		paymentIntentID, string(status), s.now().UTC())
	if err != nil {
		return domain.Internal(err, op, "failed to update payment status")
	}
	if tag.RowsAffected() == 0 {
		return domain.WithOp(domain.ErrOrderNotFound, op)
	}
	return nil
}

// Ping checks the pool.
func (s *OrderStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanOrder(row pgx.Row, op string) (*domain.Order, error) {
	var (
		o                      domain.Order
		total                  string
		method, payment, state string
		billing, customer      []byte
		items                  []byte
	)
	err := row.Scan(&o.ID, &o.IdempotencyKey, &o.UserID, &total, &method, &payment,
		&state, &o.PaymentIntentID, &o.PromoCode, &billing, &customer, &items,
		&o.CreatedAt, &o.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.WithOp(domain.ErrOrderNotFound, op)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to scan order")
	}

	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, domain.Internal(err, op, "invalid stored total")
	}
	o.PaymentMethod = domain.PaymentMethod(method)
	o.PaymentStatus = domain.PaymentStatus(payment)
	o.Status = domain.OrderStatus(state)

	if err := json.Unmarshal(billing, &o.Billing); err != nil {
		return nil, domain.Internal(err, op, "invalid stored billing")
	}
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, domain.Internal(err, op, "invalid stored customer")
	}
	if err := json.Unmarshal(items, &o.CartItems); err != nil {
		return nil, domain.Internal(err, op, "invalid stored items")
	}
	return &o, nil
}
