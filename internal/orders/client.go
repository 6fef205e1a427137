// Package orders is the storefront's client for the order API.
package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dukerupert/cutroom/internal/domain"
)

// IdempotencyHeader carries the per-checkout submission key.
const IdempotencyHeader = "Idempotency-Key"

var ErrOrderAPIUnavailable = &domain.Error{Code: domain.EUNAVAILABLE, Message: "Order service is unavailable"}

// Creator creates orders. Client satisfies it; tests substitute their own.
type Creator interface {
	Create(ctx context.Context, accessToken, idempotencyKey string, sub domain.OrderSubmission) (*domain.OrderConfirmation, error)
	List(ctx context.Context, accessToken string) ([]domain.Order, error)
}

// Client talks to the order API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ Creator = (*Client)(nil)

// NewClient creates an order API client. The http.Client should carry a timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

type createResponse struct {
	OrderID string `json:"order_id"`
}

// Create posts an order submission. A 200 response means the key was already
// used and the existing order is returned; 201 means a new order.
//
// Non-2xx responses become a domain error whose message is the server's own
// "message" or "error" field, unchanged.
func (c *Client) Create(ctx context.Context, accessToken, idempotencyKey string, sub domain.OrderSubmission) (*domain.OrderConfirmation, error) {
	const op = "orders.create"

	body, err := json.Marshal(sub)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode order")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders/create", bytes.NewReader(body))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set(IdempotencyHeader, idempotencyKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.WrapError(err, domain.EUNAVAILABLE, op, ErrOrderAPIUnavailable.Message)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.WrapError(err, domain.EUNAVAILABLE, op, ErrOrderAPIUnavailable.Message)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, remoteError(op, resp.StatusCode, raw)
	}

	var out createResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.OrderID == "" {
		return nil, domain.WrapError(fmt.Errorf("decode create response: %v", err), domain.EUNAVAILABLE, op, "Order service returned an unexpected response")
	}

	return &domain.OrderConfirmation{
		OrderID:  out.OrderID,
		Replayed: resp.StatusCode == http.StatusOK,
	}, nil
}

// List returns the bearer's orders, newest first.
func (c *Client) List(ctx context.Context, accessToken string) ([]domain.Order, error) {
	const op = "orders.list"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/orders", nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.WrapError(err, domain.EUNAVAILABLE, op, ErrOrderAPIUnavailable.Message)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, domain.WrapError(err, domain.EUNAVAILABLE, op, ErrOrderAPIUnavailable.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(op, resp.StatusCode, raw)
	}

	var out struct {
		Orders []domain.Order `json:"orders"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, domain.WrapError(err, domain.EUNAVAILABLE, op, "Order service returned an unexpected response")
	}
	return out.Orders, nil
}

// remoteError converts an error body into a domain error. Both the flat
// {"message": "..."} / {"error": "..."} shapes and the nested
// {"error": {"code": ..., "message": ...}} shape are understood.
func remoteError(op string, status int, raw []byte) error {
	var flat struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	msg := ""
	if json.Unmarshal(raw, &flat) == nil {
		msg = flat.Message
		if msg == "" && len(flat.Error) > 0 {
			var s string
			if json.Unmarshal(flat.Error, &s) == nil {
				msg = s
			} else {
				var nested struct {
					Message string `json:"message"`
				}
				if json.Unmarshal(flat.Error, &nested) == nil {
					msg = nested.Message
				}
			}
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("Order service returned status %d", status)
	}

	code := domain.EUNAVAILABLE
	switch {
	case status == http.StatusUnauthorized:
		code = domain.EUNAUTHORIZED
	case status == http.StatusForbidden:
		code = domain.EFORBIDDEN
	case status == http.StatusConflict:
		code = domain.ECONFLICT
	case status == http.StatusNotFound:
		code = domain.ENOTFOUND
	case status >= 400 && status < 500:
		code = domain.EINVALID
	}
	return &domain.Error{Code: code, Op: op, Message: msg, Err: fmt.Errorf("status %d", status)}
}
