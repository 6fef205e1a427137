package identity

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

// HTTPClient is a Client for a JSON identity API exposing GET /me and POST /refresh.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates an identity client. The http.Client should carry a timeout.
func NewHTTPClient(baseURL string, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (c *HTTPClient) CurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	const op = "identity.current_user"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/me", nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.WrapError(err, domain.EUNAVAILABLE, op, ErrProviderFailed.Message)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.WrapError(err, domain.EUNAVAILABLE, op, ErrProviderFailed.Message)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if strings.Contains(strings.ToLower(string(body)), "expired") {
			return nil, domain.WithOp(ErrTokenExpired, op)
		}
		return nil, domain.WithOp(ErrInvalidToken, op)
	case resp.StatusCode != http.StatusOK:
		return nil, domain.WrapError(fmt.Errorf("unexpected status %d", resp.StatusCode), domain.EUNAVAILABLE, op, ErrProviderFailed.Message)
	}

	var user domain.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, domain.WrapError(err, domain.EUNAVAILABLE, op, ErrProviderFailed.Message)
	}
	if user.ID == "" {
		return nil, domain.WithOp(ErrInvalidToken, op)
	}
	return &user, nil
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	const op = "identity.refresh"

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/refresh", bytes.NewReader(payload))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.WrapError(err, domain.EUNAVAILABLE, op, ErrProviderFailed.Message)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return nil, domain.WithOp(ErrRefreshFailed, op)
	default:
		return nil, domain.WrapError(fmt.Errorf("unexpected status %d", resp.StatusCode), domain.EUNAVAILABLE, op, ErrProviderFailed.Message)
	}

	var out domain.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.WrapError(err, domain.EUNAVAILABLE, op, ErrProviderFailed.Message)
	}
	if out.AccessToken == "" {
		return nil, domain.WithOp(ErrRefreshFailed, op)
	}
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return &out, nil
}
