package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/cutroom/internal/cookie"
	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/dukerupert/cutroom/internal/pricing"
	"github.com/dukerupert/cutroom/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCookies() *cookie.Config {
	return cookie.NewConfig("", false, time.Hour)
}

func sessionCookie(rec *httptest.ResponseRecorder) string {
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookie.SessionCookieName {
			return c.Value
		}
	}
	return ""
}

// serve routes req through a ServeMux so path values are populated.
func serve(pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCartHandler_Add(t *testing.T) {
	tests := []struct {
		name         string
		cookie       string
		body         string
		addErr       error
		wantStatus   int
		wantCookie   string
		wantSession  string
		wantQuantity int
	}{
		{
			name:         "new session gets a cookie",
			body:         `{"service_id":"plus","addons":["rush-delivery"],"quantity":2}`,
			wantStatus:   http.StatusCreated,
			wantCookie:   "sess-new",
			wantQuantity: 2,
		},
		{
			name:         "existing session is passed through",
			cookie:       "sess-1",
			body:         `{"service_id":"plus"}`,
			wantStatus:   http.StatusCreated,
			wantCookie:   "sess-1",
			wantSession:  "sess-1",
			wantQuantity: 0,
		},
		{
			name:       "missing service id",
			body:       `{"quantity":1}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "negative quantity",
			body:       `{"service_id":"plus","quantity":-1}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown service",
			body:       `{"service_id":"nope"}`,
			addErr:     service.ErrServiceNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "frozen during submission",
			cookie:     "sess-1",
			body:       `{"service_id":"plus"}`,
			addErr:     domain.ErrSubmissionInFlight,
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSession string
			var gotParams service.AddItemParams
			svc := &mockCartService{
				addItemFunc: func(ctx context.Context, sessionID string, params service.AddItemParams) (*service.CartSummary, error) {
					gotSession, gotParams = sessionID, params
					if tt.addErr != nil {
						return nil, tt.addErr
					}
					id := sessionID
					if id == "" {
						id = "sess-new"
					}
					return &service.CartSummary{SessionID: id}, nil
				},
			}
			h := NewCartHandler(svc, testCookies())

			req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(tt.body))
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: cookie.SessionCookieName, Value: tt.cookie})
			}
			rec := serve("POST /api/cart/items", h.Add, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCookie, sessionCookie(rec))
			if tt.wantStatus == http.StatusCreated {
				assert.Equal(t, tt.wantSession, gotSession)
				assert.Equal(t, tt.wantQuantity, gotParams.Quantity)
			}
		})
	}
}

func TestCartHandler_View_NoSessionSetsNoCookie(t *testing.T) {
	svc := &mockCartService{
		summaryFunc: func(ctx context.Context, sessionID string) (*service.CartSummary, error) {
			assert.Empty(t, sessionID)
			return &service.CartSummary{Items: []domain.CartLineItem{}}, nil
		},
	}
	h := NewCartHandler(svc, testCookies())

	rec := serve("GET /api/cart", h.View, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sessionCookie(rec))

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body, "items")
	assert.Contains(t, body, "totals")
	assert.NotContains(t, body, "session_id")
}

func TestCartHandler_ItemIndex(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		svcErr     error
		wantIndex  int
		wantStatus int
	}{
		{"update", http.MethodPatch, "/api/cart/items/1", `{"quantity":3}`, nil, 1, http.StatusOK},
		{"update out of range", http.MethodPatch, "/api/cart/items/9", `{"quantity":3}`, domain.ErrCartItemNotFound, 9, http.StatusNotFound},
		{"update bad index", http.MethodPatch, "/api/cart/items/first", `{"quantity":3}`, nil, 0, http.StatusBadRequest},
		{"remove", http.MethodDelete, "/api/cart/items/0", "", nil, 0, http.StatusOK},
		{"remove out of range", http.MethodDelete, "/api/cart/items/4", "", domain.ErrCartItemNotFound, 4, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotIndex := -1
			svc := &mockCartService{
				updateItemQuantityFunc: func(ctx context.Context, sessionID string, index, quantity int) (*service.CartSummary, error) {
					gotIndex = index
					assert.Equal(t, 3, quantity)
					if tt.svcErr != nil {
						return nil, tt.svcErr
					}
					return &service.CartSummary{SessionID: sessionID}, nil
				},
				removeItemFunc: func(ctx context.Context, sessionID string, index int) (*service.CartSummary, error) {
					gotIndex = index
					if tt.svcErr != nil {
						return nil, tt.svcErr
					}
					return &service.CartSummary{SessionID: sessionID}, nil
				},
			}
			h := NewCartHandler(svc, testCookies())

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.AddCookie(&http.Cookie{Name: cookie.SessionCookieName, Value: "sess-1"})

			var rec *httptest.ResponseRecorder
			if tt.method == http.MethodPatch {
				rec = serve("PATCH /api/cart/items/{index}", h.UpdateQuantity, req)
			} else {
				rec = serve("DELETE /api/cart/items/{index}", h.Remove, req)
			}

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.name != "update bad index" {
				assert.Equal(t, tt.wantIndex, gotIndex)
			} else {
				assert.Equal(t, -1, gotIndex, "service not called")
			}
		})
	}
}

func TestCartHandler_Promo(t *testing.T) {
	var applied string
	svc := &mockCartService{
		applyPromoCodeFunc: func(ctx context.Context, sessionID, code string) (*service.CartSummary, error) {
			if code != "welcome10" {
				return nil, pricing.ErrInvalidPromoCode
			}
			applied = code
			return &service.CartSummary{SessionID: sessionID}, nil
		},
		removePromoCodeFunc: func(ctx context.Context, sessionID string) (*service.CartSummary, error) {
			applied = ""
			return &service.CartSummary{SessionID: sessionID}, nil
		},
	}
	h := NewCartHandler(svc, testCookies())

	rec := serve("POST /api/cart/promo", h.ApplyPromo,
		httptest.NewRequest(http.MethodPost, "/api/cart/promo", strings.NewReader(`{"code":"welcome10"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "welcome10", applied)

	rec = serve("POST /api/cart/promo", h.ApplyPromo,
		httptest.NewRequest(http.MethodPost, "/api/cart/promo", strings.NewReader(`{"code":"FREE"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve("POST /api/cart/promo", h.ApplyPromo,
		httptest.NewRequest(http.MethodPost, "/api/cart/promo", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve("DELETE /api/cart/promo", h.RemovePromo,
		httptest.NewRequest(http.MethodDelete, "/api/cart/promo", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, applied)
}

func TestCartHandler_Clear(t *testing.T) {
	svc := &mockCartService{
		clearCartFunc: func(ctx context.Context, sessionID string) (*service.CartSummary, error) {
			return nil, domain.Internal(nil, "cart.clear", "redis down")
		},
	}
	h := NewCartHandler(svc, testCookies())

	rec := serve("DELETE /api/cart", h.Clear, httptest.NewRequest(http.MethodDelete, "/api/cart", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis")
}
