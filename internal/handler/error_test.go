package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorEnvelope struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EPAYMENT, http.StatusPaymentRequired},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ETOOLARGE, http.StatusRequestEntityTooLarge},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EUNAVAILABLE, http.StatusServiceUnavailable},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"unknown_code", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, ErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestErrorResponse_JSON(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"not found", domain.NotFound("cart.get", "cart item", "3"), http.StatusNotFound, domain.ENOTFOUND},
		{"in flight", domain.WithOp(domain.ErrSubmissionInFlight, "checkout.submit"), http.StatusConflict, domain.ECONFLICT},
		{"payment not ready", domain.ErrPaymentNotReady, http.StatusPaymentRequired, domain.EPAYMENT},
		{"forbidden", domain.Forbidden("orders.create", "not yours"), http.StatusForbidden, domain.EFORBIDDEN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
			rec := httptest.NewRecorder()

			ErrorResponse(rec, req, tt.err)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.expectedCode, decodeError(t, rec).Error.Code)
		})
	}
}

func TestErrorResponse_PlainText(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, domain.NotFound("x", "thing", "1"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "thing not found")
}

func TestErrorResponse_InternalHidesDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, domain.Internal(nil, "session.get", "redis at 10.0.0.7:6379 refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "An internal error occurred. Please try again later.", decodeError(t, rec).Error.Message)
}

func TestValidationErrorResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/details", nil)
	rec := httptest.NewRecorder()

	err := domain.NewValidationError("checkout.details", "phone", "is required")
	err = domain.AddFieldError(err, "address", "is required")

	// ErrorResponse routes validation errors here too.
	ErrorResponse(rec, req, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, domain.EINVALID, env.Error.Code)
	assert.Len(t, env.Error.Fields, 2)
	assert.Equal(t, "is required", env.Error.Fields["phone"])
}

func TestValidationErrorResponse_NonValidationError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/cart", nil)
	rec := httptest.NewRecorder()

	ValidationErrorResponse(rec, req, domain.NotFound("x", "thing", "1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConvenienceResponses(t *testing.T) {
	tests := []struct {
		name string
		fn   func(http.ResponseWriter, *http.Request)
		want int
	}{
		{"not found", NotFoundResponse, http.StatusNotFound},
		{"unauthorized", UnauthorizedResponse, http.StatusUnauthorized},
		{"forbidden", ForbiddenResponse, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.fn(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name" validate:"required"`
	}

	tests := []struct {
		name     string
		payload  string
		wantCode string
		wantErr  bool
	}{
		{"valid", `{"name":"plus"}`, "", false},
		{"empty body", ``, domain.EINVALID, true},
		{"malformed", `{"name":`, domain.EINVALID, true},
		{"unknown field", `{"name":"plus","extra":1}`, domain.EINVALID, true},
		{"fails validation", `{"name":""}`, domain.EINTERNAL, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/x", strings.NewReader(tt.payload))
			var dst body
			err := DecodeJSON(req, "test.decode", &dst)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "plus", dst.Name)
				return
			}
			require.Error(t, err)
			if tt.name == "fails validation" {
				assert.True(t, domain.IsValidationError(err))
				return
			}
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
		})
	}
}
