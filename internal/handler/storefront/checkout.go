package storefront

import (
	"net/http"

	"github.com/dukerupert/cutroom/internal/cookie"
	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/dukerupert/cutroom/internal/handler"
	"github.com/dukerupert/cutroom/internal/service"
)

// CheckoutHandler handles the checkout flow and order history.
type CheckoutHandler struct {
	checkoutService service.CheckoutService
	cookies         *cookie.Config
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService service.CheckoutService, cookies *cookie.Config) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		cookies:         cookies,
	}
}

type tokensRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type paymentMethodRequest struct {
	Method string `json:"method" validate:"required"`
}

// Status handles GET /api/checkout
func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.checkoutService.Status(r.Context(), sessionID(r))
	h.respond(w, r, st, err)
}

// StoreTokens handles POST /api/checkout/tokens
func (h *CheckoutHandler) StoreTokens(w http.ResponseWriter, r *http.Request) {
	var req tokensRequest
	if err := handler.DecodeJSON(r, "checkout.store_tokens", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	st, err := h.checkoutService.StoreTokens(r.Context(), sessionID(r), domain.TokenPair{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
	})
	h.respond(w, r, st, err)
}

// SubmitDetails handles POST /api/checkout/details
func (h *CheckoutHandler) SubmitDetails(w http.ResponseWriter, r *http.Request) {
	var req domain.BillingInfo
	if err := handler.DecodeJSON(r, "checkout.details", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	st, err := h.checkoutService.SubmitDetails(r.Context(), sessionID(r), req)
	h.respond(w, r, st, err)
}

// SelectPaymentMethod handles POST /api/checkout/payment-method
func (h *CheckoutHandler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := handler.DecodeJSON(r, "checkout.payment_method", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	st, err := h.checkoutService.SelectPaymentMethod(r.Context(), sessionID(r), req.Method)
	h.respond(w, r, st, err)
}

// RetryPaymentIntent handles POST /api/checkout/payment-intent/retry
func (h *CheckoutHandler) RetryPaymentIntent(w http.ResponseWriter, r *http.Request) {
	st, err := h.checkoutService.RetryPaymentIntent(r.Context(), sessionID(r))
	h.respond(w, r, st, err)
}

// Submit handles POST /api/checkout/submit
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	st, err := h.checkoutService.SubmitOrder(r.Context(), sessionID(r))
	h.respond(w, r, st, err)
}

// Orders handles GET /api/orders
func (h *CheckoutHandler) Orders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.checkoutService.OrderHistory(r.Context(), sessionID(r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *CheckoutHandler) respond(w http.ResponseWriter, r *http.Request, st *service.CheckoutStatus, err error) {
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	bindSession(w, h.cookies, st.SessionID)
	handler.WriteJSON(w, http.StatusOK, st)
}
