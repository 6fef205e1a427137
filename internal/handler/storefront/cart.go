package storefront

import (
	"net/http"
	"strconv"

	"github.com/dukerupert/cutroom/internal/cookie"
	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/dukerupert/cutroom/internal/handler"
	"github.com/dukerupert/cutroom/internal/middleware"
	"github.com/dukerupert/cutroom/internal/service"
)

// CartHandler handles all cart-related storefront routes
type CartHandler struct {
	cartService service.CartService
	cookies     *cookie.Config
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService service.CartService, cookies *cookie.Config) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		cookies:     cookies,
	}
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

type promoRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// View handles GET /api/cart. It also hands out the CSRF token, since a
// front end on another origin cannot read the cookie.
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	summary, err := h.cartService.Summary(r.Context(), sessionID(r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if token := middleware.GetCSRFToken(r.Context()); token != "" {
		w.Header().Set(middleware.CSRFHeaderName, token)
	}
	h.respond(w, http.StatusOK, summary)
}

// Add handles POST /api/cart/items
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req service.AddItemParams
	if err := handler.DecodeJSON(r, "cart.add_item", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	summary, err := h.cartService.AddItem(r.Context(), sessionID(r), req)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, summary)
}

// UpdateQuantity handles PATCH /api/cart/items/{index}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	index, err := itemIndex(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req updateQuantityRequest
	if err := handler.DecodeJSON(r, "cart.update_quantity", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	summary, err := h.cartService.UpdateItemQuantity(r.Context(), sessionID(r), index, req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, summary)
}

// Remove handles DELETE /api/cart/items/{index}
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	index, err := itemIndex(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	summary, err := h.cartService.RemoveItem(r.Context(), sessionID(r), index)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, summary)
}

// Clear handles DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	summary, err := h.cartService.ClearCart(r.Context(), sessionID(r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, summary)
}

// ApplyPromo handles POST /api/cart/promo
func (h *CartHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if err := handler.DecodeJSON(r, "cart.apply_promo", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	summary, err := h.cartService.ApplyPromoCode(r.Context(), sessionID(r), req.Code)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, summary)
}

// RemovePromo handles DELETE /api/cart/promo
func (h *CartHandler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	summary, err := h.cartService.RemovePromoCode(r.Context(), sessionID(r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, summary)
}

func (h *CartHandler) respond(w http.ResponseWriter, status int, summary *service.CartSummary) {
	bindSession(w, h.cookies, summary.SessionID)
	handler.WriteJSON(w, status, summary)
}

func itemIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		return 0, domain.Invalid("cart.item_index", "Item index must be a number")
	}
	return index, nil
}
