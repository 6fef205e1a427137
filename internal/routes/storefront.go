package routes

import (
	"github.com/dukerupert/cutroom/internal/handler"
	"github.com/dukerupert/cutroom/internal/middleware"
	"github.com/dukerupert/cutroom/internal/router"
)

// RegisterStorefrontRoutes registers the JSON API used by the storefront
// front end. Timeouts are set per group; submission gets a longer bound.
func RegisterStorefrontRoutes(r *router.Router, deps StorefrontDeps) {
	api := r.Group(middleware.MaxBodySize(middleware.DefaultMaxBodySize))
	timed := api.Group(middleware.Timeout(middleware.DefaultTimeout))

	// Catalog
	timed.Get("/api/catalog", deps.CatalogHandler.List)

	// Shopping cart
	timed.Get("/api/cart", deps.CartHandler.View)
	timed.Delete("/api/cart", deps.CartHandler.Clear)
	timed.Post("/api/cart/items", deps.CartHandler.Add)
	timed.Patch("/api/cart/items/{index}", deps.CartHandler.UpdateQuantity)
	timed.Delete("/api/cart/items/{index}", deps.CartHandler.Remove)
	timed.Post("/api/cart/promo", deps.CartHandler.ApplyPromo, middleware.MaxBodySize(middleware.SmallMaxBodySize))
	timed.Delete("/api/cart/promo", deps.CartHandler.RemovePromo)

	// Checkout flow
	timed.Get("/api/checkout", deps.CheckoutHandler.Status)
	timed.Post("/api/checkout/tokens", deps.CheckoutHandler.StoreTokens, middleware.MaxBodySize(middleware.SmallMaxBodySize))
	timed.Post("/api/checkout/details", deps.CheckoutHandler.SubmitDetails)
	timed.Post("/api/checkout/payment-method", deps.CheckoutHandler.SelectPaymentMethod)

	// Calls that fan out to the payment provider and order API
	paid := api
	if deps.PaidLimiter != nil {
		paid = api.Group(middleware.RateLimit(deps.PaidLimiter, middleware.ShopperKey))
	}
	paid.Post("/api/checkout/payment-intent/retry", deps.CheckoutHandler.RetryPaymentIntent, middleware.Timeout(middleware.DefaultTimeout))
	paid.Post("/api/checkout/submit", deps.CheckoutHandler.Submit, middleware.Timeout(middleware.SubmitTimeout))

	// Order history
	timed.Get("/api/orders", deps.CheckoutHandler.Orders)

	r.NotFound(handler.NotFoundResponse)
}

// RegisterOpsRoutes registers health and metrics endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", deps.Health)
	if deps.Metrics != nil {
		r.Handle("GET", "/metrics", deps.Metrics)
	}
}
