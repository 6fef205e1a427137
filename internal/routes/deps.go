package routes

import (
	"net/http"

	"github.com/dukerupert/cutroom/internal/handler/storefront"
	"github.com/dukerupert/cutroom/internal/middleware"
)

// StorefrontDeps contains dependencies for storefront routes
type StorefrontDeps struct {
	CatalogHandler  *storefront.CatalogHandler
	CartHandler     *storefront.CartHandler
	CheckoutHandler *storefront.CheckoutHandler

	// PaidLimiter budgets order submission and payment intent retries per
	// shopper. Nil disables the limit.
	PaidLimiter middleware.Limiter
}

// OpsDeps contains dependencies for health and metrics routes
type OpsDeps struct {
	Health  http.HandlerFunc
	Metrics http.Handler
}
