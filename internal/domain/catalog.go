package domain

import "github.com/shopspring/decimal"

// ServiceDefinition is a sellable video-editing package as published by the
// catalog. It is never mutated by the storefront.
type ServiceDefinition struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Duration    string          `json:"duration"`
	Features    []string        `json:"features"`
	Videos      []string        `json:"videos,omitempty"`
	Thumbnail   string          `json:"thumbnail,omitempty"`

	// MonthlyPriceID is the payment provider's recurring price for the
	// monthly plan. Totals do not use it.
	MonthlyPriceID string `json:"monthly_price_id,omitempty"`
}

// AddonDefinition is an optional extra that can be attached to a service.
type AddonDefinition struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}
