package domain

import (
	"slices"
	"strings"
)

var (
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrInvalidPlan      = &Error{Code: EINVALID, Message: "Plan must be one-time or monthly"}
	ErrServiceRequired  = &Error{Code: EINVALID, Message: "Service is required"}
)

// Plan is the billing cadence chosen when a service is added to the cart.
type Plan string

const (
	PlanOneTime Plan = "one-time"
	PlanMonthly Plan = "monthly"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanOneTime || p == PlanMonthly
}

// CartLineItem is one entry in a shopper's cart.
type CartLineItem struct {
	Service ServiceDefinition `json:"service"`
	Plan    Plan              `json:"plan"`

	// Addons holds addon references, sorted and without duplicates.
	Addons   []string `json:"addons"`
	Quantity int      `json:"quantity"`
}

// NewCartLineItem builds a line item for every "add to cart" entry point.
// An empty plan defaults to one-time.
func NewCartLineItem(service ServiceDefinition, plan Plan, addons []string, quantity int) (CartLineItem, error) {
	if service.ID == "" {
		return CartLineItem{}, WithOp(ErrServiceRequired, "cart.new_item")
	}
	if plan == "" {
		plan = PlanOneTime
	}
	if !plan.Valid() {
		return CartLineItem{}, WithOp(ErrInvalidPlan, "cart.new_item")
	}
	if quantity < 1 {
		return CartLineItem{}, WithOp(ErrInvalidQuantity, "cart.new_item")
	}

	return CartLineItem{
		Service:  service,
		Plan:     plan,
		Addons:   NormalizeAddons(addons),
		Quantity: quantity,
	}, nil
}

// NormalizeAddons trims, drops empties, sorts and de-duplicates addon references.
func NormalizeAddons(addons []string) []string {
	out := make([]string, 0, len(addons))
	for _, a := range addons {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// SameSelection reports whether two items describe the same service with the
// same addon set, regardless of addon order.
func (i CartLineItem) SameSelection(other CartLineItem) bool {
	if i.Service.ID != other.Service.ID {
		return false
	}
	return slices.Equal(NormalizeAddons(i.Addons), NormalizeAddons(other.Addons))
}
