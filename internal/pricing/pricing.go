// Package pricing derives cart totals from line items and a catalog snapshot.
// Every function here is pure: no I/O and no mutation of its inputs.
package pricing

import (
	"strings"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultPromoCode is the promo code accepted when none is configured.
const DefaultPromoCode = "WELCOME10"

// promoRate is the flat discount for a valid promo code.
var promoRate = decimal.New(10, -2)

var ErrInvalidPromoCode = &domain.Error{Code: domain.EINVALID, Message: "Promo code is not valid"}

// AddonLookup resolves addon references. *catalog.Snapshot satisfies it.
type AddonLookup interface {
	Addon(ref string) (domain.AddonDefinition, bool)
}

// Calculator prices carts against one catalog snapshot.
type Calculator struct {
	addons    AddonLookup
	promoCode string
}

// New creates a calculator. An empty promoCode falls back to DefaultPromoCode.
func New(addons AddonLookup, promoCode string) *Calculator {
	promoCode = strings.TrimSpace(promoCode)
	if promoCode == "" {
		promoCode = DefaultPromoCode
	}
	return &Calculator{addons: addons, promoCode: promoCode}
}

// LineItemAddonsCost sums the prices of the item's addons. References missing
// from the catalog contribute zero.
func (c *Calculator) LineItemAddonsCost(item domain.CartLineItem) decimal.Decimal {
	cost, _ := c.addonsCost(item)
	return cost
}

func (c *Calculator) addonsCost(item domain.CartLineItem) (decimal.Decimal, []string) {
	cost := decimal.Zero
	var unknown []string
	for _, ref := range item.Addons {
		addon, ok := c.addons.Addon(ref)
		if !ok {
			unknown = append(unknown, ref)
			continue
		}
		cost = cost.Add(addon.Price)
	}
	return cost, unknown
}

// UnitPrice is the service price plus addon cost for a single unit.
func (c *Calculator) UnitPrice(item domain.CartLineItem) decimal.Decimal {
	return item.Service.Price.Add(c.LineItemAddonsCost(item))
}

// LineItemTotal is (service price + addon cost) * quantity.
// The plan does not affect the price.
func (c *Calculator) LineItemTotal(item domain.CartLineItem) decimal.Decimal {
	return c.UnitPrice(item).Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// Subtotal sums LineItemTotal over items.
func (c *Calculator) Subtotal(items []domain.CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(c.LineItemTotal(item))
	}
	return total
}

// PromoResult is the outcome of applying a promo code to a subtotal.
type PromoResult struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// ApplyPromoCode applies a flat 10% discount when code matches the configured
// promo code, ignoring case and surrounding whitespace.
func (c *Calculator) ApplyPromoCode(subtotal decimal.Decimal, code string) (PromoResult, error) {
	if !c.ValidPromoCode(code) {
		return PromoResult{Total: subtotal, Discount: decimal.Zero}, domain.WithOp(ErrInvalidPromoCode, "pricing.apply_promo")
	}
	discount := subtotal.Mul(promoRate).Round(2)
	return PromoResult{
		Code:     strings.ToUpper(c.promoCode),
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}, nil
}

// ValidPromoCode reports whether code matches the configured promo code.
func (c *Calculator) ValidPromoCode(code string) bool {
	return strings.EqualFold(strings.TrimSpace(code), c.promoCode)
}

// Line is the priced view of one cart line.
type Line struct {
	Index         int                 `json:"index"`
	Item          domain.CartLineItem `json:"item"`
	AddonsCost    decimal.Decimal     `json:"addons_cost"`
	UnitPrice     decimal.Decimal     `json:"unit_price"`
	Total         decimal.Decimal     `json:"total"`
	UnknownAddons []string            `json:"unknown_addons,omitempty"`
}

// Totals is the full price breakdown of a cart.
type Totals struct {
	Lines     []Line          `json:"lines"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	PromoCode string          `json:"promo_code,omitempty"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
}

// UnknownAddons lists every addon reference that did not resolve.
func (t Totals) UnknownAddons() []string {
	var out []string
	for _, l := range t.Lines {
		out = append(out, l.UnknownAddons...)
	}
	return out
}

// Totals prices every line and applies promoCode if it is non-empty and valid.
// An invalid promo code is ignored: the discount is zero.
func (c *Calculator) Totals(items []domain.CartLineItem, promoCode string) Totals {
	t := Totals{
		Lines:    make([]Line, 0, len(items)),
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
	}

	for i, item := range items {
		addonsCost, unknown := c.addonsCost(item)
		unit := item.Service.Price.Add(addonsCost)
		lineTotal := unit.Mul(decimal.NewFromInt(int64(item.Quantity)))

		t.Lines = append(t.Lines, Line{
			Index:         i,
			Item:          item,
			AddonsCost:    addonsCost,
			UnitPrice:     unit,
			Total:         lineTotal,
			UnknownAddons: unknown,
		})
		t.Subtotal = t.Subtotal.Add(lineTotal)
		t.ItemCount += item.Quantity
	}

	t.Total = t.Subtotal
	if promoCode != "" {
		if res, err := c.ApplyPromoCode(t.Subtotal, promoCode); err == nil {
			t.PromoCode = res.Code
			t.Discount = res.Discount
			t.Total = res.Total
		}
	}

	return t
}

// ToMinorUnits converts an amount to integer cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
