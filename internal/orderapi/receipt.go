package orderapi

//go:generate templ generate -f receipt.templ

import (
	"strings"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/shopspring/decimal"
)

func placedAt(o *domain.Order) string {
	return o.CreatedAt.UTC().Format("2 Jan 2006 15:04 MST")
}

func addonNames(it domain.OrderItem) string {
	names := make([]string, len(it.Addons))
	for i, a := range it.Addons {
		names[i] = a.Title
	}
	return strings.Join(names, ", ")
}

func lineTotal(it domain.OrderItem) string {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).StringFixed(2)
}

func paymentLabel(m domain.PaymentMethod) string {
	switch m {
	case domain.PaymentMethodCreditCard:
		return "Credit card"
	case domain.PaymentMethodPayPal:
		return "PayPal"
	case domain.PaymentMethodBankTransfer:
		return "Bank transfer"
	}
	return string(m)
}
