package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"
	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/shopspring/decimal"
)

// Confirmations sends the "order received" mail for newly created orders.
type Confirmations struct {
	sender Sender
	from   string
	html   func(*domain.Order) templ.Component
}

// NewConfirmations returns a mailer that sends from the given address. html
// renders the message body; nil sends plain text only.
func NewConfirmations(sender Sender, from string, html func(*domain.Order) templ.Component) *Confirmations {
	return &Confirmations{sender: sender, from: from, html: html}
}

// OrderConfirmed composes and sends the confirmation for o.
func (c *Confirmations) OrderConfirmed(ctx context.Context, o *domain.Order) error {
	if o.Customer.Email == "" {
		return domain.Invalid("email.order_confirmed", "Order has no customer email")
	}

	msg := &Email{
		To:       []string{o.Customer.Email},
		From:     c.from,
		Subject:  confirmationSubject(o),
		TextBody: confirmationText(o),
		Headers:  map[string]string{"X-Order-ID": o.ID.String()},
	}
	if c.html != nil {
		var b strings.Builder
		if err := c.html(o).Render(ctx, &b); err != nil {
			return fmt.Errorf("render confirmation: %w", err)
		}
		msg.HTMLBody = b.String()
	}

	return c.sender.Send(ctx, msg)
}

func confirmationSubject(o *domain.Order) string {
	short := o.ID.String()
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("Your cutroom order %s", short)
}

func confirmationText(o *domain.Order) string {
	var b strings.Builder

	greeting := o.Customer.Name
	if greeting == "" {
		greeting = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\nThanks for your order. We have started on it.\n\n", greeting)
	fmt.Fprintf(&b, "Order: %s\n", o.ID)

	for _, it := range o.CartItems {
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		fmt.Fprintf(&b, "  %d x %s (%s)  $%s\n", it.Quantity, it.Title, it.Plan, line.StringFixed(2))
		for _, a := range it.Addons {
			fmt.Fprintf(&b, "      + %s\n", a.Title)
		}
	}
	if o.PromoCode != "" {
		fmt.Fprintf(&b, "Promo code: %s\n", o.PromoCode)
	}
	fmt.Fprintf(&b, "Total: $%s\n\n", o.Total.StringFixed(2))

	if o.PaymentStatus == domain.PaymentStatusPendingConfirmation {
		b.WriteString("We will confirm once your payment has been received.\n")
	}
	return b.String()
}
