// Package email sends order confirmation mail.
package email

import "context"

// Email is a message ready to hand to a Sender.
type Email struct {
	To       []string
	From     string
	Subject  string
	TextBody string
	HTMLBody string            // optional
	Headers  map[string]string // optional
}

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, email *Email) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, email *Email) error

func (f SenderFunc) Send(ctx context.Context, email *Email) error { return f(ctx, email) }
