package service

import (
	"github.com/dukerupert/cutroom/internal/domain"
)

// Catalog errors - use domain.ENOTFOUND / domain.EINVALID
var (
	ErrServiceNotFound = domain.Errorf(domain.ENOTFOUND, "", "Service not found")
	ErrUnknownAddon    = domain.Errorf(domain.EINVALID, "", "Addon not found in catalog")
)

// Checkout errors
var (
	ErrPaymentIntentFailed = domain.Errorf(domain.EPAYMENT, "", "Payment could not be prepared. Please retry.")
	ErrWrongCheckoutState  = domain.Errorf(domain.ECONFLICT, "", "This step is not available yet")
	ErrNoPaymentMethod     = domain.Errorf(domain.EINVALID, "", "Select a payment method first")
	ErrIdentityUnavailable = domain.Errorf(domain.EUNAVAILABLE, "", "We could not confirm your sign-in right now. Please retry in a moment.")
)
