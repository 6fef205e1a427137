package storefront

import (
	"context"
	"errors"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/dukerupert/cutroom/internal/service"
)

var errNotConfigured = errors.New("mock not configured")

// mockCartService implements service.CartService for testing
type mockCartService struct {
	getCartFunc            func(ctx context.Context, sessionID string) ([]domain.CartLineItem, error)
	addItemFunc            func(ctx context.Context, sessionID string, params service.AddItemParams) (*service.CartSummary, error)
	updateItemQuantityFunc func(ctx context.Context, sessionID string, index, quantity int) (*service.CartSummary, error)
	removeItemFunc         func(ctx context.Context, sessionID string, index int) (*service.CartSummary, error)
	clearCartFunc          func(ctx context.Context, sessionID string) (*service.CartSummary, error)
	applyPromoCodeFunc     func(ctx context.Context, sessionID, code string) (*service.CartSummary, error)
	removePromoCodeFunc    func(ctx context.Context, sessionID string) (*service.CartSummary, error)
	summaryFunc            func(ctx context.Context, sessionID string) (*service.CartSummary, error)
}

var _ service.CartService = (*mockCartService)(nil)

func (m *mockCartService) GetCart(ctx context.Context, sessionID string) ([]domain.CartLineItem, error) {
	if m.getCartFunc != nil {
		return m.getCartFunc(ctx, sessionID)
	}
	return nil, errNotConfigured
}

func (m *mockCartService) AddItem(ctx context.Context, sessionID string, params service.AddItemParams) (*service.CartSummary, error) {
	if m.addItemFunc != nil {
		return m.addItemFunc(ctx, sessionID, params)
	}
	return nil, errNotConfigured
}

func (m *mockCartService) UpdateItemQuantity(ctx context.Context, sessionID string, index, quantity int) (*service.CartSummary, error) {
	if m.updateItemQuantityFunc != nil {
		return m.updateItemQuantityFunc(ctx, sessionID, index, quantity)
	}
	return nil, errNotConfigured
}

func (m *mockCartService) RemoveItem(ctx context.Context, sessionID string, index int) (*service.CartSummary, error) {
	if m.removeItemFunc != nil {
		return m.removeItemFunc(ctx, sessionID, index)
	}
	return nil, errNotConfigured
}

func (m *mockCartService) ClearCart(ctx context.Context, sessionID string) (*service.CartSummary, error) {
	if m.clearCartFunc != nil {
		return m.clearCartFunc(ctx, sessionID)
	}
	return nil, errNotConfigured
}

func (m *mockCartService) ApplyPromoCode(ctx context.Context, sessionID, code string) (*service.CartSummary, error) {
	if m.applyPromoCodeFunc != nil {
		return m.applyPromoCodeFunc(ctx, sessionID, code)
	}
	return nil, errNotConfigured
}

func (m *mockCartService) RemovePromoCode(ctx context.Context, sessionID string) (*service.CartSummary, error) {
	if m.removePromoCodeFunc != nil {
		return m.removePromoCodeFunc(ctx, sessionID)
	}
	return nil, errNotConfigured
}

func (m *mockCartService) Summary(ctx context.Context, sessionID string) (*service.CartSummary, error) {
	if m.summaryFunc != nil {
		return m.summaryFunc(ctx, sessionID)
	}
	return nil, errNotConfigured
}

// mockCheckoutService implements service.CheckoutService for testing
type mockCheckoutService struct {
	statusFunc              func(ctx context.Context, sessionID string) (*service.CheckoutStatus, error)
	storeTokensFunc         func(ctx context.Context, sessionID string, tokens domain.TokenPair) (*service.CheckoutStatus, error)
	submitDetailsFunc       func(ctx context.Context, sessionID string, info domain.BillingInfo) (*service.CheckoutStatus, error)
	selectPaymentMethodFunc func(ctx context.Context, sessionID, selection string) (*service.CheckoutStatus, error)
	retryPaymentIntentFunc  func(ctx context.Context, sessionID string) (*service.CheckoutStatus, error)
	submitOrderFunc         func(ctx context.Context, sessionID string) (*service.CheckoutStatus, error)
	orderHistoryFunc        func(ctx context.Context, sessionID string) ([]domain.Order, error)
}

var _ service.CheckoutService = (*mockCheckoutService)(nil)

func (m *mockCheckoutService) Status(ctx context.Context, sessionID string) (*service.CheckoutStatus, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ctx, sessionID)
	}
	return nil, errNotConfigured
}

func (m *mockCheckoutService) StoreTokens(ctx context.Context, sessionID string, tokens domain.TokenPair) (*service.CheckoutStatus, error) {
	if m.storeTokensFunc != nil {
		return m.storeTokensFunc(ctx, sessionID, tokens)
	}
	return nil, errNotConfigured
}

func (m *mockCheckoutService) SubmitDetails(ctx context.Context, sessionID string, info domain.BillingInfo) (*service.CheckoutStatus, error) {
	if m.submitDetailsFunc != nil {
		return m.submitDetailsFunc(ctx, sessionID, info)
	}
	return nil, errNotConfigured
}

func (m *mockCheckoutService) SelectPaymentMethod(ctx context.Context, sessionID, selection string) (*service.CheckoutStatus, error) {
	if m.selectPaymentMethodFunc != nil {
		return m.selectPaymentMethodFunc(ctx, sessionID, selection)
	}
	return nil, errNotConfigured
}

func (m *mockCheckoutService) RetryPaymentIntent(ctx context.Context, sessionID string) (*service.CheckoutStatus, error) {
	if m.retryPaymentIntentFunc != nil {
		return m.retryPaymentIntentFunc(ctx, sessionID)
	}
	return nil, errNotConfigured
}

func (m *mockCheckoutService) SubmitOrder(ctx context.Context, sessionID string) (*service.CheckoutStatus, error) {
	if m.submitOrderFunc != nil {
		return m.submitOrderFunc(ctx, sessionID)
	}
	return nil, errNotConfigured
}

func (m *mockCheckoutService) OrderHistory(ctx context.Context, sessionID string) ([]domain.Order, error) {
	if m.orderHistoryFunc != nil {
		return m.orderHistoryFunc(ctx, sessionID)
	}
	return nil, errNotConfigured
}
