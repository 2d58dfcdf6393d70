package handler

import (
	"context"
	"time"

	"atelier-checkout/internal/model"
	"atelier-checkout/internal/shipping"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockCheckoutService is a mock implementation of CheckoutService.
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) CreateHostedSession(ctx context.Context, req *model.CheckoutRequest) (*model.HostedCheckoutResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HostedCheckoutResponse), args.Error(1)
}

func (m *MockCheckoutService) CreateWalletOrder(ctx context.Context, req *model.CheckoutRequest) (*model.WalletOrderResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WalletOrderResponse), args.Error(1)
}

func (m *MockCheckoutService) CaptureWalletOrder(ctx context.Context, providerOrderID string) (*model.CaptureResponse, error) {
	args := m.Called(ctx, providerOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CaptureResponse), args.Error(1)
}

func (m *MockCheckoutService) HandleHostedWebhook(ctx context.Context, payload []byte, signature string) error {
	args := m.Called(ctx, payload, signature)
	return args.Error(0)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) GetByID(ctx context.Context, id uuid.UUID) (*model.OrderResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderResponse), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, req *model.StatusUpdateRequest) (*model.OrderResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderResponse), args.Error(1)
}

func (m *MockOrderService) ExpireStale(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockQuoter is a mock implementation of ShippingQuoter.
type MockQuoter struct {
	mock.Mock
}

func (m *MockQuoter) Quote(req shipping.QuoteRequest, today time.Time) (*shipping.Quote, error) {
	args := m.Called(req, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipping.Quote), args.Error(1)
}

// MockInventoryService is a mock implementation of InventoryService.
type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockInventoryService) GetVariantStock(ctx context.Context, id string) (*model.VariantStockResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VariantStockResponse), args.Error(1)
}
