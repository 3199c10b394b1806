package testhelpers

import (
	"context"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/stretchr/testify/mock"
)

// MockGateway is a testify mock of application.GatewayClient.
type MockGateway struct {
	mock.Mock
}

func NewMockGateway(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockGateway {
	m := &MockGateway{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockGateway) CreateOrder(ctx context.Context, req application.CreateOrderRequest) (*application.GatewayOrder, error) {
	args := m.Called(ctx, req)
	if order, ok := args.Get(0).(*application.GatewayOrder); ok {
		return order, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGateway) CaptureOrder(ctx context.Context, gatewayOrderID string) (*application.CaptureResult, error) {
	args := m.Called(ctx, gatewayOrderID)
	if res, ok := args.Get(0).(*application.CaptureResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGateway) GetOrder(ctx context.Context, gatewayOrderID string) (*application.CaptureResult, error) {
	args := m.Called(ctx, gatewayOrderID)
	if res, ok := args.Get(0).(*application.CaptureResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}
