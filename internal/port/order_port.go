package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/studykart/studykart/internal/domain"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (bool, error)
	// SetGateway records which gateway the order was charged through
	// once selection settles.
	SetGateway(ctx context.Context, orderID uuid.UUID, gatewayID string) error
}
