package port

import (
	"context"

	"github.com/studykart/studykart/internal/domain"
)

type GatewayRepository interface {
	ListActive(ctx context.Context) ([]domain.Gateway, error)
	GetGateway(ctx context.Context, id string) (domain.Gateway, error)
}
