package port

import (
	"context"

	"github.com/studykart/studykart/internal/domain"
)

// CartRepository persists cart and bundle state across sessions so a
// reload resumes where the shopper left off.
type CartRepository interface {
	GetCart(ctx context.Context, ownerID string) (domain.Cart, error)
	GetBundle(ctx context.Context, ownerID string) (domain.BundleSelection, error)
	SaveSnapshot(ctx context.Context, cart domain.Cart, bundle domain.BundleSelection) error
}
