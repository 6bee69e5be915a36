package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/studykart/studykart/internal/domain"
)

// SessionRequest carries the reconciled total and the item manifest to a
// payment provider. The total is authoritative; providers never recompute.
type SessionRequest struct {
	OrderID uuid.UUID
	Total   domain.Money
	Items   []domain.OrderLine
	Email   string
}

// Session is the provider's handle for an approval/redirect flow.
type Session struct {
	ID          string
	RedirectURL string
}

// PaymentProvider is an opaque external checkout service.
type PaymentProvider interface {
	Name() string
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// PaymentVerifier captures providers whose flow ends with an explicit
// server-side verification step (PayPal).
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, providerOrderID string) error
}
