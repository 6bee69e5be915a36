// Package checkout hands a reconciled cart off to an external payment
// provider. Providers are opaque: they receive the authoritative total
// and an item manifest and answer with a redirect/approval handle.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/studykart/studykart/internal/cart"
	"github.com/studykart/studykart/internal/domain"
	"github.com/studykart/studykart/internal/port"
	"github.com/studykart/studykart/internal/pricing"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidEmail     = errors.New("a valid email is required")
	ErrCheckoutInFlight = errors.New("checkout already in progress")
	ErrNoGateway        = errors.New("no payment methods available")
	ErrUnknownGateway   = errors.New("unknown payment gateway")
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Request describes one checkout attempt. Either UserID (authenticated)
// or Email (guest) must identify the customer.
type Request struct {
	OwnerID   string
	UserID    string
	Email     string
	GatewayID string // empty selects the first active gateway
}

// Handle is what the UI needs to continue with the provider.
type Handle struct {
	OrderID     uuid.UUID
	SessionID   string
	RedirectURL string
	Gateway     domain.Gateway
	Total       domain.Money
}

const defaultProviderTimeout = 30 * time.Second

type Initiator struct {
	manager    *cart.Manager
	reconciler *pricing.Reconciler
	orders     port.OrderRepository
	gateways   port.GatewayRepository
	providers  map[string]port.PaymentProvider
	timeout    time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewInitiator(
	manager *cart.Manager,
	reconciler *pricing.Reconciler,
	orders port.OrderRepository,
	gateways port.GatewayRepository,
	providers map[string]port.PaymentProvider,
	timeout time.Duration,
	logger *zap.Logger,
) *Initiator {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Initiator{
		manager:    manager,
		reconciler: reconciler,
		orders:     orders,
		gateways:   gateways,
		providers:  providers,
		timeout:    timeout,
		logger:     logger,
		inFlight:   make(map[string]bool),
	}
}

// buildOrder validates the request locally and assembles the pending
// order from the reconciled cart. No I/O happens here; validation
// failures are returned before any network call is made.
func (in *Initiator) buildOrder(ctx context.Context, req Request) (domain.Order, error) {
	if req.UserID == "" && !emailRe.MatchString(req.Email) {
		return domain.Order{}, ErrInvalidEmail
	}

	store, err := in.manager.Get(ctx, req.OwnerID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("manager.Get: %w", err)
	}

	snapshot := store.Cart()
	bundle := store.Bundle()
	if len(snapshot.Items) == 0 && len(bundle.Items) == 0 {
		return domain.Order{}, ErrEmptyCart
	}

	breakdown := in.reconciler.Checkout(snapshot, bundle).Rounded()

	return domain.Order{
		ID:              uuid.New(),
		OwnerID:         req.OwnerID,
		Email:           req.Email,
		IsGuestCheckout: req.UserID == "",
		Lines:           manifest(snapshot, bundle),
		Total:           domain.NewMoney(breakdown.GrandTotal, breakdown.Currency),
		Status:          domain.OrderStatusPending,
		GatewayID:       req.GatewayID,
	}, nil
}

// PlaceOrder validates the cart and persists a pending order priced at
// the reconciled total. The provider session is created separately. The
// same per-owner single-flight guard as Initiate applies, so a
// double-submitted order form creates one pending order, not two.
func (in *Initiator) PlaceOrder(ctx context.Context, req Request) (domain.Order, error) {
	order, err := in.buildOrder(ctx, req)
	if err != nil {
		return domain.Order{}, err
	}

	if !in.acquire(req.OwnerID) {
		return domain.Order{}, ErrCheckoutInFlight
	}
	defer in.release(req.OwnerID)

	ctx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()

	if err := in.orders.CreateOrder(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("orders.CreateOrder: %w", err)
	}

	return order, nil
}

// CreateSession starts the provider flow for an already placed order.
func (in *Initiator) CreateSession(ctx context.Context, ownerID string, orderID uuid.UUID, gatewayID string) (Handle, error) {
	if !in.acquire(ownerID) {
		return Handle{}, ErrCheckoutInFlight
	}
	defer in.release(ownerID)

	ctx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()

	order, err := in.orders.GetOrder(ctx, orderID)
	if err != nil {
		return Handle{}, fmt.Errorf("orders.GetOrder: %w", err)
	}

	gateway, err := in.selectGateway(ctx, gatewayID)
	if err != nil {
		return Handle{}, err
	}

	if err := in.recordGateway(ctx, &order, gateway); err != nil {
		return Handle{}, err
	}

	return in.createSession(ctx, order, gateway)
}

// Initiate validates the request locally, creates the backend order and
// the provider session in one shot, and returns the provider handle. On
// any failure the cart and bundle are left untouched so the shopper can
// retry.
func (in *Initiator) Initiate(ctx context.Context, req Request) (Handle, error) {
	order, err := in.buildOrder(ctx, req)
	if err != nil {
		return Handle{}, err
	}

	if !in.acquire(req.OwnerID) {
		return Handle{}, ErrCheckoutInFlight
	}
	defer in.release(req.OwnerID)

	ctx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()

	var gateway domain.Gateway

	// the gateway lookup and the order insert are independent
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		gateway, err = in.selectGateway(gctx, req.GatewayID)
		return err
	})
	g.Go(func() error {
		if err := in.orders.CreateOrder(gctx, order); err != nil {
			return fmt.Errorf("orders.CreateOrder: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Handle{}, err
	}

	if err := in.recordGateway(ctx, &order, gateway); err != nil {
		return Handle{}, err
	}

	return in.createSession(ctx, order, gateway)
}

// recordGateway backfills the selected gateway onto the persisted order
// when the request left the choice to the default, so the order row
// always names the gateway it was charged through.
func (in *Initiator) recordGateway(ctx context.Context, order *domain.Order, gateway domain.Gateway) error {
	if order.GatewayID == gateway.ID {
		return nil
	}

	if err := in.orders.SetGateway(ctx, order.ID, gateway.ID); err != nil {
		return fmt.Errorf("orders.SetGateway: %w", err)
	}
	order.GatewayID = gateway.ID

	return nil
}

func (in *Initiator) createSession(ctx context.Context, order domain.Order, gateway domain.Gateway) (Handle, error) {
	provider, ok := in.providers[gateway.ID]
	if !ok {
		return Handle{}, fmt.Errorf("%w: %s", ErrUnknownGateway, gateway.ID)
	}

	session, err := provider.CreateSession(ctx, port.SessionRequest{
		OrderID: order.ID,
		Total:   order.Total,
		Items:   order.Lines,
		Email:   order.Email,
	})
	if err != nil {
		in.logger.Warn("provider session failed",
			zap.String("gateway", gateway.ID),
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
		return Handle{}, fmt.Errorf("provider.CreateSession: %w", err)
	}

	in.logger.Info("checkout initiated",
		zap.String("gateway", gateway.ID),
		zap.String("order_id", order.ID.String()),
		zap.String("total", order.Total.String()))

	return Handle{
		OrderID:     order.ID,
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
		Gateway:     gateway,
		Total:       order.Total,
	}, nil
}

// Confirm marks an order paid after the provider's verification step and
// clears the owner's cart. Clearing only happens here, on confirmed
// success. A replayed confirmation for an already paid order is a no-op;
// the provider capture is never re-run.
func (in *Initiator) Confirm(ctx context.Context, ownerID, gatewayID string, orderID uuid.UUID, providerOrderID string) error {
	order, err := in.orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("orders.GetOrder: %w", err)
	}
	if order.Status == domain.OrderStatusPaid {
		return nil
	}

	if provider, ok := in.providers[gatewayID]; ok {
		if verifier, ok := provider.(port.PaymentVerifier); ok && providerOrderID != "" {
			if err := verifier.VerifyPayment(ctx, providerOrderID); err != nil {
				return fmt.Errorf("verifier.VerifyPayment: %w", err)
			}
		}
	}

	if _, err := in.orders.UpdateStatus(ctx, orderID, domain.OrderStatusPaid); err != nil {
		return fmt.Errorf("orders.UpdateStatus: %w", err)
	}

	store, err := in.manager.Get(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("manager.Get: %w", err)
	}
	store.Clear()
	store.ResetPackage()

	if err := in.manager.Persist(ctx, ownerID); err != nil {
		// payment is confirmed; a stale snapshot is recoverable
		in.logger.Warn("persist after confirm failed", zap.Error(err))
	}

	return nil
}

func (in *Initiator) selectGateway(ctx context.Context, gatewayID string) (domain.Gateway, error) {
	if gatewayID != "" {
		gateway, err := in.gateways.GetGateway(ctx, gatewayID)
		if err != nil {
			return domain.Gateway{}, fmt.Errorf("gateways.GetGateway: %w", err)
		}
		if !gateway.IsActive {
			return domain.Gateway{}, fmt.Errorf("%w: %s", ErrUnknownGateway, gatewayID)
		}
		return gateway, nil
	}

	active, err := in.gateways.ListActive(ctx)
	if err != nil {
		return domain.Gateway{}, fmt.Errorf("gateways.ListActive: %w", err)
	}
	if len(active) == 0 {
		return domain.Gateway{}, ErrNoGateway
	}

	return active[0], nil
}

func (in *Initiator) acquire(ownerID string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.inFlight[ownerID] {
		return false
	}
	in.inFlight[ownerID] = true

	return true
}

func (in *Initiator) release(ownerID string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	delete(in.inFlight, ownerID)
}

// manifest flattens cart lines and the in-progress bundle members into
// the order's item list. Bundle members ride at unit quantity; a shared
// product's cart line is decremented by the unit the bundle absorbs,
// mirroring the reconciler's partition.
func manifest(snapshot domain.Cart, bundle domain.BundleSelection) []domain.OrderLine {
	var lines []domain.OrderLine

	active := bundle.Active() && len(bundle.Items) > 0

	for _, item := range snapshot.Items {
		quantity := item.Quantity
		if active && !item.IsPackage && bundle.Contains(item.ProductID) {
			quantity--
		}
		if quantity <= 0 {
			continue
		}
		lines = append(lines, domain.OrderLine{
			ProductID: item.ProductID,
			Title:     item.Title,
			Price:     item.Price,
			Quantity:  quantity,
		})
	}

	if active {
		for _, item := range bundle.Items {
			lines = append(lines, domain.OrderLine{
				ProductID: item.ProductID,
				Title:     item.Title,
				Price:     item.Price,
				Quantity:  1,
			})
		}
	}

	return lines
}
