package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/currency"

	"github.com/studykart/studykart/internal/cart"
	"github.com/studykart/studykart/internal/checkout"
	"github.com/studykart/studykart/internal/discount"
	"github.com/studykart/studykart/internal/domain"
	"github.com/studykart/studykart/internal/port"
	"github.com/studykart/studykart/internal/pricing"
)

type fakeOrders struct {
	mu       sync.Mutex
	created  []domain.Order
	status   map[uuid.UUID]domain.OrderStatus
	gateways map[uuid.UUID]string
	fail     error

	createBlock   chan struct{} // when set, CreateOrder waits for a signal
	createEntered chan struct{} // closed once CreateOrder is first reached
	enterOnce     sync.Once
}

func (f *fakeOrders) CreateOrder(ctx context.Context, order domain.Order) error {
	if f.createEntered != nil {
		f.enterOnce.Do(func() { close(f.createEntered) })
	}
	if f.createBlock != nil {
		select {
		case <-f.createBlock:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.fail != nil {
		return f.fail
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, order)
	return nil
}

func (f *fakeOrders) GetOrder(_ context.Context, orderID uuid.UUID) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, o := range f.created {
		if o.ID == orderID {
			if status, ok := f.status[o.ID]; ok {
				o.Status = status
			}
			if gatewayID, ok := f.gateways[o.ID]; ok {
				o.GatewayID = gatewayID
			}
			return o, nil
		}
	}
	return domain.Order{}, errors.New("order not found")
}

func (f *fakeOrders) UpdateStatus(_ context.Context, orderID uuid.UUID, status domain.OrderStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status == nil {
		f.status = make(map[uuid.UUID]domain.OrderStatus)
	}
	f.status[orderID] = status
	return true, nil
}

func (f *fakeOrders) SetGateway(_ context.Context, orderID uuid.UUID, gatewayID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gateways == nil {
		f.gateways = make(map[uuid.UUID]string)
	}
	f.gateways[orderID] = gatewayID
	return nil
}

type fakeGateways struct {
	active []domain.Gateway
	fail   error
}

func (f *fakeGateways) ListActive(context.Context) ([]domain.Gateway, error) {
	return f.active, f.fail
}

func (f *fakeGateways) GetGateway(_ context.Context, id string) (domain.Gateway, error) {
	for _, g := range f.active {
		if g.ID == id {
			return g, nil
		}
	}
	return domain.Gateway{}, errors.New("gateway not found")
}

type fakeProvider struct {
	mu        sync.Mutex
	requests  []port.SessionRequest
	verified  []string
	fail      error
	block     chan struct{} // when set, CreateSession waits for a signal
	entered   chan struct{} // closed once CreateSession is first reached
	enterOnce sync.Once
}

func (f *fakeProvider) Name() string { return "stripe" }

func (f *fakeProvider) CreateSession(ctx context.Context, req port.SessionRequest) (port.Session, error) {
	if f.entered != nil {
		f.enterOnce.Do(func() { close(f.entered) })
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return port.Session{}, ctx.Err()
		}
	}
	if f.fail != nil {
		return port.Session{}, f.fail
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return port.Session{ID: "sess_123", RedirectURL: "https://pay.example/sess_123"}, nil
}

func (f *fakeProvider) VerifyPayment(_ context.Context, providerOrderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, providerOrderID)
	return nil
}

type fixture struct {
	manager   *cart.Manager
	initiator *checkout.Initiator
	orders    *fakeOrders
	provider  *fakeProvider
}

func newFixture(t *testing.T, gateways *fakeGateways, orders *fakeOrders, provider *fakeProvider) fixture {
	t.Helper()

	policy := discount.NewPolicy(nil)
	manager := cart.NewManager(policy, nil)

	initiator := checkout.NewInitiator(
		manager,
		pricing.NewReconciler(policy),
		orders,
		gateways,
		map[string]port.PaymentProvider{"stripe": provider, "paypal": provider},
		time.Second,
		zaptest.NewLogger(t),
	)

	return fixture{manager: manager, initiator: initiator, orders: orders, provider: provider}
}

func stripeGateway() *fakeGateways {
	return &fakeGateways{active: []domain.Gateway{{
		ID:          "stripe",
		Name:        "Stripe",
		IsActive:    true,
		Environment: "test",
	}}}
}

func usd(amount float64) domain.Money {
	return domain.NewMoney(decimal.NewFromFloat(amount), currency.USD)
}

func fill(t *testing.T, manager *cart.Manager, ownerID string) *cart.Store {
	t.Helper()

	store, err := manager.Get(t.Context(), ownerID)
	require.NoError(t, err)
	require.NoError(t, store.AddItem(domain.CartItem{
		ProductID: uuid.New(),
		Title:     "NCLEX flashcards",
		Price:     usd(60),
		Quantity:  1,
	}))
	return store
}

func TestInitiateValidation(t *testing.T) {
	fx := newFixture(t, stripeGateway(), &fakeOrders{}, &fakeProvider{})
	owner := uuid.NewString()
	fill(t, fx.manager, owner)

	tests := []struct {
		name    string
		req     checkout.Request
		wantErr error
	}{
		{
			name:    "guest without email",
			req:     checkout.Request{OwnerID: owner},
			wantErr: checkout.ErrInvalidEmail,
		},
		{
			name:    "guest with malformed email",
			req:     checkout.Request{OwnerID: owner, Email: "not-an-email"},
			wantErr: checkout.ErrInvalidEmail,
		},
		{
			name:    "empty cart",
			req:     checkout.Request{OwnerID: uuid.NewString(), Email: "a@b.co"},
			wantErr: checkout.ErrEmptyCart,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.initiator.Initiate(t.Context(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)

			// local validation failures make no network calls
			assert.Empty(t, fx.orders.created)
		})
	}
}

func TestInitiateSuccess(t *testing.T) {
	fx := newFixture(t, stripeGateway(), &fakeOrders{}, &fakeProvider{})
	owner := uuid.NewString()
	store := fill(t, fx.manager, owner)

	// in-progress bundle rides along
	store.StartPackage(3)
	for _, price := range []float64{30, 30, 30} {
		require.NoError(t, store.AddToPackage(domain.BundleItem{
			ProductID: uuid.New(),
			Price:     usd(price),
		}))
	}

	handle, err := fx.initiator.Initiate(t.Context(), checkout.Request{
		OwnerID: owner,
		Email:   "student@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "sess_123", handle.SessionID)
	assert.Equal(t, "stripe", handle.Gateway.ID)
	assert.NotEqual(t, uuid.Nil, handle.OrderID)

	// 60 + 90*0.85
	want := decimal.RequireFromString("136.50")
	assert.True(t, handle.Total.Amount.Equal(want), "total: %s", handle.Total.Amount)

	// the provider received the reconciled total, not a recomputed one
	require.Len(t, fx.provider.requests, 1)
	assert.True(t, fx.provider.requests[0].Total.Amount.Equal(want))
	assert.Len(t, fx.provider.requests[0].Items, 4)

	// order persisted with the same total
	require.Len(t, fx.orders.created, 1)
	assert.True(t, fx.orders.created[0].Total.Amount.Equal(want))
	assert.Equal(t, domain.OrderStatusPending, fx.orders.created[0].Status)

	// the defaulted gateway choice lands on the order row
	order, err := fx.orders.GetOrder(t.Context(), handle.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "stripe", order.GatewayID)
}

func TestInitiateProviderFailureLeavesCart(t *testing.T) {
	provider := &fakeProvider{fail: errors.New("card network down")}
	fx := newFixture(t, stripeGateway(), &fakeOrders{}, provider)
	owner := uuid.NewString()
	store := fill(t, fx.manager, owner)

	_, err := fx.initiator.Initiate(t.Context(), checkout.Request{
		OwnerID: owner,
		Email:   "student@example.com",
	})
	require.Error(t, err)

	// cart untouched so the shopper can retry
	assert.Len(t, store.Cart().Items, 1)

	// and a retry can go through
	provider.fail = nil
	_, err = fx.initiator.Initiate(t.Context(), checkout.Request{
		OwnerID: owner,
		Email:   "student@example.com",
	})
	require.NoError(t, err)
}

func TestInitiateNoGateway(t *testing.T) {
	fx := newFixture(t, &fakeGateways{}, &fakeOrders{}, &fakeProvider{})
	owner := uuid.NewString()
	fill(t, fx.manager, owner)

	_, err := fx.initiator.Initiate(t.Context(), checkout.Request{
		OwnerID: owner,
		Email:   "student@example.com",
	})
	require.ErrorIs(t, err, checkout.ErrNoGateway)
}

func TestInitiateSingleFlight(t *testing.T) {
	provider := &fakeProvider{
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	fx := newFixture(t, stripeGateway(), &fakeOrders{}, provider)
	owner := uuid.NewString()
	fill(t, fx.manager, owner)

	firstDone := make(chan error, 1)
	go func() {
		_, err := fx.initiator.Initiate(context.Background(), checkout.Request{
			OwnerID: owner,
			Email:   "student@example.com",
		})
		firstDone <- err
	}()

	// wait until the first attempt is inside the provider call
	select {
	case <-provider.entered:
	case <-time.After(time.Second):
		t.Fatal("first checkout never reached the provider")
	}

	// second attempt while the first is pending is rejected
	_, err := fx.initiator.Initiate(context.Background(), checkout.Request{
		OwnerID: owner,
		Email:   "student@example.com",
	})
	require.ErrorIs(t, err, checkout.ErrCheckoutInFlight)

	close(provider.block)
	require.NoError(t, <-firstDone)

	// the flag clears once the attempt settles
	_, err = fx.initiator.Initiate(context.Background(), checkout.Request{
		OwnerID: owner,
		Email:   "student@example.com",
	})
	require.NoError(t, err)
}

func TestConfirmClearsCartAndVerifies(t *testing.T) {
	fx := newFixture(t, stripeGateway(), &fakeOrders{}, &fakeProvider{})
	owner := uuid.NewString()
	store := fill(t, fx.manager, owner)

	handle, err := fx.initiator.Initiate(t.Context(), checkout.Request{
		OwnerID: owner,
		Email:   "student@example.com",
	})
	require.NoError(t, err)

	err = fx.initiator.Confirm(t.Context(), owner, "paypal", handle.OrderID, "PAYPAL-ORDER-1")
	require.NoError(t, err)

	assert.Empty(t, store.Cart().Items)
	assert.Equal(t, domain.OrderStatusPaid, fx.orders.status[handle.OrderID])
	assert.Equal(t, []string{"PAYPAL-ORDER-1"}, fx.provider.verified)
}

// The HTTP surface places the order first and opens the provider session
// in a second call.
func TestPlaceOrderThenCreateSession(t *testing.T) {
	fx := newFixture(t, stripeGateway(), &fakeOrders{}, &fakeProvider{})
	owner := uuid.NewString()
	fill(t, fx.manager, owner)

	order, err := fx.initiator.PlaceOrder(t.Context(), checkout.Request{
		OwnerID: owner,
		Email:   "student@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	require.Len(t, fx.orders.created, 1)

	handle, err := fx.initiator.CreateSession(t.Context(), owner, order.ID, "stripe")
	require.NoError(t, err)
	assert.Equal(t, order.ID, handle.OrderID)
	assert.Equal(t, "sess_123", handle.SessionID)
	assert.True(t, handle.Total.Amount.Equal(order.Total.Amount))

	// no second order was created, and the session's gateway is recorded
	assert.Len(t, fx.orders.created, 1)
	stored, err := fx.orders.GetOrder(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "stripe", stored.GatewayID)
}

// The order-placement leg carries the same per-owner guard as the
// one-shot flow, so a double-submitted form creates one pending order.
func TestPlaceOrderSingleFlight(t *testing.T) {
	orders := &fakeOrders{
		createBlock:   make(chan struct{}),
		createEntered: make(chan struct{}),
	}
	fx := newFixture(t, stripeGateway(), orders, &fakeProvider{})
	owner := uuid.NewString()
	fill(t, fx.manager, owner)

	firstDone := make(chan error, 1)
	go func() {
		_, err := fx.initiator.PlaceOrder(context.Background(), checkout.Request{
			OwnerID: owner,
			Email:   "student@example.com",
		})
		firstDone <- err
	}()

	// wait until the first attempt is inside the order insert
	select {
	case <-orders.createEntered:
	case <-time.After(time.Second):
		t.Fatal("first order never reached the repository")
	}

	// a second submission while the first is pending is rejected
	_, err := fx.initiator.PlaceOrder(context.Background(), checkout.Request{
		OwnerID: owner,
		Email:   "student@example.com",
	})
	require.ErrorIs(t, err, checkout.ErrCheckoutInFlight)

	close(orders.createBlock)
	require.NoError(t, <-firstDone)
	assert.Len(t, orders.created, 1)

	// the flag clears once the attempt settles
	_, err = fx.initiator.PlaceOrder(context.Background(), checkout.Request{
		OwnerID: owner,
		Email:   "student@example.com",
	})
	require.NoError(t, err)
}

// A replayed verification callback must not capture at the provider a
// second time.
func TestConfirmReplayDoesNotRecapture(t *testing.T) {
	fx := newFixture(t, stripeGateway(), &fakeOrders{}, &fakeProvider{})
	owner := uuid.NewString()
	fill(t, fx.manager, owner)

	handle, err := fx.initiator.Initiate(t.Context(), checkout.Request{
		OwnerID: owner,
		Email:   "student@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, fx.initiator.Confirm(t.Context(), owner, "paypal", handle.OrderID, "PAYPAL-ORDER-1"))
	require.NoError(t, fx.initiator.Confirm(t.Context(), owner, "paypal", handle.OrderID, "PAYPAL-ORDER-1"))

	// exactly one capture reached the provider
	assert.Equal(t, []string{"PAYPAL-ORDER-1"}, fx.provider.verified)
}

func TestPlaceOrderValidationMakesNoCalls(t *testing.T) {
	fx := newFixture(t, stripeGateway(), &fakeOrders{}, &fakeProvider{})

	_, err := fx.initiator.PlaceOrder(t.Context(), checkout.Request{
		OwnerID: uuid.NewString(),
		Email:   "bad email",
	})
	require.ErrorIs(t, err, checkout.ErrInvalidEmail)
	assert.Empty(t, fx.orders.created)
}
