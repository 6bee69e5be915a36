// Package cart holds the per-session cart state: the line items plus the
// one in-progress bundle selection. All mutation goes through the Store so
// every surface reads the same state and the same totals.
package cart

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/studykart/studykart/internal/discount"
	"github.com/studykart/studykart/internal/domain"
)

var (
	ErrNoBundle         = errors.New("no bundle in progress")
	ErrBundleFull       = errors.New("bundle is full")
	ErrDuplicateItem    = errors.New("item already in bundle")
	ErrBundleIncomplete = errors.New("bundle is not full yet")
	ErrCurrencyMismatch = errors.New("currency differs from the cart's")
)

// Listener observes state changes. Invoked synchronously after every
// successful mutation with defensive copies.
type Listener func(items []domain.CartItem, bundle domain.BundleSelection)

type Store struct {
	mu        sync.Mutex
	ownerID   string
	items     []domain.CartItem
	bundle    domain.BundleSelection
	policy    *discount.Policy
	listeners []Listener
}

func NewStore(ownerID string, policy *discount.Policy) *Store {
	if policy == nil {
		policy = discount.NewPolicy(nil)
	}

	return &Store{
		ownerID: ownerID,
		policy:  policy,
	}
}

func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, fn)
}

// Cart returns a snapshot copy of the current line items.
func (s *Store) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.Cart{OwnerID: s.ownerID, Items: copyItems(s.items)}
}

// Bundle returns a snapshot copy of the in-progress bundle selection.
func (s *Store) Bundle() domain.BundleSelection {
	s.mu.Lock()
	defer s.mu.Unlock()

	return copyBundle(s.bundle)
}

// AddItem inserts a new line or increments the quantity of an existing
// one. A non-positive quantity is coerced to 1. One session carries one
// currency: an item priced in a different currency than the existing
// lines is rejected with ErrCurrencyMismatch, state untouched.
func (s *Store) AddItem(item domain.CartItem) error {
	s.mu.Lock()

	if unit, ok := s.currencyLocked(); ok && item.Price.Currency != unit {
		s.mu.Unlock()
		return ErrCurrencyMismatch
	}

	if item.Quantity < 1 {
		item.Quantity = 1
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	merged := false
	for i := range s.items {
		if s.items[i].ProductID == item.ProductID {
			s.items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		s.items = append(s.items, item)
	}

	s.notifyLocked()
	return nil
}

// RemoveItem deletes the line with this product id. Absent id is a no-op.
func (s *Store) RemoveItem(productID uuid.UUID) {
	s.mu.Lock()

	for i := range s.items {
		if s.items[i].ProductID == productID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}

	s.notifyLocked()
}

// UpdateQuantity sets the quantity of an existing line, clamped to >= 1.
// Absent id is a no-op.
func (s *Store) UpdateQuantity(productID uuid.UUID, quantity int) {
	s.mu.Lock()

	if quantity < 1 {
		quantity = 1
	}
	for i := range s.items {
		if s.items[i].ProductID == productID {
			s.items[i].Quantity = quantity
			break
		}
	}

	s.notifyLocked()
}

// Clear empties the line items. The in-progress bundle is left alone;
// callers wanting a full reset also call ResetPackage.
func (s *Store) Clear() {
	s.mu.Lock()

	s.items = nil

	s.notifyLocked()
}

// StartPackage begins a bundle of the given capacity, discarding any
// in-progress selection. Non-positive sizes are coerced to 1.
func (s *Store) StartPackage(size int) {
	s.mu.Lock()

	if size < 1 {
		size = 1
	}
	s.bundle = domain.BundleSelection{Size: size}

	s.notifyLocked()
}

// AddToPackage appends one distinct product to the in-progress bundle.
// Rejected (state untouched) when no bundle is in progress, the bundle is
// full, the product is already a member, or its currency differs from
// the session's.
func (s *Store) AddToPackage(item domain.BundleItem) error {
	s.mu.Lock()

	if !s.bundle.Active() {
		s.mu.Unlock()
		return ErrNoBundle
	}
	if len(s.bundle.Items) >= s.bundle.Size {
		s.mu.Unlock()
		return ErrBundleFull
	}
	if s.bundle.Contains(item.ProductID) {
		s.mu.Unlock()
		return ErrDuplicateItem
	}
	if unit, ok := s.currencyLocked(); ok && item.Price.Currency != unit {
		s.mu.Unlock()
		return ErrCurrencyMismatch
	}

	s.bundle.Items = append(s.bundle.Items, item)

	s.notifyLocked()
	return nil
}

// RemoveFromPackage removes a product from the bundle selection; absent
// id is a no-op.
func (s *Store) RemoveFromPackage(productID uuid.UUID) {
	s.mu.Lock()

	for i := range s.bundle.Items {
		if s.bundle.Items[i].ProductID == productID {
			s.bundle.Items = append(s.bundle.Items[:i], s.bundle.Items[i+1:]...)
			break
		}
	}

	s.notifyLocked()
}

// ResetPackage abandons the in-progress bundle.
func (s *Store) ResetPackage() {
	s.mu.Lock()

	s.bundle = domain.BundleSelection{}

	s.notifyLocked()
}

// CompletePackage converts a full bundle into a single cart line priced
// at the discounted total and resets the selection. Returns
// ErrBundleIncomplete (state untouched) unless every slot is filled.
func (s *Store) CompletePackage() (domain.CartItem, error) {
	s.mu.Lock()

	if !s.bundle.Active() {
		s.mu.Unlock()
		return domain.CartItem{}, ErrNoBundle
	}
	if !s.bundle.Full() {
		s.mu.Unlock()
		return domain.CartItem{}, ErrBundleIncomplete
	}

	rate := s.policy.Rate(s.bundle.Size)
	discounted := s.bundle.OriginalTotal().Mul(decimal.NewFromInt(1).Sub(rate))

	line := domain.CartItem{
		ProductID:    uuid.New(),
		Title:        fmt.Sprintf("Study bundle (%d items)", s.bundle.Size),
		Price:        domain.NewMoney(discounted, s.bundle.Items[0].Price.Currency),
		Quantity:     1,
		IsPackage:    true,
		PackageSize:  s.bundle.Size,
		PackageItems: copyBundle(s.bundle).Items,
		CreatedAt:    time.Now(),
	}

	s.items = append(s.items, line)
	s.bundle = domain.BundleSelection{}

	s.notifyLocked()
	return line, nil
}

// Restore replaces the full state from a persisted snapshot without
// notifying listeners.
func (s *Store) Restore(cart domain.Cart, bundle domain.BundleSelection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = copyItems(cart.Items)
	s.bundle = copyBundle(bundle)
}

// currencyLocked returns the currency the session is already committed
// to, if any line or bundle member exists. Must be called with the mutex
// held.
func (s *Store) currencyLocked() (currency.Unit, bool) {
	if len(s.items) > 0 {
		return s.items[0].Price.Currency, true
	}
	if len(s.bundle.Items) > 0 {
		return s.bundle.Items[0].Price.Currency, true
	}

	return currency.Unit{}, false
}

// notifyLocked snapshots state, releases the mutex and invokes listeners.
// Must be called with the mutex held; it unlocks.
func (s *Store) notifyLocked() {
	items := copyItems(s.items)
	bundle := copyBundle(s.bundle)
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)

	s.mu.Unlock()

	for _, fn := range listeners {
		fn(items, bundle)
	}
}

func copyItems(items []domain.CartItem) []domain.CartItem {
	if items == nil {
		return nil
	}

	out := make([]domain.CartItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].PackageItems != nil {
			sub := make([]domain.BundleItem, len(out[i].PackageItems))
			copy(sub, out[i].PackageItems)
			out[i].PackageItems = sub
		}
	}

	return out
}

func copyBundle(b domain.BundleSelection) domain.BundleSelection {
	out := domain.BundleSelection{Size: b.Size}
	if b.Items != nil {
		out.Items = make([]domain.BundleItem, len(b.Items))
		copy(out.Items, b.Items)
	}

	return out
}
