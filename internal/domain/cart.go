package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Cart struct {
	OwnerID string
	Items   []CartItem
}

// CartItem is one cart line: either a single product or a completed
// bundle (IsPackage true, PackageItems holding the snapshot of its
// constituents priced into the discounted Price).
type CartItem struct {
	ProductID uuid.UUID
	Title     string
	Price     Money
	Quantity  int
	Image     string
	Kind      string

	IsPackage    bool
	PackageSize  int
	PackageItems []BundleItem

	CreatedAt time.Time
}

func (i CartItem) Subtotal() Money {
	return i.Price.MulInt(i.Quantity)
}

// TotalItems is the sum of line quantities.
func (c Cart) TotalItems() int {
	var total int
	for _, item := range c.Items {
		total += item.Quantity
	}

	return total
}

// TotalPrice is the raw pre-discount sum of price*quantity over all lines.
// The authoritative checkout total comes from the pricing reconciler, which
// accounts for the in-progress bundle.
func (c Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal().Amount)
	}

	return total
}

func (c Cart) Find(productID uuid.UUID) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}

	return CartItem{}, false
}
