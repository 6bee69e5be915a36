package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BundleItem is one product slot inside an in-progress bundle selection.
// Bundle items are always unit quantity.
type BundleItem struct {
	ProductID uuid.UUID
	Title     string
	Price     Money
	Image     string
	Kind      string
}

// BundleSelection is the one in-progress bundle of a cart session.
// Size 0 means no bundle is in progress; then Items is empty.
type BundleSelection struct {
	Size  int
	Items []BundleItem
}

func (b BundleSelection) Active() bool {
	return b.Size > 0
}

func (b BundleSelection) Full() bool {
	return b.Active() && len(b.Items) == b.Size
}

func (b BundleSelection) Contains(productID uuid.UUID) bool {
	for _, item := range b.Items {
		if item.ProductID == productID {
			return true
		}
	}

	return false
}

// OriginalTotal is the undiscounted sum of member prices.
func (b BundleSelection) OriginalTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range b.Items {
		total = total.Add(item.Price.Amount)
	}

	return total
}
