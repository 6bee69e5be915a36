// Package pricing computes the one authoritative checkout total from
// mixed regular and bundled cart contents.
package pricing

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/studykart/studykart/internal/discount"
	"github.com/studykart/studykart/internal/domain"
)

// Breakdown is the reconciled pricing of a cart plus its in-progress
// bundle. Amounts are unrounded; Rounded applies the 2-decimal display
// rounding as the final step.
type Breakdown struct {
	Currency           currency.Unit
	RegularTotal       decimal.Decimal
	BundleOriginal     decimal.Decimal
	BundleDiscounted   decimal.Decimal
	Savings            decimal.Decimal
	GrandTotal         decimal.Decimal
	DiscountPercentage int
}

func (b Breakdown) Rounded() Breakdown {
	b.RegularTotal = b.RegularTotal.Round(2)
	b.BundleOriginal = b.BundleOriginal.Round(2)
	b.BundleDiscounted = b.BundleDiscounted.Round(2)
	b.Savings = b.Savings.Round(2)
	b.GrandTotal = b.GrandTotal.Round(2)

	return b
}

type Reconciler struct {
	policy *discount.Policy
}

func NewReconciler(policy *discount.Policy) *Reconciler {
	if policy == nil {
		policy = discount.NewPolicy(nil)
	}

	return &Reconciler{policy: policy}
}

// Checkout partitions cart lines against the in-progress bundle and
// produces the authoritative total. Rules:
//
//   - Only the in-progress bundle is reconciled here. Completed bundles
//     already sit in the cart as a single discounted line and price as
//     regular lines.
//   - A cart line matching a bundle member contributes one unit to the
//     bundle; its remaining quantity is priced regularly. The product is
//     never counted twice.
//   - Bundle members need not be cart lines at all; they price into the
//     bundle total either way.
//
// With no bundle in progress the grand total reduces to the plain sum of
// line subtotals.
func (r *Reconciler) Checkout(cart domain.Cart, bundle domain.BundleSelection) Breakdown {
	b := Breakdown{
		Currency:         cartCurrency(cart, bundle),
		RegularTotal:     decimal.Zero,
		BundleOriginal:   decimal.Zero,
		BundleDiscounted: decimal.Zero,
		Savings:          decimal.Zero,
	}

	active := bundle.Active() && len(bundle.Items) > 0

	for _, item := range cart.Items {
		quantity := item.Quantity
		if active && !item.IsPackage && bundle.Contains(item.ProductID) {
			// one unit is accounted for inside the bundle
			quantity--
		}
		if quantity <= 0 {
			continue
		}
		b.RegularTotal = b.RegularTotal.Add(item.Price.Amount.Mul(decimal.NewFromInt(int64(quantity))))
	}

	if active {
		rate := r.policy.Rate(bundle.Size)
		b.BundleOriginal = bundle.OriginalTotal()
		b.BundleDiscounted = b.BundleOriginal.Mul(decimal.NewFromInt(1).Sub(rate))
		b.Savings = b.BundleOriginal.Sub(b.BundleDiscounted)
		b.DiscountPercentage = r.policy.Percentage(bundle.Size)
	}

	b.GrandTotal = b.RegularTotal.Add(b.BundleDiscounted)

	return b
}

// cartCurrency picks the session currency. The store rejects mixed
// currencies at insertion, so the first line or bundle member is
// authoritative for the whole breakdown.
func cartCurrency(cart domain.Cart, bundle domain.BundleSelection) currency.Unit {
	if len(cart.Items) > 0 {
		return cart.Items[0].Price.Currency
	}
	if len(bundle.Items) > 0 {
		return bundle.Items[0].Price.Currency
	}

	return currency.USD
}
