package repository_test

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/text/currency"

	"github.com/studykart/studykart/internal/domain"
	"github.com/studykart/studykart/internal/port"
	"github.com/studykart/studykart/internal/repository"
)

type cartRepositorySuite struct {
	suite.Suite

	repo port.CartRepository
	pool *pgxpool.Pool
}

// entry point to run the tests in the suite
func TestCartRepositorySuite(t *testing.T) {
	suite.Run(t, new(cartRepositorySuite))
}

// before all tests in the suite
func (suite *cartRepositorySuite) SetupSuite() {
	ctx := suite.T().Context()

	_, connStr, err := startPostgres(ctx)
	suite.NoError(err)

	suite.pool, err = pgxpool.New(ctx, connStr)
	suite.NoError(err)

	suite.repo = repository.NewCart(suite.pool)
}

// after all tests in the suite
func (suite *cartRepositorySuite) TearDownSuite() {
	if suite.pool != nil {
		suite.pool.Close()
	}
}

func (suite *cartRepositorySuite) TestSaveSnapshotRoundTrip() {
	defer suite.deleteAll()

	tests := []struct {
		name      string
		cart      domain.Cart
		bundle    domain.BundleSelection
		wantError string
	}{
		{
			name: "regular items only: ok",
			cart: domain.Cart{
				OwnerID: gofakeit.UUID(),
				Items: []domain.CartItem{
					randomCartItem(),
					randomCartItem(),
				},
			},
		},
		{
			name: "completed package line keeps its snapshot: ok",
			cart: domain.Cart{
				OwnerID: gofakeit.UUID(),
				Items:   []domain.CartItem{randomPackageLine()},
			},
		},
		{
			name: "in-progress bundle rides along: ok",
			cart: domain.Cart{
				OwnerID: gofakeit.UUID(),
				Items:   []domain.CartItem{randomCartItem()},
			},
			bundle: domain.BundleSelection{
				Size:  3,
				Items: []domain.BundleItem{randomBundleItem(), randomBundleItem()},
			},
		},
		{
			name: "empty cart clears persisted state: ok",
			cart: domain.Cart{OwnerID: gofakeit.UUID()},
		},
		{
			name:      "empty owner ID: error",
			cart:      domain.Cart{},
			wantError: "ownerID is empty",
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			err := suite.repo.SaveSnapshot(ctx, tt.cart, tt.bundle)
			if tt.wantError != "" {
				require.EqualError(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)

			cart, err := suite.repo.GetCart(ctx, tt.cart.OwnerID)
			require.NoError(t, err)
			require.Len(t, cart.Items, len(tt.cart.Items))
			for i, expected := range tt.cart.Items {
				assertCartItem(t, expected, cart.Items[i])
			}

			bundle, err := suite.repo.GetBundle(ctx, tt.cart.OwnerID)
			require.NoError(t, err)
			assert.Equal(t, tt.bundle.Size, bundle.Size)
			require.Len(t, bundle.Items, len(tt.bundle.Items))
			for i, expected := range tt.bundle.Items {
				assertBundleItem(t, expected, bundle.Items[i])
			}
		})
	}
}

func (suite *cartRepositorySuite) TestSaveSnapshotReplaces() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()
	ownerID := gofakeit.UUID()

	first := domain.Cart{
		OwnerID: ownerID,
		Items:   []domain.CartItem{randomCartItem(), randomCartItem()},
	}
	require.NoError(t, suite.repo.SaveSnapshot(ctx, first, domain.BundleSelection{
		Size:  2,
		Items: []domain.BundleItem{randomBundleItem()},
	}))

	second := domain.Cart{
		OwnerID: ownerID,
		Items:   []domain.CartItem{randomCartItem()},
	}
	require.NoError(t, suite.repo.SaveSnapshot(ctx, second, domain.BundleSelection{}))

	cart, err := suite.repo.GetCart(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assertCartItem(t, second.Items[0], cart.Items[0])

	bundle, err := suite.repo.GetBundle(ctx, ownerID)
	require.NoError(t, err)
	assert.False(t, bundle.Active())
	assert.Empty(t, bundle.Items)
}

func (suite *cartRepositorySuite) TestGetCart() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	// unknown owner yields an empty cart
	cart, err := suite.repo.GetCart(ctx, gofakeit.UUID())
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	// empty owner ID is rejected
	_, err = suite.repo.GetCart(ctx, "")
	require.EqualError(t, err, "ownerID is empty")

	_, err = suite.repo.GetBundle(ctx, "")
	require.EqualError(t, err, "ownerID is empty")
}

func (suite *cartRepositorySuite) deleteAll() {
	_, err := suite.pool.Exec(suite.T().Context(),
		"TRUNCATE TABLE cart_items, cart_bundles, cart_bundle_items CASCADE")
	suite.NoError(err)
}

func randomCartItem() domain.CartItem {
	return domain.CartItem{
		ProductID: uuid.MustParse(gofakeit.UUID()),
		Title:     gofakeit.BookTitle(),
		Price:     randomMoney(),
		Quantity:  gofakeit.Number(1, 5),
		Image:     gofakeit.URL(),
		Kind:      "study-guide",
	}
}

func randomBundleItem() domain.BundleItem {
	return domain.BundleItem{
		ProductID: uuid.MustParse(gofakeit.UUID()),
		Title:     gofakeit.BookTitle(),
		Price:     randomMoney(),
		Image:     gofakeit.URL(),
		Kind:      "flashcards",
	}
}

func randomPackageLine() domain.CartItem {
	members := []domain.BundleItem{randomBundleItem(), randomBundleItem(), randomBundleItem()}

	return domain.CartItem{
		ProductID:    uuid.MustParse(gofakeit.UUID()),
		Title:        "Study bundle (3 items)",
		Price:        randomMoney(),
		Quantity:     1,
		IsPackage:    true,
		PackageSize:  3,
		PackageItems: members,
	}
}

func randomMoney() domain.Money {
	return domain.Money{
		Amount:   decimal.NewFromFloat(gofakeit.Price(1, 100)),
		Currency: randomCurrency(),
	}
}

func randomCurrency() currency.Unit {
	var (
		result currency.Unit
		err    error
	)

	for {
		// tag is not a recognized currency
		result, err = currency.ParseISO(gofakeit.CurrencyShort())
		if err == nil {
			break
		}
	}

	return result
}

var currencyComparer = cmp.Comparer(func(x, y currency.Unit) bool {
	return x.String() == y.String()
})

var decimalComparer = cmp.Comparer(func(x, y decimal.Decimal) bool {
	return x.Equal(y)
})

func assertCartItem(t *testing.T, expected, actual domain.CartItem) {
	t.Helper()

	// Ignore the CreatedAt field in CartItem
	opts := cmp.Options{
		cmpopts.IgnoreFields(domain.CartItem{}, "CreatedAt"),
		currencyComparer,
		decimalComparer,
	}

	diff := cmp.Diff(expected, actual, opts)
	assert.Empty(t, diff)

	assert.False(t, actual.CreatedAt.IsZero())
}

func assertBundleItem(t *testing.T, expected, actual domain.BundleItem) {
	t.Helper()

	diff := cmp.Diff(expected, actual, cmp.Options{currencyComparer, decimalComparer})
	assert.Empty(t, diff)
}
