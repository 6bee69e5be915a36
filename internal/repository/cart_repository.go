package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/studykart/studykart/internal/domain"
	"github.com/studykart/studykart/internal/port"
)

type cartRepository struct {
	q    querier
	pool *pgxpool.Pool
}

func NewCart(pool *pgxpool.Pool) port.CartRepository {
	return &cartRepository{
		q:    pool,
		pool: pool,
	}
}

func NewCartWithTx(tx pgx.Tx) port.CartRepository {
	return &cartRepository{
		q:    tx,
		pool: nil, // use provided transaction instead
	}
}

const getCartSQL = `
SELECT product_id, title, price_amount, price_currency, quantity,
       image, kind, is_package, package_size, package_items, created_at
FROM cart_items
WHERE owner_id = $1
ORDER BY position`

func (r *cartRepository) GetCart(ctx context.Context, ownerID string) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, fmt.Errorf("ownerID is empty")
	}

	rows, err := r.q.Query(ctx, getCartSQL, ownerID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("q.Query: %w", err)
	}

	items, err := pgx.CollectRows(rows, mapCartItemRow)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("pgx.CollectRows: %w", err)
	}

	return domain.Cart{
		OwnerID: ownerID,
		Items:   items,
	}, nil
}

const getBundleSQL = `SELECT size FROM cart_bundles WHERE owner_id = $1`

const getBundleItemsSQL = `
SELECT product_id, title, price_amount, price_currency, image, kind
FROM cart_bundle_items
WHERE owner_id = $1
ORDER BY position`

func (r *cartRepository) GetBundle(ctx context.Context, ownerID string) (domain.BundleSelection, error) {
	if ownerID == "" {
		return domain.BundleSelection{}, fmt.Errorf("ownerID is empty")
	}

	var bundle domain.BundleSelection

	err := r.q.QueryRow(ctx, getBundleSQL, ownerID).Scan(&bundle.Size)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BundleSelection{}, nil
		}
		return domain.BundleSelection{}, fmt.Errorf("q.QueryRow: %w", err)
	}

	rows, err := r.q.Query(ctx, getBundleItemsSQL, ownerID)
	if err != nil {
		return domain.BundleSelection{}, fmt.Errorf("q.Query: %w", err)
	}

	bundle.Items, err = pgx.CollectRows(rows, mapBundleItemRow)
	if err != nil {
		return domain.BundleSelection{}, fmt.Errorf("pgx.CollectRows: %w", err)
	}

	return bundle, nil
}

// SaveSnapshot replaces the owner's persisted cart and bundle state in
// one transaction.
func (r *cartRepository) SaveSnapshot(ctx context.Context, cart domain.Cart, bundle domain.BundleSelection) error {
	if cart.OwnerID == "" {
		return fmt.Errorf("ownerID is empty")
	}

	_, err := withTx(ctx, r.pool, r.q, func(q querier) (struct{}, error) {
		var zero struct{}

		for _, table := range []string{"cart_items", "cart_bundles", "cart_bundle_items"} {
			if _, err := q.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE owner_id = $1", table), cart.OwnerID); err != nil {
				return zero, fmt.Errorf("delete %s: %w", table, err)
			}
		}

		for pos, item := range cart.Items {
			if err := insertCartItem(ctx, q, cart.OwnerID, pos, item); err != nil {
				return zero, fmt.Errorf("insertCartItem: %w", err)
			}
		}

		if bundle.Active() {
			if _, err := q.Exec(ctx,
				`INSERT INTO cart_bundles (owner_id, size) VALUES ($1, $2)`,
				cart.OwnerID, bundle.Size); err != nil {
				return zero, fmt.Errorf("insert cart_bundles: %w", err)
			}

			for pos, item := range bundle.Items {
				if _, err := q.Exec(ctx,
					`INSERT INTO cart_bundle_items
					 (owner_id, position, product_id, title, price_amount, price_currency, image, kind)
					 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
					cart.OwnerID, pos, item.ProductID, item.Title,
					item.Price.Amount, item.Price.Currency.String(), item.Image, item.Kind); err != nil {
					return zero, fmt.Errorf("insert cart_bundle_items: %w", err)
				}
			}
		}

		return zero, nil
	})

	return err
}

func insertCartItem(ctx context.Context, q querier, ownerID string, pos int, item domain.CartItem) error {
	packageItems, err := marshalPackageItems(item.PackageItems)
	if err != nil {
		return fmt.Errorf("marshalPackageItems: %w", err)
	}

	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = q.Exec(ctx,
		`INSERT INTO cart_items
		 (owner_id, product_id, position, title, price_amount, price_currency, quantity,
		  image, kind, is_package, package_size, package_items, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ownerID, item.ProductID, pos, item.Title,
		item.Price.Amount, item.Price.Currency.String(), item.Quantity,
		item.Image, item.Kind, item.IsPackage, item.PackageSize, packageItems, createdAt)

	return err
}

// packageItemRecord is the JSONB shape of a completed bundle's snapshot.
type packageItemRecord struct {
	ProductID     uuid.UUID       `json:"product_id"`
	Title         string          `json:"title"`
	PriceAmount   decimal.Decimal `json:"price_amount"`
	PriceCurrency string          `json:"price_currency"`
	Image         string          `json:"image,omitempty"`
	Kind          string          `json:"kind,omitempty"`
}

func marshalPackageItems(items []domain.BundleItem) ([]byte, error) {
	if len(items) == 0 {
		return nil, nil
	}

	records := make([]packageItemRecord, 0, len(items))
	for _, item := range items {
		records = append(records, packageItemRecord{
			ProductID:     item.ProductID,
			Title:         item.Title,
			PriceAmount:   item.Price.Amount,
			PriceCurrency: item.Price.Currency.String(),
			Image:         item.Image,
			Kind:          item.Kind,
		})
	}

	return json.Marshal(records)
}

func unmarshalPackageItems(raw []byte) ([]domain.BundleItem, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var records []packageItemRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	items := make([]domain.BundleItem, 0, len(records))
	for _, rec := range records {
		parsedCurrency, err := currency.ParseISO(rec.PriceCurrency)
		if err != nil {
			return nil, fmt.Errorf("currency[%s] is not valid: %w", rec.PriceCurrency, err)
		}

		items = append(items, domain.BundleItem{
			ProductID: rec.ProductID,
			Title:     rec.Title,
			Price:     domain.Money{Amount: rec.PriceAmount, Currency: parsedCurrency},
			Image:     rec.Image,
			Kind:      rec.Kind,
		})
	}

	return items, nil
}

func mapCartItemRow(row pgx.CollectableRow) (domain.CartItem, error) {
	var (
		item         domain.CartItem
		priceCode    string
		packageItems []byte
	)

	err := row.Scan(&item.ProductID, &item.Title, &item.Price.Amount, &priceCode,
		&item.Quantity, &item.Image, &item.Kind, &item.IsPackage,
		&item.PackageSize, &packageItems, &item.CreatedAt)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("row.Scan: %w", err)
	}

	item.Price.Currency, err = currency.ParseISO(priceCode)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("currency[%s] is not valid: %w", priceCode, err)
	}

	item.PackageItems, err = unmarshalPackageItems(packageItems)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("unmarshalPackageItems: %w", err)
	}

	return item, nil
}

func mapBundleItemRow(row pgx.CollectableRow) (domain.BundleItem, error) {
	var (
		item      domain.BundleItem
		priceCode string
	)

	err := row.Scan(&item.ProductID, &item.Title, &item.Price.Amount, &priceCode,
		&item.Image, &item.Kind)
	if err != nil {
		return domain.BundleItem{}, fmt.Errorf("row.Scan: %w", err)
	}

	item.Price.Currency, err = currency.ParseISO(priceCode)
	if err != nil {
		return domain.BundleItem{}, fmt.Errorf("currency[%s] is not valid: %w", priceCode, err)
	}

	return item, nil
}
