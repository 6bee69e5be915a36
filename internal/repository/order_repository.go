package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/currency"

	"github.com/studykart/studykart/internal/domain"
	"github.com/studykart/studykart/internal/port"
)

type orderRepository struct {
	q    querier
	pool *pgxpool.Pool
}

func NewOrder(pool *pgxpool.Pool) port.OrderRepository {
	return &orderRepository{
		q:    pool,
		pool: pool,
	}
}

func NewOrderWithTx(tx pgx.Tx) port.OrderRepository {
	return &orderRepository{
		q:    tx,
		pool: nil, // use provided transaction instead
	}
}

func (r *orderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	if order.ID == uuid.Nil {
		return fmt.Errorf("order ID is empty")
	}
	if len(order.Lines) == 0 {
		return fmt.Errorf("order has no lines")
	}

	_, err := withTx(ctx, r.pool, r.q, func(q querier) (struct{}, error) {
		var zero struct{}

		_, err := q.Exec(ctx,
			`INSERT INTO orders
			 (id, owner_id, email, is_guest_checkout, total_amount, total_currency, status, gateway_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			order.ID, order.OwnerID, order.Email, order.IsGuestCheckout,
			order.Total.Amount, order.Total.Currency.String(), string(order.Status), order.GatewayID)
		if err != nil {
			return zero, fmt.Errorf("insert orders: %w", err)
		}

		for pos, line := range order.Lines {
			_, err := q.Exec(ctx,
				`INSERT INTO order_lines
				 (order_id, position, product_id, title, price_amount, price_currency, quantity)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				order.ID, pos, line.ProductID, line.Title,
				line.Price.Amount, line.Price.Currency.String(), line.Quantity)
			if err != nil {
				return zero, fmt.Errorf("insert order_lines: %w", err)
			}
		}

		return zero, nil
	})

	return err
}

const getOrderSQL = `
SELECT id, owner_id, email, is_guest_checkout, total_amount, total_currency, status, gateway_id, created_at
FROM orders
WHERE id = $1`

const getOrderLinesSQL = `
SELECT product_id, title, price_amount, price_currency, quantity
FROM order_lines
WHERE order_id = $1
ORDER BY position`

func (r *orderRepository) GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	if orderID == uuid.Nil {
		return domain.Order{}, fmt.Errorf("order ID is empty")
	}

	var (
		order     domain.Order
		totalCode string
		status    string
	)

	err := r.q.QueryRow(ctx, getOrderSQL, orderID).Scan(
		&order.ID, &order.OwnerID, &order.Email, &order.IsGuestCheckout,
		&order.Total.Amount, &totalCode, &status, &order.GatewayID, &order.CreatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("q.QueryRow: %w", err)
	}

	order.Status = domain.OrderStatus(status)
	order.Total.Currency, err = currency.ParseISO(totalCode)
	if err != nil {
		return domain.Order{}, fmt.Errorf("currency[%s] is not valid: %w", totalCode, err)
	}

	rows, err := r.q.Query(ctx, getOrderLinesSQL, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("q.Query: %w", err)
	}

	order.Lines, err = pgx.CollectRows(rows, mapOrderLineRow)
	if err != nil {
		return domain.Order{}, fmt.Errorf("pgx.CollectRows: %w", err)
	}

	return order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (bool, error) {
	if orderID == uuid.Nil {
		return false, fmt.Errorf("order ID is empty")
	}

	tag, err := r.q.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`,
		orderID, string(status))
	if err != nil {
		return false, fmt.Errorf("q.Exec: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *orderRepository) SetGateway(ctx context.Context, orderID uuid.UUID, gatewayID string) error {
	if orderID == uuid.Nil {
		return fmt.Errorf("order ID is empty")
	}

	_, err := r.q.Exec(ctx,
		`UPDATE orders SET gateway_id = $2 WHERE id = $1`,
		orderID, gatewayID)
	if err != nil {
		return fmt.Errorf("q.Exec: %w", err)
	}

	return nil
}

func mapOrderLineRow(row pgx.CollectableRow) (domain.OrderLine, error) {
	var (
		line      domain.OrderLine
		priceCode string
	)

	err := row.Scan(&line.ProductID, &line.Title, &line.Price.Amount, &priceCode, &line.Quantity)
	if err != nil {
		return domain.OrderLine{}, fmt.Errorf("row.Scan: %w", err)
	}

	line.Price.Currency, err = currency.ParseISO(priceCode)
	if err != nil {
		return domain.OrderLine{}, fmt.Errorf("currency[%s] is not valid: %w", priceCode, err)
	}

	return line, nil
}
