package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studykart/studykart/internal/domain"
	"github.com/studykart/studykart/internal/port"
)

// gatewayRepository reads the admin-managed payment gateway registry.
type gatewayRepository struct {
	q    querier
	pool *pgxpool.Pool
}

func NewGateway(pool *pgxpool.Pool) port.GatewayRepository {
	return &gatewayRepository{
		q:    pool,
		pool: pool,
	}
}

const listActiveGatewaysSQL = `
SELECT id, name, is_active, environment, business_name, supports_credit_cards, supports_direct_debit
FROM payment_gateways
WHERE is_active
ORDER BY priority, id`

func (r *gatewayRepository) ListActive(ctx context.Context) ([]domain.Gateway, error) {
	rows, err := r.q.Query(ctx, listActiveGatewaysSQL)
	if err != nil {
		return nil, fmt.Errorf("q.Query: %w", err)
	}

	gateways, err := pgx.CollectRows(rows, mapGatewayRow)
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}

	return gateways, nil
}

const getGatewaySQL = `
SELECT id, name, is_active, environment, business_name, supports_credit_cards, supports_direct_debit
FROM payment_gateways
WHERE id = $1`

func (r *gatewayRepository) GetGateway(ctx context.Context, id string) (domain.Gateway, error) {
	if id == "" {
		return domain.Gateway{}, fmt.Errorf("gateway ID is empty")
	}

	rows, err := r.q.Query(ctx, getGatewaySQL, id)
	if err != nil {
		return domain.Gateway{}, fmt.Errorf("q.Query: %w", err)
	}

	gateway, err := pgx.CollectOneRow(rows, mapGatewayRow)
	if err != nil {
		return domain.Gateway{}, fmt.Errorf("pgx.CollectOneRow: %w", err)
	}

	return gateway, nil
}

func mapGatewayRow(row pgx.CollectableRow) (domain.Gateway, error) {
	var g domain.Gateway

	err := row.Scan(&g.ID, &g.Name, &g.IsActive, &g.Environment, &g.BusinessName,
		&g.SupportsCreditCards, &g.SupportsDirectDebit)
	if err != nil {
		return domain.Gateway{}, fmt.Errorf("row.Scan: %w", err)
	}

	return g, nil
}
