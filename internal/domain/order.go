package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID      uuid.UUID
	OwnerID string
	// Email identifies guest checkouts; empty for authenticated owners.
	Email           string
	IsGuestCheckout bool
	Lines           []OrderLine
	Total           Money
	Status          OrderStatus
	GatewayID       string

	CreatedAt time.Time
}

type OrderLine struct {
	ProductID uuid.UUID
	Title     string
	Price     Money
	Quantity  int
}
