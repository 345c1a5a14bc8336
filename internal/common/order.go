package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Order is a unit of resting liquidity. Records are treated as immutable once
// stored: a fill or modify builds a new record through WithAmount.
type Order struct {
	ID         uuid.UUID       // Identity key
	Market     Market          // Book the order rests in
	Side       Side            // Order side
	Price      decimal.Decimal // Limit price, fixed for the life of the order
	Amount     decimal.Decimal // Remaining amount
	CreatedAt  time.Time       // Time priority within a price level
	ModifiedAt time.Time       // Last amount change through a modify
}

// NewOrder creates an order with a fresh id and the current time as its
// time priority.
func NewOrder(market Market, side Side, price, amount decimal.Decimal) Order {
	return Order{
		ID:        uuid.New(),
		Market:    market,
		Side:      side,
		Price:     price,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
}

// WithAmount returns a copy of the order carrying a new amount. Time priority
// is kept.
func (order Order) WithAmount(amount decimal.Decimal) Order {
	order.Amount = amount
	return order
}

// SameAs reports whether both records describe the same order.
func (order Order) SameAs(other Order) bool {
	return order.ID == other.ID
}

func (order Order) IsFilled() bool {
	return order.Amount.IsZero()
}

func (order Order) MarshalZerologObject(e *zerolog.Event) {
	e.Stringer("id", order.ID).
		Stringer("market", order.Market).
		Stringer("side", order.Side).
		Stringer("price", order.Price).
		Stringer("amount", order.Amount).
		Time("created_at", order.CreatedAt)
	if !order.ModifiedAt.IsZero() {
		e.Time("modified_at", order.ModifiedAt)
	}
}

func (order Order) String() string {
	return fmt.Sprintf(
		`ID:         %v
Market:     %v
Side:       %v
Price:      %s
Amount:     %s
CreatedAt:  %v
ModifiedAt: %v`,
		order.ID,
		order.Market,
		order.Side,
		order.Price,
		order.Amount,
		order.CreatedAt.Format(time.RFC3339Nano),
		order.ModifiedAt.Format(time.RFC3339Nano),
	)
}
