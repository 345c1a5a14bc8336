// Package service turns decoded messages into order entities and repository
// calls.
package service

import (
	"fmt"

	. "matchbook/internal/common"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OrderRepository is the part of the order book repository the service uses.
type OrderRepository interface {
	Get(id uuid.UUID) (Order, bool)
	Add(order Order) error
	Update(order Order) (Order, error)
	Remove(order Order) bool
	Orders() []Order
}

type OrderService struct {
	repo OrderRepository
	log  zerolog.Logger
}

func NewOrderService(repo OrderRepository, log zerolog.Logger) *OrderService {
	return &OrderService{
		repo: repo,
		log:  log.With().Str("component", "order_service").Logger(),
	}
}

// ParseOrder builds a new order from an ADD message.
func (s *OrderService) ParseOrder(msg Message) (Order, error) {
	if msg.Type != Add {
		return Order{}, fmt.Errorf("%w: cannot parse an order from a %s message", ErrMessageNotSupported, msg.Type)
	}
	if !msg.Price.IsPositive() {
		return Order{}, fmt.Errorf("%w: price %s", ErrInvalidOrder, msg.Price)
	}
	if !msg.Amount.IsPositive() {
		return Order{}, fmt.Errorf("%w: amount %s", ErrInvalidOrder, msg.Amount)
	}
	if msg.Market == MarketNone {
		return Order{}, fmt.Errorf("%w: no market", ErrInvalidOrder)
	}
	return NewOrder(msg.Market, msg.Side, msg.Price, msg.Amount), nil
}

func (s *OrderService) AddOrder(order Order) error {
	s.log.Info().Object("order", order).Msg("order to add")
	return s.repo.Add(order)
}

// DeleteOrder removes a live order and returns it as it was.
func (s *OrderService) DeleteOrder(id uuid.UUID) (Order, error) {
	s.log.Info().Stringer("order", id).Msg("order to delete")
	order, ok := s.repo.Get(id)
	if !ok {
		return Order{}, fmt.Errorf("%w: %s not found to be deleted", ErrOrderNotFound, id)
	}
	s.repo.Remove(order)
	return order, nil
}

// ModifyOrder sets a new amount on a live order. Shrinking keeps the order's
// time priority, growing loses it. The same amount is a no-op.
func (s *OrderService) ModifyOrder(id uuid.UUID, newAmount decimal.Decimal) (Order, error) {
	order, ok := s.repo.Get(id)
	if !ok {
		return Order{}, fmt.Errorf("%w: %s not found to be updated", ErrOrderNotFound, id)
	}
	if !newAmount.IsPositive() {
		return Order{}, fmt.Errorf("%w: amount %s", ErrInvalidOrder, newAmount)
	}

	s.log.Info().
		Stringer("order", id).
		Stringer("amount", order.Amount).
		Stringer("new_amount", newAmount).
		Msg("order to modify")
	if newAmount.Equal(order.Amount) {
		s.log.Info().Stringer("order", id).Msg("order not modified, the new amount is the same")
		return order, nil
	}
	return s.repo.Update(order.WithAmount(newAmount))
}

// Orders lists every live order, oldest first.
func (s *OrderService) Orders() []Order {
	return s.repo.Orders()
}
