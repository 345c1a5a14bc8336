// Package exchange is the request processing boundary: it applies one decoded
// message at a time to the order service and the matching engine.
package exchange

import (
	"fmt"
	"time"

	. "matchbook/internal/common"
	"matchbook/internal/protocol"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type OrderService interface {
	ParseOrder(msg Message) (Order, error)
	AddOrder(order Order) error
	DeleteOrder(id uuid.UUID) (Order, error)
	ModifyOrder(id uuid.UUID, newAmount decimal.Decimal) (Order, error)
	Orders() []Order
}

type Matcher interface {
	ExecuteTrade(order Order) bool
}

type BookPrinter interface {
	PrintOrderBook(market Market) error
}

type PriceEstimator interface {
	EquilibriumPrice(market Market, halfLife float64) (float64, error)
}

type Exchange struct {
	orders    OrderService
	matcher   Matcher
	books     BookPrinter
	estimator PriceEstimator
	halfLife  float64
	log       zerolog.Logger
}

func New(
	orders OrderService,
	matcher Matcher,
	books BookPrinter,
	estimator PriceEstimator,
	halfLife float64,
	log zerolog.Logger,
) *Exchange {
	return &Exchange{
		orders:    orders,
		matcher:   matcher,
		books:     books,
		estimator: estimator,
		halfLife:  halfLife,
		log:       log.With().Str("component", "exchange").Logger(),
	}
}

// ProcessRaw decodes a wire message and processes it.
func (x *Exchange) ProcessRaw(raw string) error {
	x.log.Info().Str("raw", raw).Msg("raw message received")
	msg, err := protocol.Decode(raw)
	if err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}
	return x.Process(msg)
}

// Process applies a decoded message. A failed message leaves the books
// untouched and the error is returned for the caller to log; there is no
// retry.
func (x *Exchange) Process(msg Message) error {
	start := time.Now()
	x.log.Info().Object("message", msg).Msg("decoded message")

	var err error
	switch msg.Type {
	case Add:
		err = x.add(msg)
	case Delete:
		err = x.delete(msg)
	case Modify:
		err = x.modify(msg)
	case Print:
		err = x.print(msg)
	default:
		err = fmt.Errorf("%w: %s", ErrMessageNotSupported, msg.Type)
	}

	x.log.Info().Dur("duration", time.Since(start)).Stringer("type", msg.Type).Msg("operation finished")
	return err
}

func (x *Exchange) add(msg Message) error {
	order, err := x.orders.ParseOrder(msg)
	if err != nil {
		return fmt.Errorf("adding order: %w", err)
	}
	x.log.Info().Stringer("order", order.ID).Msg("adding new order")
	if err := x.orders.AddOrder(order); err != nil {
		return fmt.Errorf("adding order: %w", err)
	}
	x.dump(order.Market)

	filled := x.matcher.ExecuteTrade(order)
	x.log.Info().Stringer("order", order.ID).Bool("filled", filled).Msg("order processed")
	return nil
}

func (x *Exchange) delete(msg Message) error {
	x.log.Info().Stringer("order", msg.OrderID).Msg("deleting order")
	order, err := x.orders.DeleteOrder(msg.OrderID)
	if err != nil {
		return fmt.Errorf("deleting order: %w", err)
	}
	x.dump(order.Market)
	return nil
}

func (x *Exchange) modify(msg Message) error {
	x.log.Info().Stringer("order", msg.OrderID).Stringer("amount", msg.Amount).Msg("modifying order")
	order, err := x.orders.ModifyOrder(msg.OrderID, msg.Amount)
	if err != nil {
		return fmt.Errorf("modifying order: %w", err)
	}
	x.dump(order.Market)
	return nil
}

func (x *Exchange) print(msg Message) error {
	x.log.Info().Stringer("market", msg.Market).Msg("print order book")
	if err := x.books.PrintOrderBook(msg.Market); err != nil {
		return fmt.Errorf("printing order book: %w", err)
	}

	price, err := x.estimator.EquilibriumPrice(msg.Market, x.halfLife)
	if err != nil {
		x.log.Debug().Err(err).Stringer("market", msg.Market).Msg("equilibrium mid-market price unavailable")
		return nil
	}
	x.log.Debug().
		Stringer("market", msg.Market).
		Float64("half_life", x.halfLife).
		Float64("price", price).
		Msg("equilibrium mid-market price")
	return nil
}

// dump writes every live order and the market's book to the debug log.
func (x *Exchange) dump(market Market) {
	if !x.log.Debug().Enabled() {
		return
	}
	for _, order := range x.orders.Orders() {
		x.log.Debug().Object("order", order).Msg("live order")
	}
	if err := x.books.PrintOrderBook(market); err != nil {
		x.log.Debug().Err(err).Msg("order book not printed")
	}
}
