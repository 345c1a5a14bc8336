package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	. "matchbook/internal/common"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var ErrOrderBookNotFound = errors.New("order book not found")

// Repository owns every live order of the exchange: a global id index and one
// OrderBook per market. An order is live iff it is in both.
//
// Mutations hold the write lock for their whole duration, so Add, Remove,
// Update and FillOrder are atomic with respect to each other. Reads return
// copies and never hand out book internals.
type Repository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*Order
	books  map[Market]*OrderBook
	log    zerolog.Logger
}

func NewRepository(log zerolog.Logger) *Repository {
	return &Repository{
		orders: make(map[uuid.UUID]*Order),
		books:  make(map[Market]*OrderBook),
		log:    log.With().Str("component", "repository").Logger(),
	}
}

func (r *Repository) Get(id uuid.UUID) (Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return Order{}, false
	}
	return *order, true
}

// Add indexes the order and rests it in its market's book, creating the book
// on first use.
func (r *Repository) Add(order Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID)
	}

	book, ok := r.books[order.Market]
	if !ok {
		book = NewOrderBook(order.Market)
		r.books[order.Market] = book
	}
	stored := &order
	result := book.AddOrder(stored)
	if result {
		r.orders[order.ID] = stored
	}
	r.log.Info().Stringer("order", order.ID).Bool("result", result).Msg("order added to the order book")

	r.printLocked(order.Market)
	return nil
}

// Update replaces the amount of a live order. The stored record is whatever
// the book decides: same time priority when the amount shrinks, a fresh one
// when it grows.
func (r *Repository) Update(order Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[order.ID]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, order.ID)
	}
	book, ok := r.books[current.Market]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderBookNotFound, current.Market)
	}

	order.ModifiedAt = time.Now()
	stored, ok := book.UpdateInPlace(&order, current)
	if !ok {
		return Order{}, fmt.Errorf("%w: %s not in %s book", ErrOrderNotFound, order.ID, current.Market)
	}
	r.orders[order.ID] = stored
	r.log.Info().Stringer("order", order.ID).Msg("order updated in the order book")

	r.printLocked(current.Market)
	return *stored, nil
}

// Remove takes an order out of the index and its book.
func (r *Repository) Remove(order Order) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[order.ID]
	if !ok {
		return false
	}
	delete(r.orders, order.ID)

	result := false
	if book, ok := r.books[current.Market]; ok {
		result = book.RemoveOrder(current)
	}
	r.log.Info().Stringer("order", order.ID).Bool("result", result).Msg("order removed from the order book")

	r.printLocked(current.Market)
	return true
}

// FillOrder matches a live order against its book and reconciles the index
// with the outcome: fully filled orders leave it, partially filled ones are
// replaced. Returns false when nothing matched.
func (r *Repository) FillOrder(order Order) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[order.ID]
	if !ok {
		r.log.Warn().Stringer("order", order.ID).Msg("order to fill is not live")
		return false
	}
	book, ok := r.books[current.Market]
	if !ok {
		return false
	}

	touched, trades := book.FillOrder(current, r.log)
	for _, trade := range trades {
		r.log.Info().Object("trade", trade).Msg("trade executed")
	}
	for _, o := range touched {
		if o.IsFilled() {
			delete(r.orders, o.ID)
		} else {
			r.orders[o.ID] = o
		}
	}
	return len(touched) > 0
}

func (r *Repository) OrderBookExist(market Market) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.books[market]
	return ok
}

// GetAskOrders returns the sell queue at a price, in priority order.
func (r *Repository) GetAskOrders(market Market, price decimal.Decimal) []Order {
	return r.queue(market, Sell, price)
}

// GetBidOrders returns the buy queue at a price, in priority order.
func (r *Repository) GetBidOrders(market Market, price decimal.Decimal) []Order {
	return r.queue(market, Buy, price)
}

func (r *Repository) queue(market Market, side Side, price decimal.Decimal) []Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, ok := r.books[market]
	if !ok {
		return nil
	}
	return book.Orders(side, price)
}

// Orders lists every live order, oldest first.
func (r *Repository) Orders() []Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.ordersLocked()
}

func (r *Repository) ordersLocked() []Order {
	orders := make([]Order, 0, len(r.orders))
	for _, order := range r.orders {
		orders = append(orders, *order)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders
}

// Snapshot copies a market's book under a single read lock.
func (r *Repository) Snapshot(market Market) (BookSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, ok := r.books[market]
	if !ok {
		return BookSnapshot{}, false
	}
	return book.Snapshot(), true
}

// PrintOrderBook writes a market's book to the debug log.
func (r *Repository) PrintOrderBook(market Market) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, ok := r.books[market]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderBookNotFound, market)
	}
	book.Print(r.log)
	return nil
}

// printLocked dumps all live orders and the affected book. The caller holds
// the lock.
func (r *Repository) printLocked(market Market) {
	if !r.log.Debug().Enabled() {
		return
	}
	r.log.Debug().Int("orders", len(r.orders)).Msg("orders map")
	for _, order := range r.ordersLocked() {
		r.log.Debug().Object("order", order).Msg("live order")
	}
	if book, ok := r.books[market]; ok {
		book.Print(r.log)
	}
}
