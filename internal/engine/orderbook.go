package engine

import (
	"sort"
	"time"

	. "matchbook/internal/common"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// PriceLevel holds the orders resting at one price, sorted by CreatedAt.
// Orders with an equal CreatedAt keep their insertion order.
type PriceLevel struct {
	price  decimal.Decimal
	orders []*Order
}

type PriceLevels = btree.BTreeG[*PriceLevel]

// OrderBook is the limit order book of a single market. It is not safe for
// concurrent use; the Repository serialises access to it.
type OrderBook struct {
	market Market

	// Price levels to orders sat on the price level, sorted by time priority.
	bids *PriceLevels
	asks *PriceLevels
}

func NewOrderBook(market Market) *OrderBook {
	// Sorted greatest first.
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.price.GreaterThan(b.price)
	})
	// Sorted least first.
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.price.LessThan(b.price)
	})
	return &OrderBook{
		market: market,
		bids:   bids,
		asks:   asks,
	}
}

func (book *OrderBook) Market() Market {
	return book.market
}

func (book *OrderBook) levels(side Side) *PriceLevels {
	if side == Buy {
		return book.bids
	}
	return book.asks
}

// level returns the price level of a side. Levels comparator only accounts
// for price levels, so a dummy level is used for the search.
func (book *OrderBook) level(side Side, price decimal.Decimal) (*PriceLevel, bool) {
	return book.levels(side).GetMut(&PriceLevel{price: price})
}

// AddOrder rests an order on its side at its price, behind every order with
// an earlier or equal CreatedAt. Returns false if the order is already there.
func (book *OrderBook) AddOrder(order *Order) bool {
	level, ok := book.level(order.Side, order.Price)
	if !ok {
		book.levels(order.Side).Set(&PriceLevel{
			price:  order.Price,
			orders: []*Order{order},
		})
		return true
	}

	if level.indexOf(order) >= 0 {
		return false
	}
	i := sort.Search(len(level.orders), func(i int) bool {
		return level.orders[i].CreatedAt.After(order.CreatedAt)
	})
	level.orders = append(level.orders, nil)
	copy(level.orders[i+1:], level.orders[i:])
	level.orders[i] = order
	return true
}

// RemoveOrder takes an order out of the book. Empty levels are dropped.
func (book *OrderBook) RemoveOrder(order *Order) bool {
	level, ok := book.level(order.Side, order.Price)
	if !ok {
		return false
	}
	i := level.indexOf(order)
	if i < 0 {
		return false
	}
	level.orders = append(level.orders[:i], level.orders[i+1:]...)
	if len(level.orders) == 0 {
		book.levels(order.Side).Delete(level)
	}
	return true
}

// UpdateInPlace replaces current with newOrder and returns the record that
// was actually stored. An increased amount loses time priority: the stored
// record is a fresh one with CreatedAt set to now, queued behind the level.
// Otherwise newOrder takes over the slot of current with its CreatedAt.
func (book *OrderBook) UpdateInPlace(newOrder, current *Order) (*Order, bool) {
	level, ok := book.level(current.Side, current.Price)
	if !ok {
		return nil, false
	}
	i := level.indexOf(current)
	if i < 0 {
		return nil, false
	}

	if newOrder.Amount.GreaterThan(current.Amount) {
		fresh := *newOrder
		fresh.CreatedAt = time.Now()
		if !book.RemoveOrder(current) {
			return nil, false
		}
		book.AddOrder(&fresh)
		return &fresh, true
	}

	kept := *newOrder
	kept.CreatedAt = current.CreatedAt
	level.orders[i] = &kept
	return &kept, true
}

// FillOrder matches an incoming order against the opposite side at exactly
// its own price, in price-time priority. Crossed levels at other prices are
// not swept.
//
// Returns every order whose amount changed, in its final state (amount 0
// when fully filled), and the trades executed. The incoming order is taken
// out of the book when fully filled and shrunk in place when partially
// filled.
func (book *OrderBook) FillOrder(incoming *Order, log zerolog.Logger) ([]*Order, []Trade) {
	opposite := book.levels(incoming.Side.Opposite())
	level, ok := opposite.GetMut(&PriceLevel{price: incoming.Price})
	if !ok {
		log.Debug().
			Stringer("order", incoming.ID).
			Stringer("price", incoming.Price).
			Msg("no resting orders at price")
		return nil, nil
	}

	var (
		touched   []*Order
		trades    []Trade
		remaining = incoming.Amount
		now       = time.Now()
	)
	for len(level.orders) > 0 && remaining.IsPositive() {
		head := level.orders[0]
		match := decimal.Min(head.Amount, remaining)
		trades = append(trades, Trade{
			Party:        incoming.WithAmount(remaining),
			CounterParty: *head,
			Timestamp:    now,
			MatchAmount:  match,
			Price:        level.price,
		})

		switch head.Amount.Cmp(remaining) {
		case 0:
			level.popHead()
			filled := head.WithAmount(decimal.Zero)
			touched = append(touched, &filled)
			remaining = decimal.Zero
			log.Debug().Object("order", head).Msg("resting order fully filled")
		case 1:
			reduced := head.WithAmount(head.Amount.Sub(remaining))
			stored, _ := book.UpdateInPlace(&reduced, head)
			touched = append(touched, stored)
			remaining = decimal.Zero
			log.Debug().Object("order", stored).Msg("resting order partially filled")
		default:
			level.popHead()
			filled := head.WithAmount(decimal.Zero)
			touched = append(touched, &filled)
			remaining = remaining.Sub(head.Amount)
			log.Debug().Object("order", head).Msg("resting order fully filled")
		}
	}
	if len(level.orders) == 0 {
		opposite.Delete(level)
	}

	if len(touched) == 0 {
		return nil, nil
	}

	// The incoming order is usually resting on its own side already.
	if remaining.IsZero() {
		book.RemoveOrder(incoming)
		filled := incoming.WithAmount(decimal.Zero)
		touched = append(touched, &filled)
		log.Debug().Stringer("order", incoming.ID).Msg("incoming order fully filled")
	} else {
		reduced := incoming.WithAmount(remaining)
		stored, ok := book.UpdateInPlace(&reduced, incoming)
		if !ok {
			stored = &reduced
		}
		touched = append(touched, stored)
		log.Debug().
			Stringer("order", incoming.ID).
			Stringer("remaining", remaining).
			Msg("incoming order partially filled")
	}
	return touched, trades
}

// LevelSnapshot is a copy of one price level.
type LevelSnapshot struct {
	Price  decimal.Decimal
	Orders []Order
}

// Total is the summed amount resting at the level.
func (l LevelSnapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, order := range l.Orders {
		total = total.Add(order.Amount)
	}
	return total
}

// BookSnapshot is a copy of both sides of a book, best price first.
type BookSnapshot struct {
	Market Market
	Bids   []LevelSnapshot
	Asks   []LevelSnapshot
}

func (book *OrderBook) Snapshot() BookSnapshot {
	return BookSnapshot{
		Market: book.market,
		Bids:   snapshotLevels(book.bids),
		Asks:   snapshotLevels(book.asks),
	}
}

// Orders returns a copy of the queue at a price, in priority order.
func (book *OrderBook) Orders(side Side, price decimal.Decimal) []Order {
	level, ok := book.level(side, price)
	if !ok {
		return nil
	}
	return level.copyOrders()
}

func (book *OrderBook) Len() int {
	n := 0
	for _, levels := range []*PriceLevels{book.bids, book.asks} {
		levels.Scan(func(level *PriceLevel) bool {
			n += len(level.orders)
			return true
		})
	}
	return n
}

// Print writes the book to the debug log, price keys descending on both
// sides. Only meant for inspection: walking every level is O(n).
func (book *OrderBook) Print(log zerolog.Logger) {
	if !log.Debug().Enabled() {
		return
	}
	log.Debug().Stringer("market", book.market).Msg("ask orders")
	book.asks.Reverse(func(level *PriceLevel) bool {
		level.print(log)
		return true
	})
	log.Debug().Stringer("market", book.market).Msg("bid orders")
	book.bids.Scan(func(level *PriceLevel) bool {
		level.print(log)
		return true
	})
}

func (level *PriceLevel) print(log zerolog.Logger) {
	log.Debug().Stringer("price", level.price).Int("orders", len(level.orders)).Msg("price level")
	for _, order := range level.orders {
		log.Debug().Object("order", order).Msg("resting order")
	}
}

func (level *PriceLevel) indexOf(order *Order) int {
	for i, o := range level.orders {
		if o.ID == order.ID {
			return i
		}
	}
	return -1
}

func (level *PriceLevel) popHead() {
	level.orders[0] = nil
	level.orders = level.orders[1:]
}

func (level *PriceLevel) copyOrders() []Order {
	orders := make([]Order, len(level.orders))
	for i, order := range level.orders {
		orders[i] = *order
	}
	return orders
}

func snapshotLevels(levels *PriceLevels) []LevelSnapshot {
	snapshot := make([]LevelSnapshot, 0, levels.Len())
	levels.Scan(func(level *PriceLevel) bool {
		snapshot = append(snapshot, LevelSnapshot{
			Price:  level.price,
			Orders: level.copyOrders(),
		})
		return true
	})
	return snapshot
}
