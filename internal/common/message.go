package common

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Message is a decoded wire request. Fields not used by a message type keep
// their zero value: price and amount 0, the nil UUID and MarketNone.
type Message struct {
	Type    MessageType
	Side    Side
	Market  Market
	Price   decimal.Decimal
	Amount  decimal.Decimal
	OrderID uuid.UUID
}

// Equal compares messages field by field, numerically for price and amount.
func (m Message) Equal(other Message) bool {
	return m.Type == other.Type &&
		m.Side == other.Side &&
		m.Market == other.Market &&
		m.Price.Equal(other.Price) &&
		m.Amount.Equal(other.Amount) &&
		m.OrderID == other.OrderID
}

func (m Message) MarshalZerologObject(e *zerolog.Event) {
	e.Stringer("type", m.Type)
	switch m.Type {
	case Add:
		e.Stringer("side", m.Side).
			Stringer("price", m.Price).
			Stringer("amount", m.Amount).
			Stringer("market", m.Market)
	case Delete:
		e.Stringer("order_id", m.OrderID)
	case Modify:
		e.Stringer("amount", m.Amount).
			Stringer("order_id", m.OrderID)
	case Print:
		e.Stringer("market", m.Market)
	}
}
