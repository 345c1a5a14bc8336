package common

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Trade accounts for the two parties who matched. Party is the incoming
// order, CounterParty the resting one, both as they were before the match.
type Trade struct {
	Party        Order
	CounterParty Order
	Timestamp    time.Time
	MatchAmount  decimal.Decimal
	Price        decimal.Decimal
}

func (t Trade) MarshalZerologObject(e *zerolog.Event) {
	e.Stringer("party", t.Party.ID).
		Stringer("counterparty", t.CounterParty.ID).
		Stringer("market", t.Party.Market).
		Stringer("amount", t.MatchAmount).
		Stringer("price", t.Price).
		Time("timestamp", t.Timestamp)
}

func (t Trade) String() string {
	return fmt.Sprintf(
		`Party: [
%s]
CounterParty:   [
%s]
Timestamp:      %v
MatchAmount:    %s
Price:          %s`,
		t.Party.String(),
		t.CounterParty.String(),
		t.Timestamp.Format(time.RFC3339),
		t.MatchAmount,
		t.Price,
	)
}
