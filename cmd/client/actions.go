package main

import (
	"fmt"
	"math/rand/v2"
	"strings"

	. "matchbook/internal/common"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// options are the message parameters taken from the command line.
type options struct {
	market  Market
	side    Side
	price   decimal.Decimal
	amount  decimal.Decimal
	orderID uuid.UUID

	// populate
	initialPrice   int64
	priceLevels    int
	minPriceUnit   int64
	ordersPerLevel int
}

// referenceBook is a sample book with an equilibrium mid-market price of
// about 9.671 at half-life 0.5.
var referenceBook = []struct {
	side   Side
	price  int64
	amount int64
}{
	{Buy, 7, 10000},
	{Buy, 8, 3000},
	{Buy, 9, 4500},
	{Sell, 10, 1000},
	{Sell, 11, 10000},
	{Sell, 12, 2500},
}

func buildMessages(action string, opts options, rng *rand.Rand) ([]Message, error) {
	switch strings.ToLower(action) {
	case "add":
		return []Message{addMessage(opts.market, opts.side, opts.price, opts.amount)}, nil

	case "delete":
		if opts.orderID == uuid.Nil {
			return nil, fmt.Errorf("-id is required for delete")
		}
		return []Message{{Type: Delete, OrderID: opts.orderID}}, nil

	case "modify":
		if opts.orderID == uuid.Nil {
			return nil, fmt.Errorf("-id is required for modify")
		}
		return []Message{{Type: Modify, OrderID: opts.orderID, Amount: opts.amount}}, nil

	case "print":
		return []Message{{Type: Print, Market: opts.market}}, nil

	case "populate":
		return populate(opts, rng), nil

	case "equilibrium":
		messages := make([]Message, 0, len(referenceBook)+1)
		for _, level := range referenceBook {
			messages = append(messages, addMessage(
				opts.market,
				level.side,
				decimal.NewFromInt(level.price),
				decimal.NewFromInt(level.amount),
			))
		}
		return append(messages, Message{Type: Print, Market: opts.market}), nil

	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

// populate fills both sides of a book without crossing: bids take the first
// priceLevels prices from initialPrice, asks the next priceLevels.
func populate(opts options, rng *rand.Rand) []Message {
	var messages []Message
	spread := opts.initialPrice + int64(opts.priceLevels)*opts.minPriceUnit
	for _, side := range []Side{Buy, Sell} {
		start := opts.initialPrice
		if side == Sell {
			start = spread
		}
		for level := 0; level < opts.priceLevels; level++ {
			price := decimal.NewFromInt(start + int64(level)*opts.minPriceUnit)
			for j := 0; j < opts.ordersPerLevel; j++ {
				amount := decimal.NewFromInt(1 + rng.Int64N(99))
				messages = append(messages, addMessage(opts.market, side, price, amount))
			}
		}
	}
	return messages
}

func addMessage(market Market, side Side, price, amount decimal.Decimal) Message {
	return Message{
		Type:   Add,
		Side:   side,
		Market: market,
		Price:  price,
		Amount: amount,
	}
}
