package common

import "fmt"

type Side int

const (
	Buy Side = iota
	Sell
)

var sideName = map[Side]string{
	Buy:  "BUY",
	Sell: "SELL",
}

func (s Side) String() string {
	if name, ok := sideName[s]; ok {
		return name
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// Opposite returns the side an order rests against when matching.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type MessageType int

const (
	// Add places a new limit order and tries to fill it.
	Add MessageType = iota
	// Delete cancels a resting order by id.
	Delete
	// Modify replaces the amount of a resting order.
	Modify
	// Print dumps a market's order book to the debug log.
	Print
)

var messageTypeName = map[MessageType]string{
	Add:    "ADD",
	Delete: "DELETE",
	Modify: "MODIFY",
	Print:  "PRINT",
}

func (t MessageType) String() string {
	if name, ok := messageTypeName[t]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(%d)", int(t))
}

type Market int

// MarketNone is used when a message does not carry a market.
const (
	MarketNone Market = iota
	BTCUSD
	BTCMXN
	ETHUSD
	ETHMXN
	ETHBTC
)

var marketName = map[Market]string{
	MarketNone: "NONE",
	BTCUSD:     "BTC_USD",
	BTCMXN:     "BTC_MXN",
	ETHUSD:     "ETH_USD",
	ETHMXN:     "ETH_MXN",
	ETHBTC:     "ETH_BTC",
}

var marketBySymbol = func() map[string]Market {
	m := make(map[string]Market, len(marketName))
	for market, symbol := range marketName {
		m[symbol] = market
	}
	return m
}()

func (m Market) String() string {
	if name, ok := marketName[m]; ok {
		return name
	}
	return fmt.Sprintf("Market(%d)", int(m))
}

// ParseMarket resolves a wire symbol such as "BTC_USD".
func ParseMarket(symbol string) (Market, error) {
	market, ok := marketBySymbol[symbol]
	if !ok {
		return MarketNone, fmt.Errorf("%w: unknown market %q", ErrMessageNotSupported, symbol)
	}
	return market, nil
}
