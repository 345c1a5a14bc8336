package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"strings"
	"time"

	"matchbook/internal/common"
	"matchbook/internal/protocol"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	})

	serverAddr := flag.String("server", "127.0.0.1:8081", "Address of the exchange server")
	action := flag.String("action", "print", "Action to perform: ['add', 'delete', 'modify', 'print', 'populate', 'equilibrium']")
	delay := flag.Duration("delay", 10*time.Millisecond, "Pause between two messages")

	// Order parameters
	marketStr := flag.String("market", "BTC_USD", "Market symbol")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	priceStr := flag.String("price", "100", "Limit price")
	amountStr := flag.String("amount", "10", "Amount")
	id := flag.String("id", "", "Order id for delete and modify")

	// Populate parameters
	initialPrice := flag.Int64("initial-price", 100, "Lowest bid price")
	priceLevels := flag.Int("levels", 3, "Price levels per side")
	minPriceUnit := flag.Int64("tick", 100, "Distance between two price levels")
	ordersPerLevel := flag.Int("orders", 4, "Orders per price level")

	flag.Parse()

	opts, err := parseOptions(*marketStr, *sideStr, *priceStr, *amountStr, *id)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid parameters")
	}
	opts.initialPrice = *initialPrice
	opts.priceLevels = *priceLevels
	opts.minPriceUnit = *minPriceUnit
	opts.ordersPerLevel = *ordersPerLevel

	messages, err := buildMessages(*action, opts, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)))
	if err != nil {
		flag.Usage()
		log.Fatal().Err(err).Msg("invalid action")
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatal().Err(err).Str("server", *serverAddr).Msg("failed to connect to server")
	}
	defer conn.Close()

	for _, msg := range messages {
		raw := protocol.Encode(msg)
		if _, err := fmt.Fprintf(conn, "%s\n", raw); err != nil {
			log.Error().Err(err).Str("raw", raw).Msg("failed to send message")
			return
		}
		log.Info().Str("raw", raw).Msg("message sent")
		time.Sleep(*delay)
	}
}

func parseOptions(marketStr, sideStr, priceStr, amountStr, id string) (options, error) {
	var opts options
	var err error

	if opts.market, err = common.ParseMarket(strings.ToUpper(marketStr)); err != nil {
		return opts, err
	}

	switch strings.ToLower(sideStr) {
	case "buy", "b":
		opts.side = common.Buy
	case "sell", "s":
		opts.side = common.Sell
	default:
		return opts, fmt.Errorf("unknown side %q", sideStr)
	}

	if opts.price, err = decimal.NewFromString(priceStr); err != nil {
		return opts, fmt.Errorf("price: %w", err)
	}
	if opts.amount, err = decimal.NewFromString(amountStr); err != nil {
		return opts, fmt.Errorf("amount: %w", err)
	}

	if id != "" {
		if opts.orderID, err = uuid.Parse(id); err != nil {
			return opts, fmt.Errorf("id: %w", err)
		}
	}
	return opts, nil
}
