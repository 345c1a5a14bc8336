package engine

import (
	"sync"

	. "matchbook/internal/common"

	"github.com/rs/zerolog"
)

// Filler fills an incoming order against resting liquidity.
type Filler interface {
	FillOrder(order Order) bool
}

// MatchingEngine is the serialised entry point for executing trades: at most
// one ExecuteTrade runs at any time, so two incoming orders can never be
// matched against the same resting liquidity.
type MatchingEngine struct {
	mu     sync.Mutex
	filler Filler
	log    zerolog.Logger
}

func New(filler Filler, log zerolog.Logger) *MatchingEngine {
	return &MatchingEngine{
		filler: filler,
		log:    log.With().Str("component", "matching_engine").Logger(),
	}
}

// ExecuteTrade tries to fill the order and reports whether any amount
// matched. No match is not an error: the order keeps resting.
func (engine *MatchingEngine) ExecuteTrade(order Order) bool {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	engine.log.Info().Object("order", order).Msg("executing incoming trade")
	result := engine.filler.FillOrder(order)
	engine.log.Info().Stringer("order", order.ID).Bool("filled", result).Msg("trade execution finished")
	return result
}
