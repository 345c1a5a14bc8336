package engine

import (
	"errors"
	"fmt"
	"math"

	. "matchbook/internal/common"

	"github.com/rs/zerolog"
)

var (
	ErrInsufficientDepth = errors.New("insufficient depth to estimate equilibrium price")
	ErrInvalidHalfLife   = errors.New("invalid half-life")
)

const (
	// Decay applied to the cumulative depth per half-life of price distance.
	depthDecay = 0.5
	// Minimum price increment between two levels.
	priceTick = 1.0
)

// DepthReader provides a consistent copy of a market's book.
type DepthReader interface {
	Snapshot(market Market) (BookSnapshot, bool)
}

// Curve is an exponential y = a*b^x (growth) or y = a*b^(-x) (decay). The
// coefficient is kept as ln(a): b^x overflows float64 at realistic prices.
type Curve struct {
	LogA float64
	B    float64
}

func (c Curve) A() float64 {
	return math.Exp(c.LogA)
}

type point struct {
	x float64
	y float64
}

// Estimator computes the equilibrium mid-market price of a book: the price at
// which the exponential fits of both sides' discounted cumulative depth
// intersect. The result is diagnostic and says nothing about liquidity
// actually resting at that price.
type Estimator struct {
	depth DepthReader
	log   zerolog.Logger
}

func NewEstimator(depth DepthReader, log zerolog.Logger) *Estimator {
	return &Estimator{
		depth: depth,
		log:   log.With().Str("component", "estimator").Logger(),
	}
}

func (e *Estimator) EquilibriumPrice(market Market, halfLife float64) (float64, error) {
	if halfLife <= 0 || math.IsNaN(halfLife) || math.IsInf(halfLife, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidHalfLife, halfLife)
	}
	snapshot, ok := e.depth.Snapshot(market)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrOrderBookNotFound, market)
	}
	if len(snapshot.Bids) < 2 || len(snapshot.Asks) < 2 {
		return 0, fmt.Errorf("%w: %s has %d bid and %d ask levels",
			ErrInsufficientDepth, market, len(snapshot.Bids), len(snapshot.Asks))
	}

	bid1, bid2 := lastDecayPoints(snapshot.Bids, Buy, halfLife)
	decay := fitDecay(bid1, bid2)
	e.log.Debug().
		Float64("x1", bid1.x).Float64("y1", bid1.y).
		Float64("x2", bid2.x).Float64("y2", bid2.y).
		Float64("ln_a", decay.LogA).Float64("b", decay.B).
		Msg("bid curve y=a*b^(-x)")

	ask1, ask2 := lastDecayPoints(snapshot.Asks, Sell, halfLife)
	growth := fitGrowth(ask1, ask2)
	e.log.Debug().
		Float64("x1", ask1.x).Float64("y1", ask1.y).
		Float64("x2", ask2.x).Float64("y2", ask2.y).
		Float64("ln_a", growth.LogA).Float64("b", growth.B).
		Msg("ask curve y=a*b^x")

	price := Intersect(decay, growth)
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: %s curves do not intersect", ErrInsufficientDepth, market)
	}
	return price, nil
}

// Intersect solves a1*b1^(-x) = a2*b2^x for x.
func Intersect(decay, growth Curve) float64 {
	return (decay.LogA - growth.LogA) / math.Log(growth.B*decay.B)
}

// lastDecayPoints walks a side from its outermost level towards the spread
// (bids from the lowest price up, asks from the highest price down),
// accumulating depth discounted by depthDecay^(tick/halfLife) per step. The
// returned points are the value at the last level and one more pure decay
// step beyond it.
//
// levels must be in book order, best price first.
func lastDecayPoints(levels []LevelSnapshot, side Side, halfLife float64) (point, point) {
	factor := math.Pow(depthDecay, priceTick/halfLife)

	last := len(levels) - 1
	current := point{
		x: levels[last].Price.InexactFloat64(),
		y: levels[last].Total().InexactFloat64(),
	}
	for i := last - 1; i >= 0; i-- {
		current = point{
			x: levels[i].Price.InexactFloat64(),
			y: current.y*factor + levels[i].Total().InexactFloat64(),
		}
	}

	next := point{x: current.x + priceTick, y: current.y * factor}
	if side == Sell {
		next.x = current.x - priceTick
	}
	return current, next
}

// fitDecay solves y = a*b^(-x) through two points one tick apart.
func fitDecay(p1, p2 point) Curve {
	b := p1.y / p2.y
	return Curve{LogA: math.Log(p2.y) + p2.x*math.Log(b), B: b}
}

// fitGrowth solves y = a*b^x through two points.
func fitGrowth(p1, p2 point) Curve {
	b := math.Pow(p2.y/p1.y, 1/(p2.x-p1.x))
	return Curve{LogA: math.Log(p2.y) - p2.x*math.Log(b), B: b}
}
