package exchange_test

import (
	"bytes"
	"testing"

	. "matchbook/internal/common"
	"matchbook/internal/engine"
	"matchbook/internal/exchange"
	"matchbook/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testExchange struct {
	*exchange.Exchange
	repo *engine.Repository
	logs *bytes.Buffer
}

func newExchange(t *testing.T) testExchange {
	t.Helper()
	logs := &bytes.Buffer{}
	log := zerolog.New(logs).Level(zerolog.DebugLevel)

	repo := engine.NewRepository(log)
	eng := engine.New(repo, log)
	estimator := engine.NewEstimator(repo, log)
	orders := service.NewOrderService(repo, log)
	return testExchange{
		Exchange: exchange.New(orders, eng, repo, estimator, 0.5, log),
		repo:     repo,
		logs:     logs,
	}
}

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestProcessRaw_AddWithoutMatchRests(t *testing.T) {
	x := newExchange(t)

	require.NoError(t, x.ProcessRaw("0=BITSO;1=A;2=B;3=400;4=5;6=BTC_USD"))

	bids := x.repo.GetBidOrders(BTCUSD, d(400))
	require.Len(t, bids, 1)
	assert.True(t, bids[0].Amount.Equal(d(5)))
	assert.Empty(t, x.repo.GetAskOrders(BTCUSD, d(400)))
}

func TestProcessRaw_PartialFill(t *testing.T) {
	x := newExchange(t)

	require.NoError(t, x.ProcessRaw("0=BITSO;1=A;2=B;3=100;4=100;6=BTC_USD"))
	require.NoError(t, x.ProcessRaw("0=BITSO;1=A;2=S;3=100;4=40;6=BTC_USD"))

	orders := x.repo.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, Buy, orders[0].Side)
	assert.True(t, orders[0].Amount.Equal(d(60)))
	assert.Contains(t, x.logs.String(), "trade executed")
}

func TestProcessRaw_FullFillEmptiesBook(t *testing.T) {
	x := newExchange(t)

	require.NoError(t, x.ProcessRaw("0=BITSO;1=A;2=S;3=400;4=5;6=BTC_USD"))
	require.NoError(t, x.ProcessRaw("0=BITSO;1=A;2=B;3=400;4=5;6=BTC_USD"))

	assert.Empty(t, x.repo.Orders())
	snapshot, ok := x.repo.Snapshot(BTCUSD)
	require.True(t, ok)
	assert.Empty(t, snapshot.Bids)
	assert.Empty(t, snapshot.Asks)
}

func TestProcessRaw_DecodeError(t *testing.T) {
	x := newExchange(t)

	err := x.ProcessRaw("0=BITSO;1=A;2=B;3=400;6=BTC_USD")
	assert.ErrorIs(t, err, ErrMessageNotSupported)
	assert.Empty(t, x.repo.Orders())
}

func TestProcess_InvalidAdd(t *testing.T) {
	x := newExchange(t)

	err := x.Process(Message{Type: Add, Side: Buy, Market: BTCUSD, Price: d(1)})
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.False(t, x.repo.OrderBookExist(BTCUSD))
}

func TestProcess_DeleteUnknownOrder(t *testing.T) {
	x := newExchange(t)
	require.NoError(t, x.ProcessRaw("0=BITSO;1=A;2=S;3=400;4=5;6=BTC_USD"))

	ordersBefore := x.repo.Orders()
	snapshotBefore, ok := x.repo.Snapshot(BTCUSD)
	require.True(t, ok)

	err := x.Process(Message{Type: Delete, OrderID: uuid.New()})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	assert.Equal(t, ordersBefore, x.repo.Orders())
	snapshotAfter, ok := x.repo.Snapshot(BTCUSD)
	require.True(t, ok)
	assert.Equal(t, snapshotBefore, snapshotAfter)
}

func TestProcess_DeleteAndModify(t *testing.T) {
	x := newExchange(t)

	require.NoError(t, x.ProcessRaw("0=BITSO;1=A;2=S;3=10;4=7;6=ETH_USD"))
	require.NoError(t, x.ProcessRaw("0=BITSO;1=A;2=S;3=10;4=9;6=ETH_USD"))
	orders := x.repo.Orders()
	require.Len(t, orders, 2)

	require.NoError(t, x.Process(Message{Type: Modify, OrderID: orders[0].ID, Amount: d(3)}))
	got, ok := x.repo.Get(orders[0].ID)
	require.True(t, ok)
	assert.True(t, got.Amount.Equal(d(3)))

	require.NoError(t, x.Process(Message{Type: Delete, OrderID: orders[1].ID}))
	_, ok = x.repo.Get(orders[1].ID)
	assert.False(t, ok)

	err := x.Process(Message{Type: Modify, OrderID: orders[1].ID, Amount: d(3)})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestProcess_PrintLogsEquilibriumPrice(t *testing.T) {
	x := newExchange(t)

	for _, raw := range []string{
		"0=BITSO;1=A;2=B;3=7;4=10000;6=BTC_USD",
		"0=BITSO;1=A;2=B;3=8;4=3000;6=BTC_USD",
		"0=BITSO;1=A;2=B;3=9;4=4500;6=BTC_USD",
		"0=BITSO;1=A;2=S;3=10;4=1000;6=BTC_USD",
		"0=BITSO;1=A;2=S;3=11;4=10000;6=BTC_USD",
		"0=BITSO;1=A;2=S;3=12;4=2500;6=BTC_USD",
	} {
		require.NoError(t, x.ProcessRaw(raw))
	}
	require.Len(t, x.repo.Orders(), 6)

	x.logs.Reset()
	require.NoError(t, x.ProcessRaw("0=BITSO;1=P;6=BTC_USD"))
	assert.Contains(t, x.logs.String(), `"price":9.671`)
}

func TestProcess_PrintUnknownBook(t *testing.T) {
	x := newExchange(t)

	err := x.Process(Message{Type: Print, Market: ETHBTC})
	assert.ErrorIs(t, err, engine.ErrOrderBookNotFound)
}

func TestProcess_PrintShallowBookIsNotAnError(t *testing.T) {
	x := newExchange(t)

	require.NoError(t, x.ProcessRaw("0=BITSO;1=A;2=B;3=7;4=1;6=BTC_USD"))
	assert.NoError(t, x.ProcessRaw("0=BITSO;1=P;6=BTC_USD"))
}
