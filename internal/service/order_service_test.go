package service_test

import (
	"testing"

	. "matchbook/internal/common"
	"matchbook/internal/engine"
	"matchbook/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func newService() (*service.OrderService, *engine.Repository) {
	repo := engine.NewRepository(zerolog.Nop())
	return service.NewOrderService(repo, zerolog.Nop()), repo
}

func addMessage(side Side, price, amount int64) Message {
	return Message{Type: Add, Side: side, Market: BTCUSD, Price: d(price), Amount: d(amount)}
}

func placeOrder(t *testing.T, svc *service.OrderService, side Side, price, amount int64) Order {
	t.Helper()
	order, err := svc.ParseOrder(addMessage(side, price, amount))
	require.NoError(t, err)
	require.NoError(t, svc.AddOrder(order))
	return order
}

func TestParseOrder(t *testing.T) {
	svc, _ := newService()

	order, err := svc.ParseOrder(addMessage(Sell, 400, 5))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, BTCUSD, order.Market)
	assert.Equal(t, Sell, order.Side)
	assert.True(t, order.Price.Equal(d(400)))
	assert.True(t, order.Amount.Equal(d(5)))
	assert.False(t, order.CreatedAt.IsZero())

	again, err := svc.ParseOrder(addMessage(Sell, 400, 5))
	require.NoError(t, err)
	assert.NotEqual(t, order.ID, again.ID)
}

func TestParseOrder_Rejects(t *testing.T) {
	svc, _ := newService()

	_, err := svc.ParseOrder(Message{Type: Print, Market: BTCUSD})
	assert.ErrorIs(t, err, ErrMessageNotSupported)

	for _, msg := range []Message{
		addMessage(Buy, 0, 5),
		addMessage(Buy, -1, 5),
		addMessage(Buy, 100, 0),
		{Type: Add, Side: Buy, Market: MarketNone, Price: d(1), Amount: d(1)},
	} {
		_, err := svc.ParseOrder(msg)
		assert.ErrorIs(t, err, ErrInvalidOrder)
	}
}

func TestDeleteOrder(t *testing.T) {
	svc, repo := newService()
	order := placeOrder(t, svc, Buy, 100, 10)

	deleted, err := svc.DeleteOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, deleted.ID)
	assert.Equal(t, BTCUSD, deleted.Market)
	assert.Empty(t, repo.Orders())

	_, err = svc.DeleteOrder(order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestModifyOrder_NotFound(t *testing.T) {
	svc, _ := newService()

	_, err := svc.ModifyOrder(uuid.New(), d(5))
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestModifyOrder_InvalidAmount(t *testing.T) {
	svc, _ := newService()
	order := placeOrder(t, svc, Buy, 100, 10)

	_, err := svc.ModifyOrder(order.ID, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestModifyOrder_SameAmountIsNoOp(t *testing.T) {
	svc, repo := newService()
	order := placeOrder(t, svc, Buy, 100, 10)

	got, err := svc.ModifyOrder(order.ID, decimal.RequireFromString("10.0"))
	require.NoError(t, err)
	assert.True(t, got.ModifiedAt.IsZero())

	stored, ok := repo.Get(order.ID)
	require.True(t, ok)
	assert.True(t, stored.ModifiedAt.IsZero())
}

func TestModifyOrder_DecreaseKeepsPriority(t *testing.T) {
	svc, repo := newService()
	first := placeOrder(t, svc, Buy, 100, 10)
	second := placeOrder(t, svc, Buy, 100, 10)

	got, err := svc.ModifyOrder(first.ID, d(4))
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(d(4)))
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
	assert.False(t, got.ModifiedAt.IsZero())

	queue := repo.GetBidOrders(BTCUSD, d(100))
	require.Len(t, queue, 2)
	assert.Equal(t, first.ID, queue[0].ID)
	assert.Equal(t, second.ID, queue[1].ID)
}

func TestModifyOrder_IncreaseLosesPriority(t *testing.T) {
	svc, repo := newService()
	first := placeOrder(t, svc, Buy, 100, 10)
	second := placeOrder(t, svc, Buy, 100, 10)

	got, err := svc.ModifyOrder(first.ID, d(20))
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(d(20)))
	assert.True(t, got.CreatedAt.After(first.CreatedAt))

	queue := repo.GetBidOrders(BTCUSD, d(100))
	require.Len(t, queue, 2)
	assert.Equal(t, second.ID, queue[0].ID)
	assert.Equal(t, first.ID, queue[1].ID)
}
