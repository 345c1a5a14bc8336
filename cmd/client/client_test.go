package main

import (
	"math/rand/v2"
	"testing"

	. "matchbook/internal/common"
	"matchbook/internal/protocol"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(t *testing.T) options {
	t.Helper()
	opts, err := parseOptions("btc_usd", "sell", "400", "5", "")
	require.NoError(t, err)
	opts.initialPrice = 100
	opts.priceLevels = 3
	opts.minPriceUnit = 100
	opts.ordersPerLevel = 4
	return opts
}

func TestParseOptions(t *testing.T) {
	opts := testOptions(t)
	assert.Equal(t, BTCUSD, opts.market)
	assert.Equal(t, Sell, opts.side)
	assert.Equal(t, "400", opts.price.String())

	_, err := parseOptions("BTC_EUR", "buy", "1", "1", "")
	assert.Error(t, err)
	_, err = parseOptions("BTC_USD", "hold", "1", "1", "")
	assert.Error(t, err)
	_, err = parseOptions("BTC_USD", "buy", "1", "1", "nope")
	assert.Error(t, err)
}

func TestBuildMessages_Add(t *testing.T) {
	messages, err := buildMessages("add", testOptions(t), nil)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "0=BITSO;1=A;2=S;3=400;4=5;6=BTC_USD", protocol.Encode(messages[0]))
}

func TestBuildMessages_RequiresID(t *testing.T) {
	opts := testOptions(t)
	_, err := buildMessages("delete", opts, nil)
	assert.Error(t, err)
	_, err = buildMessages("modify", opts, nil)
	assert.Error(t, err)

	opts.orderID = uuid.New()
	messages, err := buildMessages("modify", opts, nil)
	require.NoError(t, err)
	assert.Equal(t, Modify, messages[0].Type)
	assert.Equal(t, opts.orderID, messages[0].OrderID)
}

func TestBuildMessages_PopulateDoesNotCross(t *testing.T) {
	messages, err := buildMessages("populate", testOptions(t), rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	require.Len(t, messages, 2*3*4)

	for _, msg := range messages {
		assert.True(t, msg.Amount.IsPositive())
		price := msg.Price.IntPart()
		if msg.Side == Buy {
			assert.Contains(t, []int64{100, 200, 300}, price)
		} else {
			assert.Contains(t, []int64{400, 500, 600}, price)
		}
	}
}

func TestBuildMessages_Equilibrium(t *testing.T) {
	messages, err := buildMessages("equilibrium", testOptions(t), nil)
	require.NoError(t, err)
	require.Len(t, messages, len(referenceBook)+1)
	assert.Equal(t, Print, messages[len(messages)-1].Type)
}

func TestBuildMessages_UnknownAction(t *testing.T) {
	_, err := buildMessages("cancel-all", testOptions(t), nil)
	assert.Error(t, err)
}
