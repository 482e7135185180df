package cache

import (
	"context"
	"testing"
	"time"

	"payledger/internal/ledger"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewPaymentCache(client, "0xledger", time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "order1")
	require.NoError(t, err)
	assert.False(t, ok)

	amount, _ := uint256.FromDecimal("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	rec := &ledger.PaymentRecord{
		OrderID:   "order1",
		Amount:    amount,
		Payer:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Timestamp: 1700000000,
	}
	require.NoError(t, c.Set(ctx, rec))

	got, ok, err := c.Get(ctx, "order1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.OrderID, got.OrderID)
	assert.True(t, rec.Amount.Eq(got.Amount))
	assert.Equal(t, rec.Payer, got.Payer)
	assert.Equal(t, rec.Timestamp, got.Timestamp)

	assert.True(t, mr.Exists("ledger:payment:0xledger:order1"))
	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "order1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaymentCache_Corrupt(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set("ledger:payment:0xledger:bad", "{not json"))
	_, _, err := NewPaymentCache(client, "0xledger", time.Minute).Get(context.Background(), "bad")
	assert.Error(t, err)
}
