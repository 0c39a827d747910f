package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"quorumtrader/internal/decision"
	"quorumtrader/internal/execution"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStore_RecordAndList(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.RecordOrder(ctx, execution.OrderResult{
		Symbol: "BTC/USDT", Side: decision.Buy, Size: 0.002, Price: 50000, Notional: 100,
		Status: execution.StatusFilled, OrderID: "a", Mode: "paper", At: base,
	}))
	require.NoError(t, st.RecordOrder(ctx, execution.OrderResult{
		Symbol: "BTC/USDT", Side: decision.Sell, Size: 0.002, Price: 51000,
		Status: execution.StatusClosed, OrderID: "a", Mode: "paper", RealizedPnL: 2, At: base.Add(time.Hour),
	}))
	require.NoError(t, st.RecordOrder(ctx, execution.OrderResult{
		Symbol: "ETH/USDT", Side: decision.Sell, Size: 0.1, Price: 3000, Notional: 300,
		Status: execution.StatusFilled, OrderID: "b", Mode: "paper", At: base.Add(2 * time.Hour),
	}))

	all, err := st.RecentOrders(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ETH/USDT", all[0].Symbol)
	assert.Equal(t, decision.Sell, all[0].Side)

	btc, err := st.RecentOrders(ctx, "btc/usdt", 10)
	require.NoError(t, err)
	require.Len(t, btc, 2)
	assert.Equal(t, execution.StatusClosed, btc[0].Status)
	assert.Equal(t, 2.0, btc[0].RealizedPnL)
	assert.True(t, btc[1].At.Equal(base))

	limited, err := st.RecentOrders(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_RealizedPnL(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	total, err := st.RealizedPnL(ctx, base)
	require.NoError(t, err)
	assert.Zero(t, total)

	for i, pnl := range []float64{5, -2, 1} {
		require.NoError(t, st.RecordOrder(ctx, execution.OrderResult{
			Symbol: "BTC/USDT", Side: decision.Sell, Status: execution.StatusClosed,
			RealizedPnL: pnl, At: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	total, err = st.RealizedPnL(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.InDelta(t, -1.0, total, 1e-9)
}
