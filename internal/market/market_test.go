package market

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candlesFromCloses(closes ...float64) []Candle {
	out := make([]Candle, len(closes))
	for i, c := range closes {
		out[i] = Candle{OpenTime: int64(i) * 60_000, CloseTime: int64(i+1)*60_000 - 1, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
	}
	return out
}

func TestComputeFeatures_ShortSeriesUsesNeutralRSI(t *testing.T) {
	f, err := ComputeFeatures(candlesFromCloses(100, 101, 102, 103, 104, 110))
	require.NoError(t, err)
	assert.Equal(t, 50.0, f.RSI)
	assert.InDelta(t, 0.10, f.Momentum5, 1e-12)
	assert.Equal(t, 110.0, f.Latest.Close)
}

func TestComputeFeatures_RisingSeries(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
		if i%4 == 3 {
			closes[i] -= 0.5
		}
	}
	f, err := ComputeFeatures(candlesFromCloses(closes...))
	require.NoError(t, err)
	assert.Greater(t, f.RSI, 50.0)
	assert.LessOrEqual(t, f.RSI, 100.0)
	assert.Greater(t, f.Momentum5, 0.0)
}

func TestComputeFeatures_Errors(t *testing.T) {
	_, err := ComputeFeatures(nil)
	assert.ErrorIs(t, err, ErrNoCandles)

	_, err = ComputeFeatures(candlesFromCloses(1, 2, 3))
	assert.Error(t, err)

	_, err = ComputeFeatures(candlesFromCloses(0, 1, 2, 3, 4, 5))
	assert.Error(t, err)
}

func TestSnapshot_Validate(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	f, err := ComputeFeatures(candlesFromCloses(1, 2, 3, 4, 5, 6))
	require.NoError(t, err)
	snap := LatestSnapshot("BTC/USDT", "5m", f, now)
	require.NoError(t, snap.Validate())
	assert.Equal(t, 6.0, snap.Close())
	assert.Equal(t, "2024-01-02T03:04:05Z", snap.Fields()["timestamp"])
	assert.Contains(t, snap.Keys(), "momentum_5")

	assert.Error(t, Snapshot{Symbol: "X"}.Validate())

	missing := Snapshot{Symbol: "X", Values: map[string]float64{"open": 1, "high": 1, "low": 1, "close": 1}}
	assert.ErrorContains(t, missing.Validate(), "volume")

	bad := LatestSnapshot("X", "5m", f, now)
	bad.Values["close"] = math.NaN()
	assert.Error(t, bad.Validate())
}
