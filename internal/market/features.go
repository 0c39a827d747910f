package market

import (
	"errors"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

const (
	rsiPeriod      = 14
	momentumPeriod = 5
	neutralRSI     = 50.0
)

var ErrNoCandles = errors.New("no market data available")

// Features are the indicator values attached to the latest candle.
type Features struct {
	Latest    Candle
	RSI       float64
	Momentum5 float64
}

// ComputeFeatures derives RSI(14) and the 5-bar percent change of close.
// RSI falls back to 50 while undefined; momentum needs at least six candles.
func ComputeFeatures(candles []Candle) (Features, error) {
	if len(candles) == 0 {
		return Features{}, ErrNoCandles
	}
	if len(candles) <= momentumPeriod {
		return Features{}, fmt.Errorf("need more than %d candles for momentum, got %d", momentumPeriod, len(candles))
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	latest := candles[len(candles)-1]

	rsi := neutralRSI
	if len(closes) > rsiPeriod {
		series := talib.Rsi(closes, rsiPeriod)
		if v := series[len(series)-1]; isFinite(v) {
			rsi = v
		}
	}

	base := closes[len(closes)-1-momentumPeriod]
	if base == 0 {
		return Features{}, fmt.Errorf("momentum undefined: close %d bars ago is zero", momentumPeriod)
	}
	momentum := latest.Close/base - 1

	return Features{Latest: latest, RSI: rsi, Momentum5: momentum}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
