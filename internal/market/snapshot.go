package market

import (
	"fmt"
	"sort"
	"time"
)

// Keys every snapshot must carry.
var RequiredFields = []string{"open", "high", "low", "close", "volume"}

// Snapshot is the mapping rendered into the prompt. Values may carry
// indicator fields beyond RequiredFields.
type Snapshot struct {
	Symbol    string             `json:"symbol"`
	Timeframe string             `json:"timeframe"`
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// LatestSnapshot builds the snapshot for the newest candle.
func LatestSnapshot(symbol, timeframe string, f Features, now time.Time) Snapshot {
	return Snapshot{
		Symbol:    symbol,
		Timeframe: timeframe,
		Timestamp: now.UTC(),
		Values: map[string]float64{
			"open":       f.Latest.Open,
			"high":       f.Latest.High,
			"low":        f.Latest.Low,
			"close":      f.Latest.Close,
			"volume":     f.Latest.Volume,
			"rsi":        f.RSI,
			"momentum_5": f.Momentum5,
		},
	}
}

// Validate rejects an empty snapshot or one missing a required numeric field.
func (s Snapshot) Validate() error {
	if len(s.Values) == 0 {
		return fmt.Errorf("snapshot for %s is empty", s.Symbol)
	}
	for _, key := range RequiredFields {
		v, ok := s.Values[key]
		if !ok {
			return fmt.Errorf("snapshot for %s missing %s", s.Symbol, key)
		}
		if !isFinite(v) {
			return fmt.Errorf("snapshot for %s has non-finite %s", s.Symbol, key)
		}
	}
	return nil
}

func (s Snapshot) Close() float64 { return s.Values["close"] }

// Fields flattens the snapshot for template rendering.
func (s Snapshot) Fields() map[string]any {
	out := make(map[string]any, len(s.Values)+3)
	for k, v := range s.Values {
		out[k] = v
	}
	out["symbol"] = s.Symbol
	out["timeframe"] = s.Timeframe
	out["timestamp"] = s.Timestamp.Format(time.RFC3339)
	return out
}

// Keys returns the value keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Values))
	for k := range s.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
