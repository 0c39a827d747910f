// Package market turns raw candles into the snapshot handed to decision sources.
package market

import "context"

type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// CandleSource returns the most recent limit candles, oldest first.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// PriceSource returns the latest traded price of symbol.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
}
