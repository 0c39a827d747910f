package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"quorumtrader/internal/market"
	"quorumtrader/internal/pkg/symbol"
	"quorumtrader/internal/scheduler"

	gobinance "github.com/adshao/go-binance/v2"
)

const (
	maxKlineLimit = 1000
	// klineGrace keeps a candle that closed moments ago from being treated as open.
	klineGrace = 10 * time.Second
)

// Source serves closed spot candles and last prices.
type Source struct {
	client *gobinance.Client
	now    func() time.Time
}

func NewSource(cfg Config) *Source {
	return &Source{client: newClient(cfg.withDefaults()), now: time.Now}
}

func (s *Source) FetchCandles(ctx context.Context, sym, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	candleLen, err := scheduler.ParseTimeframe(interval)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	// one extra so dropping the live candle still leaves limit closed ones
	kls, err := s.client.NewKlinesService().
		Symbol(symbol.ToExchange(sym)).
		Interval(interval).
		Limit(min(limit+1, maxKlineLimit)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", sym, interval, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	out = dropUnclosed(out, candleLen, s.now().UTC())
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Source) LastPrice(ctx context.Context, sym string) (float64, error) {
	prices, err := s.client.NewListPricesService().Symbol(symbol.ToExchange(sym)).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch price %s: %w", sym, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price returned for %s", sym)
	}
	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", prices[0].Price, err)
	}
	return price, nil
}

// dropUnclosed removes the last candle while it is still forming.
func dropUnclosed(candles []market.Candle, interval time.Duration, now time.Time) []market.Candle {
	if len(candles) == 0 || interval <= 0 {
		return candles
	}
	last := candles[len(candles)-1]
	if last.OpenTime <= 0 {
		return candles
	}
	cutoff := last.OpenTime + interval.Milliseconds() + klineGrace.Milliseconds()
	if now.UnixMilli() < cutoff {
		return candles[:len(candles)-1]
	}
	return candles
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
