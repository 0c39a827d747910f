package execution

import (
	"context"
	"fmt"
	"time"

	"quorumtrader/internal/decision"
	"quorumtrader/internal/logger"
)

const ModeLive = "live"

// SinkResult is the exchange's answer to a market order.
type SinkResult struct {
	Status  string
	OrderID string
}

// OrderSink is the live exchange boundary.
type OrderSink interface {
	CreateMarketOrder(ctx context.Context, symbol string, side decision.Action, size float64) (SinkResult, error)
	QuoteBalance(ctx context.Context, asset string) (float64, error)
}

// LiveBackend submits market orders sized in quote units of quoteAsset.
type LiveBackend struct {
	sink       OrderSink
	quoteAsset string
	now        func() time.Time
}

func NewLiveBackend(sink OrderSink, quoteAsset string) *LiveBackend {
	return &LiveBackend{sink: sink, quoteAsset: quoteAsset, now: time.Now}
}

func (l *LiveBackend) Mode() string        { return ModeLive }
func (l *LiveBackend) RequiresPrice() bool { return true }

func (l *LiveBackend) AvailableBalance(ctx context.Context) (float64, error) {
	return l.sink.QuoteBalance(ctx, l.quoteAsset)
}

func (l *LiveBackend) Open(ctx context.Context, req OpenRequest) (*OrderResult, error) {
	if req.Price <= 0 {
		return nil, ErrInvalidPrice
	}
	size := req.Notional / req.Price
	logger.Infof("placing market order %s %s size=%.8f", req.Side, req.Symbol, size)
	res, err := l.sink.CreateMarketOrder(ctx, req.Symbol, req.Side, size)
	if err != nil {
		return nil, fmt.Errorf("create market order: %w", err)
	}
	status := res.Status
	if status == "" {
		status = "unknown"
	}
	return &OrderResult{
		Symbol:   req.Symbol,
		Side:     req.Side,
		Size:     size,
		Price:    req.Price,
		Notional: req.Notional,
		Status:   status,
		OrderID:  res.OrderID,
		Mode:     ModeLive,
		At:       l.now().UTC(),
	}, nil
}
