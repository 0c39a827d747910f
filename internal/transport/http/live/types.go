package livehttp

import (
	"context"
	"time"

	"quorumtrader/internal/execution"
	"quorumtrader/internal/risk"
	"quorumtrader/internal/store/decisionlog"
)

// Trader is the execution surface exposed over HTTP; *execution.Dispatcher implements it.
type Trader interface {
	Execute(ctx context.Context, order execution.Order) (*execution.OrderResult, execution.SkipReason, error)
	ClosePosition(ctx context.Context, symbol string, price float64) (*execution.OrderResult, error)
	Positions() []execution.Position
	Mode() string
}

type RiskReporter interface {
	Status() risk.Status
}

type DecisionLog interface {
	Recent(ctx context.Context, q decisionlog.Query) ([]decisionlog.Record, error)
	ByTrace(ctx context.Context, traceID string) ([]decisionlog.Record, error)
}

type OrderLog interface {
	RecentOrders(ctx context.Context, symbol string, limit int) ([]execution.OrderResult, error)
	RealizedPnL(ctx context.Context, since time.Time) (float64, error)
}

// SignalRequest 是外部 webhook 推送的交易信号。
type SignalRequest struct {
	Symbol     string   `json:"symbol" binding:"required"`
	Side       string   `json:"side" binding:"required"`
	Reason     string   `json:"reason"`
	Confidence *float64 `json:"confidence" binding:"required"`
	StopPct    *float64 `json:"stop_pct" binding:"required"`
	TakePct    *float64 `json:"take_pct" binding:"required"`
}

type SignalResponse struct {
	Status  string                 `json:"status"`
	Skipped execution.SkipReason   `json:"skipped,omitempty"`
	Result  *execution.OrderResult `json:"result,omitempty"`
}

type CloseRequest struct {
	Price float64 `json:"price"`
}
