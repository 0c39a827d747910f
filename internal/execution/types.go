// Package execution sizes consensus decisions, gates them through the risk
// ledger and routes them to a paper or live backend.
package execution

import (
	"context"
	"time"

	"quorumtrader/internal/decision"
)

const (
	StatusFilled = "filled"
	StatusClosed = "closed"
)

// Order is a consensus decision priced at a reference price.
type Order struct {
	Symbol       string
	Action       decision.Action
	Price        float64
	StopFraction float64
	TakeFraction float64
}

// OrderResult is produced once per successful dispatch and never mutated.
type OrderResult struct {
	Symbol      string          `json:"symbol"`
	Side        decision.Action `json:"side"`
	Size        float64         `json:"size"`
	Price       float64         `json:"price"`
	Notional    float64         `json:"notional"`
	Status      string          `json:"status"`
	OrderID     string          `json:"order_id,omitempty"`
	Mode        string          `json:"mode"`
	RealizedPnL float64         `json:"realized_pnl,omitempty"`
	At          time.Time       `json:"at"`
}

// Position exists only in the paper account, one per symbol.
type Position struct {
	Symbol       string          `json:"symbol"`
	Side         decision.Action `json:"side"`
	Size         float64         `json:"size"`
	EntryPrice   float64         `json:"entry_price"`
	StopFraction float64         `json:"stop_pct"`
	TakeFraction float64         `json:"take_pct"`
	OpenedAt     time.Time       `json:"opened_at"`
}

// SkipReason explains why Execute produced no order without failing.
type SkipReason string

const (
	SkipNone       SkipReason = ""
	SkipKillSwitch SkipReason = "kill_switch"
	SkipHold       SkipReason = "hold"
	SkipRiskDenied SkipReason = "risk_denied"
)

// OpenRequest is what a backend needs to open a position.
type OpenRequest struct {
	Symbol       string
	Side         decision.Action
	Notional     float64
	Price        float64
	StopFraction float64
	TakeFraction float64
}

// Backend opens positions. Implementations need not be safe for concurrent
// use beyond what the Dispatcher guarantees.
type Backend interface {
	Mode() string
	// RequiresPrice reports whether Open rejects a non-positive price.
	RequiresPrice() bool
	AvailableBalance(ctx context.Context) (float64, error)
	Open(ctx context.Context, req OpenRequest) (*OrderResult, error)
}

// PositionBook is implemented by backends that keep positions locally.
type PositionBook interface {
	Close(symbol string, price float64) (*OrderResult, bool)
	Positions() []Position
}

// OrderRecorder persists results, e.g. to an audit table.
type OrderRecorder interface {
	RecordOrder(ctx context.Context, res OrderResult) error
}

// Notifier delivers short text messages to an operator.
type Notifier interface {
	SendText(ctx context.Context, text string) error
}
