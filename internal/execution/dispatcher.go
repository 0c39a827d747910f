package execution

import (
	"context"
	"fmt"
	"sync"

	"quorumtrader/internal/decision"
	"quorumtrader/internal/logger"
	"quorumtrader/internal/risk"

	"github.com/shopspring/decimal"
)

// Dispatcher runs the gate-then-route sequence. One dispatch is in flight at a time.
type Dispatcher struct {
	mu               sync.Mutex
	ledger           *risk.Ledger
	backend          Backend
	riskPerTrade     decimal.Decimal
	realizedFeedback bool
	recorder         OrderRecorder
	notifier         Notifier
	tripped          bool
}

type Option func(*Dispatcher)

func WithRecorder(r OrderRecorder) Option { return func(d *Dispatcher) { d.recorder = r } }

func WithNotifier(n Notifier) Option { return func(d *Dispatcher) { d.notifier = n } }

// WithRealizedFeedback books realized PnL from closes into the ledger.
func WithRealizedFeedback(on bool) Option { return func(d *Dispatcher) { d.realizedFeedback = on } }

func NewDispatcher(ledger *risk.Ledger, backend Backend, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ledger:       ledger,
		backend:      backend,
		riskPerTrade: decimal.NewFromFloat(ledger.Policy().RiskPerTrade),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Mode() string { return d.backend.Mode() }

func (d *Dispatcher) Ledger() *risk.Ledger { return d.ledger }

// Execute sizes and routes order. A nil result with a SkipReason is a
// legitimate no-trade; only a *DispatchError means the trade failed.
func (d *Dispatcher) Execute(ctx context.Context, order Order) (*OrderResult, SkipReason, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ledger.ResetIfNewDay()
	if d.ledger.KillSwitchTripped() {
		logger.Taggedf(logger.TagRiskDenied, "kill switch active, %s not traded", order.Symbol)
		d.noteKillSwitch(ctx)
		return nil, SkipKillSwitch, nil
	}
	d.tripped = false
	if order.Action == decision.Hold {
		logger.Infof("decision for %s is hold, no trade", order.Symbol)
		return nil, SkipHold, nil
	}
	if d.backend.RequiresPrice() && order.Price <= 0 {
		return nil, SkipNone, &DispatchError{Symbol: order.Symbol, Stage: "price", Err: ErrInvalidPrice}
	}

	balance, err := d.backend.AvailableBalance(ctx)
	if err != nil {
		return nil, SkipNone, &DispatchError{Symbol: order.Symbol, Stage: "balance", Err: err}
	}
	// sizing ignores StopFraction: capital at risk is not bounded by risk_per_trade
	notional := decimal.NewFromFloat(balance).Mul(d.riskPerTrade).InexactFloat64()
	logger.Debugf("risking %.4f on %s (balance %.4f)", notional, order.Symbol, balance)

	if !d.ledger.AllowTrade(notional) {
		return nil, SkipRiskDenied, nil
	}
	d.ledger.Reserve(notional)

	res, err := d.backend.Open(ctx, OpenRequest{
		Symbol:       order.Symbol,
		Side:         order.Action,
		Notional:     notional,
		Price:        order.Price,
		StopFraction: order.StopFraction,
		TakeFraction: order.TakeFraction,
	})
	if err != nil {
		return nil, SkipNone, &DispatchError{Symbol: order.Symbol, Stage: "open", Err: err}
	}
	d.publish(ctx, *res)
	return res, SkipNone, nil
}

// ClosePosition closes the local position for symbol at price.
func (d *Dispatcher) ClosePosition(ctx context.Context, symbol string, price float64) (*OrderResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	book, ok := d.backend.(PositionBook)
	if !ok {
		return nil, ErrCloseUnsupported
	}
	d.ledger.ResetIfNewDay()
	res, ok := book.Close(symbol, price)
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoPosition)
	}
	if d.realizedFeedback {
		if res.RealizedPnL >= 0 {
			d.ledger.RegisterProfit(res.RealizedPnL)
		} else {
			d.ledger.RegisterLoss(res.RealizedPnL)
		}
	}
	d.publish(ctx, *res)
	return res, nil
}

// Positions lists paper positions; live backends return nil.
func (d *Dispatcher) Positions() []Position {
	if book, ok := d.backend.(PositionBook); ok {
		return book.Positions()
	}
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, res OrderResult) {
	if d.recorder != nil {
		if err := d.recorder.RecordOrder(ctx, res); err != nil {
			logger.Warnf("record order %s %s failed: %v", res.Symbol, res.Status, err)
		}
	}
	if d.notifier != nil {
		text := fmt.Sprintf("[%s] %s %s size=%.6f @ %.4f status=%s", res.Mode, res.Side, res.Symbol, res.Size, res.Price, res.Status)
		if res.Status == StatusClosed {
			text += fmt.Sprintf(" pnl=%.4f", res.RealizedPnL)
		}
		if err := d.notifier.SendText(ctx, text); err != nil {
			logger.Warnf("notify order failed: %v", err)
		}
	}
}

// noteKillSwitch notifies once per trip rather than once per cycle.
func (d *Dispatcher) noteKillSwitch(ctx context.Context) {
	if d.tripped || d.notifier == nil {
		d.tripped = true
		return
	}
	d.tripped = true
	st := d.ledger.Status()
	text := fmt.Sprintf("kill switch tripped: session loss %.4f <= -%.4f, trading halted for %s",
		st.SessionLoss, st.DailyLossLimit, st.SessionDay)
	if err := d.notifier.SendText(ctx, text); err != nil {
		logger.Warnf("notify kill switch failed: %v", err)
	}
}
