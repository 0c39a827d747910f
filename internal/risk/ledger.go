// Package risk keeps the day-scoped loss budget that gates every trade.
package risk

import (
	"sync"
	"time"

	"quorumtrader/internal/logger"

	"github.com/shopspring/decimal"
)

// Policy is the ledger configuration. DailyLossLimit is in the same quote
// units as the notional reserved per trade.
type Policy struct {
	RiskPerTrade   float64
	DailyLossLimit float64
	KillSwitch     bool
}

// Ledger tracks sessionLoss, a signed accumulator where more negative means
// more loss. It changes only through Reserve, RegisterLoss, RegisterProfit
// or the reset at a UTC day boundary. Not persisted.
type Ledger struct {
	mu          sync.Mutex
	policy      Policy
	limit       decimal.Decimal
	sessionDay  time.Time
	sessionLoss decimal.Decimal
	now         func() time.Time
}

type Option func(*Ledger)

// WithClock swaps the time source; the ledger always works in UTC.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(policy Policy, opts ...Option) *Ledger {
	l := &Ledger{
		policy: policy,
		limit:  decimal.NewFromFloat(policy.DailyLossLimit).Abs(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.sessionDay = utcDay(l.now())
	return l
}

func (l *Ledger) Policy() Policy { return l.policy }

// ResetIfNewDay zeroes the session when the UTC date has changed and reports whether it did.
func (l *Ledger) ResetIfNewDay() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resetIfNewDayLocked()
}

func (l *Ledger) resetIfNewDayLocked() bool {
	today := utcDay(l.now())
	if today.Equal(l.sessionDay) {
		return false
	}
	l.sessionDay = today
	l.sessionLoss = decimal.Zero
	logger.Infof("risk ledger reset for %s", today.Format(time.DateOnly))
	return true
}

// Reserve provisionally commits amount of risk. It is never reversed automatically.
func (l *Ledger) Reserve(amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionLoss = l.sessionLoss.Sub(abs(amount))
	logger.Infof("reserved risk %.4f (session loss %s)", amount, l.sessionLoss.StringFixed(4))
}

func (l *Ledger) RegisterLoss(amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionLoss = l.sessionLoss.Sub(abs(amount))
	logger.Warnf("loss registered %.4f (session loss %s)", amount, l.sessionLoss.StringFixed(4))
}

func (l *Ledger) RegisterProfit(amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionLoss = l.sessionLoss.Add(abs(amount))
	logger.Infof("profit registered %.4f (session loss %s)", amount, l.sessionLoss.StringFixed(4))
}

// AllowTrade reports whether reserving riskAmount keeps sessionLoss at or above -limit.
func (l *Ledger) AllowTrade(riskAmount float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.policy.KillSwitch {
		return true
	}
	projected := l.sessionLoss.Sub(abs(riskAmount))
	if projected.GreaterThanOrEqual(l.limit.Neg()) {
		return true
	}
	logger.Taggedf(logger.TagRiskDenied, "trade blocked: projected session loss %s exceeds limit -%s",
		projected.StringFixed(4), l.limit.String())
	return false
}

// KillSwitchTripped reports sessionLoss <= -limit. Always false when the kill switch is disabled.
func (l *Ledger) KillSwitchTripped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trippedLocked()
}

func (l *Ledger) trippedLocked() bool {
	if !l.policy.KillSwitch {
		return false
	}
	return l.sessionLoss.LessThanOrEqual(l.limit.Neg())
}

func (l *Ledger) SessionLoss() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionLoss.InexactFloat64()
}

// Status is a point-in-time copy of the ledger for reporting.
type Status struct {
	SessionDay     string  `json:"session_day"`
	SessionLoss    float64 `json:"session_loss"`
	DailyLossLimit float64 `json:"daily_loss_limit"`
	Remaining      float64 `json:"remaining"`
	KillSwitch     bool    `json:"kill_switch"`
	Tripped        bool    `json:"tripped"`
}

// Status rolls the session over first so a stale day is never reported.
func (l *Ledger) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfNewDayLocked()
	remaining := l.limit.Add(l.sessionLoss)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return Status{
		SessionDay:     l.sessionDay.Format(time.DateOnly),
		SessionLoss:    l.sessionLoss.InexactFloat64(),
		DailyLossLimit: l.limit.InexactFloat64(),
		Remaining:      remaining.InexactFloat64(),
		KillSwitch:     l.policy.KillSwitch,
		Tripped:        l.trippedLocked(),
	}
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func abs(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Abs()
}
