// Package engine runs the trading cycle: snapshot, prompt, vote, execute.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quorumtrader/internal/decision"
	"quorumtrader/internal/execution"
	"quorumtrader/internal/logger"
	"quorumtrader/internal/market"
	"quorumtrader/internal/pkg/circuit"
	"quorumtrader/internal/scheduler"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 2 * time.Minute
)

// ErrCycleFailed is returned by RunOnce when no symbol completed.
var ErrCycleFailed = errors.New("every symbol failed this cycle")

// PromptBuilder renders the text sent to decision sources.
type PromptBuilder interface {
	Build(symbol, timeframe string, snap market.Snapshot) (string, error)
}

// Decider runs one ensemble round.
type Decider interface {
	Decide(ctx context.Context, symbol, prompt string) decision.Round
}

// Executor gates and routes a consensus decision.
type Executor interface {
	Execute(ctx context.Context, order execution.Order) (*execution.OrderResult, execution.SkipReason, error)
}

type Params struct {
	Symbols   []string
	Timeframe string
	Lookback  int
	Candles   market.CandleSource
	Prompts   PromptBuilder
	Decider   Decider
	Executor  Executor
	Scheduler scheduler.Scheduler
	// Notifier is optional; told when the breaker opens.
	Notifier execution.Notifier
}

type Engine struct {
	symbols   []string
	timeframe string
	lookback  int
	candles   market.CandleSource
	prompts   PromptBuilder
	decider   Decider
	executor  Executor
	sched     scheduler.Scheduler
	breaker   *circuit.Breaker
	now       func() time.Time
}

func New(p Params) *Engine {
	cb := circuit.New("engine", breakerThreshold, breakerCooldown)
	if p.Notifier != nil {
		// 回调在熔断器锁内同步执行，推送放到 goroutine
		cb.OnStateChange(func(name string, _, to circuit.State) {
			if to != circuit.StateOpen {
				return
			}
			go func() {
				text := fmt.Sprintf("%s paused for %s after %d failed cycles", name, breakerCooldown, breakerThreshold)
				if err := p.Notifier.SendText(context.Background(), text); err != nil {
					logger.Warnf("notify circuit open failed: %v", err)
				}
			}()
		})
	}
	return &Engine{
		symbols:   p.Symbols,
		timeframe: p.Timeframe,
		lookback:  p.Lookback,
		candles:   p.Candles,
		prompts:   p.Prompts,
		decider:   p.Decider,
		executor:  p.Executor,
		sched:     p.Scheduler,
		breaker:   cb,
		now:       time.Now,
	}
}

// SymbolReport is what one symbol produced in a cycle.
type SymbolReport struct {
	Symbol    string
	TraceID   string
	Consensus *decision.Decision
	Result    *execution.OrderResult
	Skip      execution.SkipReason
	Err       error
}

// CycleReport lists symbols in processing order.
type CycleReport struct {
	StartedAt time.Time
	Symbols   []SymbolReport
}

func (r CycleReport) Failed() int {
	n := 0
	for _, s := range r.Symbols {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// String renders one line per symbol for the cycle log.
func (r CycleReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cycle %s symbols=%d failed=%d", r.StartedAt.Format(time.RFC3339), len(r.Symbols), r.Failed())
	for _, s := range r.Symbols {
		b.WriteString("\n  " + s.Symbol + ": ")
		switch {
		case s.Err != nil:
			b.WriteString("error " + s.Err.Error())
		case s.Consensus == nil:
			b.WriteString("no consensus")
		case s.Skip != execution.SkipNone:
			fmt.Fprintf(&b, "%s skipped (%s)", s.Consensus.Action, s.Skip)
		case s.Result != nil:
			fmt.Fprintf(&b, "%s %s size=%.8f @ %.8f", s.Consensus.Action, s.Result.Status, s.Result.Size, s.Result.Price)
		default:
			b.WriteString(string(s.Consensus.Action))
		}
	}
	return b.String()
}

// RunOnce processes every symbol sequentially. A failing symbol is logged and
// skipped; ErrCycleFailed is returned only when all of them failed.
func (e *Engine) RunOnce(ctx context.Context) (CycleReport, error) {
	report := CycleReport{StartedAt: e.now().UTC()}
	for _, sym := range e.symbols {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		logger.Infof("processing symbol %s", sym)
		rep := e.runSymbol(ctx, sym)
		if rep.Err != nil {
			var de *execution.DispatchError
			if errors.As(rep.Err, &de) {
				logger.TaggedErrorf(logger.TagDispatch, "symbol %s trace=%s: %v", sym, rep.TraceID, rep.Err)
			} else {
				logger.Errorf("symbol %s skipped: %v", sym, rep.Err)
			}
		}
		report.Symbols = append(report.Symbols, rep)
	}
	if len(report.Symbols) > 0 && report.Failed() == len(report.Symbols) {
		return report, ErrCycleFailed
	}
	return report, nil
}

func (e *Engine) runSymbol(ctx context.Context, sym string) SymbolReport {
	rep := SymbolReport{Symbol: sym}
	candles, err := e.candles.FetchCandles(ctx, sym, e.timeframe, e.lookback)
	if err != nil {
		rep.Err = fmt.Errorf("fetch candles: %w", err)
		return rep
	}
	features, err := market.ComputeFeatures(candles)
	if err != nil {
		rep.Err = fmt.Errorf("features: %w", err)
		return rep
	}
	snap := market.LatestSnapshot(sym, e.timeframe, features, e.now())
	if err := snap.Validate(); err != nil {
		rep.Err = err
		return rep
	}
	prompt, err := e.prompts.Build(sym, e.timeframe, snap)
	if err != nil {
		rep.Err = fmt.Errorf("prompt: %w", err)
		return rep
	}

	round := e.decider.Decide(ctx, sym, prompt)
	rep.TraceID = round.TraceID
	if !round.HasConsensus {
		logger.Infof("symbol %s trace=%s no consensus %s", sym, round.TraceID, round.Breakdown)
		return rep
	}
	consensus := round.Consensus
	rep.Consensus = &consensus
	logger.Infof("symbol %s trace=%s consensus %s conf=%.2f %s",
		sym, round.TraceID, consensus.Action, consensus.Confidence, round.Breakdown)

	res, skip, err := e.executor.Execute(ctx, execution.Order{
		Symbol:       sym,
		Action:       consensus.Action,
		Price:        snap.Close(),
		StopFraction: consensus.StopFraction,
		TakeFraction: consensus.TakeFraction,
	})
	rep.Result, rep.Skip, rep.Err = res, skip, err
	if skip != execution.SkipNone {
		logger.Infof("symbol %s trace=%s execution skipped: %s", sym, round.TraceID, skip)
	}
	return rep
}

// Run drives RunOnce with the configured scheduler until ctx ends. Repeated
// all-symbol failures open the breaker and pause cycles for the cooldown.
func (e *Engine) Run(ctx context.Context) error {
	if len(e.symbols) == 0 {
		logger.Warnf("engine: no symbols configured")
		<-ctx.Done()
		return ctx.Err()
	}
	if e.sched == nil {
		return fmt.Errorf("engine: scheduler is required")
	}
	logger.Infof("engine started symbols=%s timeframe=%s", strings.Join(e.symbols, ","), e.timeframe)
	e.sched.Run(ctx, e.tick)
	return ctx.Err()
}

func (e *Engine) tick(ctx context.Context) {
	if !e.breaker.Allow() {
		logger.Warnf("engine: circuit breaker open, skipping cycle")
		return
	}
	report, err := e.RunOnce(ctx)
	if ctx.Err() != nil {
		return
	}
	logger.InfoBlock(report.String())
	if err != nil {
		logger.Errorf("engine: cycle failed: %v", err)
		e.breaker.RecordFailure()
		return
	}
	e.breaker.RecordSuccess()
}
