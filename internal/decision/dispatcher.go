package decision

import (
	"context"
	"fmt"
	"time"

	"quorumtrader/internal/logger"

	"golang.org/x/sync/errgroup"
)

// Source produces one Decision per prompt. Implementations must honour ctx.
type Source interface {
	ID() string
	Enabled() bool
	Timeout() time.Duration
	Decide(ctx context.Context, prompt string) (Decision, error)
}

// Outcome is the result of one source call within a round.
type Outcome struct {
	// Seq is the 0-based arrival index within the round.
	Seq      int
	SourceID string
	Decision Decision
	Err      error
	Elapsed  time.Duration
}

func (o Outcome) OK() bool { return o.Err == nil }

// Dispatcher fans a prompt out to every enabled source and collects the
// results in arrival order. A failing source never cancels its siblings.
type Dispatcher struct {
	RoundTimeout time.Duration
	now          func() time.Time
}

func NewDispatcher(roundTimeout time.Duration) *Dispatcher {
	return &Dispatcher{RoundTimeout: roundTimeout, now: time.Now}
}

// Dispatch blocks until every source has answered, failed or timed out.
func (d *Dispatcher) Dispatch(ctx context.Context, prompt string, sources []Source) []Outcome {
	enabled := make([]Source, 0, len(sources))
	for _, src := range sources {
		if src != nil && src.Enabled() {
			enabled = append(enabled, src)
		}
	}
	if len(enabled) == 0 {
		return nil
	}

	roundCtx := ctx
	if d.RoundTimeout > 0 {
		var cancel context.CancelFunc
		roundCtx, cancel = context.WithTimeout(ctx, d.RoundTimeout)
		defer cancel()
	}

	results := make(chan Outcome, len(enabled))
	var eg errgroup.Group
	for _, src := range enabled {
		src := src
		eg.Go(func() error {
			results <- d.call(roundCtx, src, prompt)
			return nil
		})
	}
	go func() {
		_ = eg.Wait()
		close(results)
	}()

	outs := make([]Outcome, 0, len(enabled))
	for out := range results {
		out.Seq = len(outs)
		if out.Err != nil {
			logFailure(out.SourceID, out.Elapsed, out.Err)
		} else {
			logger.Debugf("source %s answered %s conf=%.2f elapsed=%s",
				out.SourceID, out.Decision.Action, out.Decision.Confidence, out.Elapsed)
		}
		outs = append(outs, out)
	}
	return outs
}

// call bounds one source by its own timeout even if Decide ignores ctx.
func (d *Dispatcher) call(parent context.Context, src Source, prompt string) Outcome {
	id := src.ID()
	callCtx := parent
	if timeout := src.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	start := d.now()
	done := make(chan Outcome, 1)
	go func() { done <- invokeSafe(callCtx, src, prompt) }()

	var out Outcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		out = Outcome{Err: &SourceError{SourceID: id, Err: callCtx.Err()}}
	}
	out.SourceID = id
	out.Elapsed = d.now().Sub(start).Truncate(time.Millisecond)
	if out.Err != nil {
		out.Err = classify(id, out.Err)
		out.Decision = Decision{}
	} else {
		out.Decision.SourceID = id
	}
	return out
}

func invokeSafe(ctx context.Context, src Source, prompt string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Err: &SourceError{SourceID: src.ID(), Err: fmt.Errorf("panic: %v", r)}}
		}
	}()
	dec, err := src.Decide(ctx, prompt)
	return Outcome{Decision: dec, Err: err}
}
