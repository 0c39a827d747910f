package decision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	id       string
	disabled bool
	timeout  time.Duration
	delay    time.Duration
	decision Decision
	err      error
	panicMsg string
	// ignoreCtx simulates a client that does not honour cancellation.
	ignoreCtx bool
}

func (f *fakeSource) ID() string             { return f.id }
func (f *fakeSource) Enabled() bool          { return !f.disabled }
func (f *fakeSource) Timeout() time.Duration { return f.timeout }

func (f *fakeSource) Decide(ctx context.Context, _ string) (Decision, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.delay > 0 {
		if f.ignoreCtx {
			time.Sleep(f.delay)
		} else {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return Decision{}, ctx.Err()
			}
		}
	}
	return f.decision, f.err
}

func TestDispatcher_ArrivalOrderAndFailures(t *testing.T) {
	sources := []Source{
		&fakeSource{id: "slow", delay: 60 * time.Millisecond, decision: Decision{Action: Buy, Confidence: 0.9}},
		&fakeSource{id: "fast", decision: Decision{Action: Sell, Confidence: 0.7}},
		&fakeSource{id: "broken", delay: 20 * time.Millisecond, err: errors.New("connection refused")},
		&fakeSource{id: "off", disabled: true},
		nil,
	}
	outs := NewDispatcher(0).Dispatch(context.Background(), "prompt", sources)
	require.Len(t, outs, 3)

	assert.Equal(t, "fast", outs[0].SourceID)
	assert.Equal(t, "broken", outs[1].SourceID)
	assert.Equal(t, "slow", outs[2].SourceID)
	for i, out := range outs {
		assert.Equal(t, i, out.Seq)
	}
	assert.Equal(t, "slow", outs[2].Decision.SourceID, "source id is stamped on the decision")

	var se *SourceError
	require.ErrorAs(t, outs[1].Err, &se)
	assert.Equal(t, "broken", se.SourceID)
}

func TestDispatcher_PerSourceTimeout(t *testing.T) {
	sources := []Source{
		&fakeSource{id: "hung", timeout: 20 * time.Millisecond, delay: time.Second, ignoreCtx: true},
		&fakeSource{id: "ok", timeout: time.Second, decision: Decision{Action: Buy, Confidence: 1}},
	}
	start := time.Now()
	outs := NewDispatcher(0).Dispatch(context.Background(), "p", sources)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	require.Len(t, outs, 2)

	byID := map[string]Outcome{}
	for _, o := range outs {
		byID[o.SourceID] = o
	}
	assert.ErrorIs(t, byID["hung"].Err, context.DeadlineExceeded)
	assert.False(t, IsDecodeError(byID["hung"].Err))
	assert.True(t, byID["ok"].OK())
}

func TestDispatcher_RoundDeadline(t *testing.T) {
	sources := []Source{
		&fakeSource{id: "a", delay: time.Second},
		&fakeSource{id: "b", delay: time.Second},
		&fakeSource{id: "c", decision: Decision{Action: Hold}},
	}
	start := time.Now()
	outs := NewDispatcher(30*time.Millisecond).Dispatch(context.Background(), "p", sources)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	require.Len(t, outs, 3)
	assert.Equal(t, "c", outs[0].SourceID)
	assert.Error(t, outs[1].Err)
	assert.Error(t, outs[2].Err)
}

func TestDispatcher_PanicRecovered(t *testing.T) {
	outs := NewDispatcher(0).Dispatch(context.Background(), "p", []Source{&fakeSource{id: "p", panicMsg: "nil map"}})
	require.Len(t, outs, 1)
	var se *SourceError
	require.ErrorAs(t, outs[0].Err, &se)
	assert.Contains(t, se.Error(), "panic")
}

func TestDispatcher_DecodeErrorKeepsKind(t *testing.T) {
	src := &fakeSource{id: "d", err: &DecodeError{SourceID: "d", Err: errors.New("bad json")}}
	outs := NewDispatcher(0).Dispatch(context.Background(), "p", []Source{src})
	require.Len(t, outs, 1)
	assert.True(t, IsDecodeError(outs[0].Err))
}

func TestDispatcher_NoSources(t *testing.T) {
	assert.Empty(t, NewDispatcher(0).Dispatch(context.Background(), "p", nil))
}

type recordingObserver struct {
	mu     sync.Mutex
	rounds []Round
}

func (r *recordingObserver) AfterRound(_ context.Context, round Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, round)
	return errors.New("observer errors are only logged")
}

func TestEnsemble_Decide(t *testing.T) {
	obs := &recordingObserver{}
	ens := NewEnsemble([]Source{
		&fakeSource{id: "a", decision: Decision{Action: Buy, Confidence: 0.8, Reason: "x"}},
		&fakeSource{id: "b", decision: Decision{Action: Buy, Confidence: 0.6, Reason: "y"}},
		&fakeSource{id: "c", err: errors.New("down")},
	}, EnsemblePolicy{MinConfidence: 0.5, RequiredAgreement: 2}, obs)

	round := ens.Decide(context.Background(), "BTC/USDT", "prompt")
	require.True(t, round.HasConsensus)
	assert.Equal(t, Buy, round.Consensus.Action)
	assert.InDelta(t, 0.7, round.Consensus.Confidence, 1e-9)
	assert.NotEmpty(t, round.TraceID)
	assert.Equal(t, "BTC/USDT", round.Symbol)
	assert.Len(t, round.Outcomes, 3)
	assert.Equal(t, TieBreakConfidence, ens.Policy().TieBreak)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ens.SourceIDs())

	require.Len(t, obs.rounds, 1)
	assert.Equal(t, round.TraceID, obs.rounds[0].TraceID)
}
