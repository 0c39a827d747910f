package decision

import (
	"context"
	"time"

	"quorumtrader/internal/logger"

	"github.com/google/uuid"
)

// Round is everything one aggregation produced.
type Round struct {
	TraceID      string
	Symbol       string
	StartedAt    time.Time
	Outcomes     []Outcome
	Consensus    Decision
	HasConsensus bool
	Breakdown    VoteBreakdown
}

// RoundObserver receives every finished round, e.g. to persist it.
type RoundObserver interface {
	AfterRound(ctx context.Context, round Round) error
}

// Ensemble is the aggregator: fan-out, fan-in, quorum vote.
type Ensemble struct {
	dispatcher *Dispatcher
	sources    []Source
	policy     EnsemblePolicy
	observers  []RoundObserver
	now        func() time.Time
}

func NewEnsemble(sources []Source, policy EnsemblePolicy, observers ...RoundObserver) *Ensemble {
	if policy.TieBreak == "" {
		policy.TieBreak = TieBreakConfidence
	}
	return &Ensemble{
		dispatcher: NewDispatcher(policy.RoundTimeout),
		sources:    sources,
		policy:     policy,
		observers:  observers,
		now:        time.Now,
	}
}

func (e *Ensemble) Policy() EnsemblePolicy { return e.policy }

func (e *Ensemble) SourceIDs() []string {
	ids := make([]string, 0, len(e.sources))
	for _, s := range e.sources {
		ids = append(ids, s.ID())
	}
	return ids
}

// Decide runs one round. An empty or all-failed round is simply no consensus.
func (e *Ensemble) Decide(ctx context.Context, symbol, prompt string) Round {
	round := Round{
		TraceID:   uuid.NewString(),
		Symbol:    symbol,
		StartedAt: e.now().UTC(),
	}
	round.Outcomes = e.dispatcher.Dispatch(WithSymbol(ctx, symbol), prompt, e.sources)
	round.Consensus, round.Breakdown, round.HasConsensus = Aggregate(round.Outcomes, e.policy)

	for _, obs := range e.observers {
		if obs == nil {
			continue
		}
		if err := obs.AfterRound(ctx, round); err != nil {
			logger.Warnf("round %s observer failed: %v", round.TraceID, err)
		}
	}
	return round
}
