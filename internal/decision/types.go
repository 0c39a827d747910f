package decision

import (
	"strings"
	"time"
)

// Action 是单个决策源给出的交易方向。
type Action string

const (
	Hold Action = "hold"
	Buy  Action = "buy"
	Sell Action = "sell"
)

// ParseAction maps free text to an Action. Anything unrecognised is Hold.
func ParseAction(raw string) Action {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "long":
		return Buy
	case "sell", "short":
		return Sell
	default:
		return Hold
	}
}

// Opposite returns the closing side of a position opened with a.
func (a Action) Opposite() Action {
	switch a {
	case Buy:
		return Sell
	case Sell:
		return Buy
	default:
		return Hold
	}
}

func (a Action) String() string { return string(a) }

// EnsembleSourceID marks a Decision synthesised by the vote.
const EnsembleSourceID = "ensemble"

// Decision is one opinion. Confidence is not range-checked here.
type Decision struct {
	Action       Action  `json:"action"`
	Confidence   float64 `json:"confidence"`
	StopFraction float64 `json:"stop_pct"`
	TakeFraction float64 `json:"take_pct"`
	Reason       string  `json:"reason"`
	SourceID     string  `json:"source_id"`
}

// Actionable reports whether d may count as a vote: Hold never does.
func (d Decision) Actionable(minConfidence float64) bool {
	return d.Action != Hold && d.Confidence >= minConfidence
}

type TieBreak string

const (
	// TieBreakConfidence picks the tied action with the highest confidence sum,
	// then the lexicographically smallest action name.
	TieBreakConfidence TieBreak = "confidence"
	// TieBreakArrival picks the tied action whose first vote arrived earliest.
	TieBreakArrival TieBreak = "arrival"
)

// EnsemblePolicy is read-only after construction.
type EnsemblePolicy struct {
	MinConfidence     float64
	RequiredAgreement int
	TieBreak          TieBreak
	// RoundTimeout bounds a whole fan-out round; zero leaves only per-source timeouts.
	RoundTimeout time.Duration
}
