package decision

import (
	"fmt"
	"sort"
	"strings"

	"quorumtrader/internal/logger"
)

const reasonSeparator = " | "

// ActionVotes is the tally of one action among actionable decisions.
type ActionVotes struct {
	Action        Action  `json:"action"`
	Count         int     `json:"count"`
	ConfidenceSum float64 `json:"confidence_sum"`
	// firstSeen is the index of the first actionable vote for Action.
	firstSeen int
}

// VoteBreakdown summarises a round for logs and the audit trail.
type VoteBreakdown struct {
	Received   int           `json:"received"`
	Failed     int           `json:"failed"`
	Actionable int           `json:"actionable"`
	Votes      []ActionVotes `json:"votes"`
	Winner     Action        `json:"winner,omitempty"`
}

func (b VoteBreakdown) String() string {
	parts := make([]string, 0, len(b.Votes))
	for _, v := range b.Votes {
		parts = append(parts, fmt.Sprintf("%s=%d(%.2f)", v.Action, v.Count, v.ConfidenceSum))
	}
	return fmt.Sprintf("received=%d failed=%d actionable=%d votes=[%s]",
		b.Received, b.Failed, b.Actionable, strings.Join(parts, " "))
}

// Aggregate applies the quorum rule to outcomes listed in arrival order.
// It returns false when no action reaches policy.RequiredAgreement.
func Aggregate(outcomes []Outcome, policy EnsemblePolicy) (Decision, VoteBreakdown, bool) {
	bd := VoteBreakdown{Received: len(outcomes)}
	actionable := make([]Decision, 0, len(outcomes))
	for _, out := range outcomes {
		if !out.OK() {
			bd.Failed++
			continue
		}
		if out.Decision.Actionable(policy.MinConfidence) {
			actionable = append(actionable, out.Decision)
		}
	}
	bd.Actionable = len(actionable)
	if len(actionable) == 0 {
		logger.Infof("no actionable decisions (%s)", bd)
		return Decision{}, bd, false
	}

	tally := make(map[Action]*ActionVotes)
	for i, d := range actionable {
		v, ok := tally[d.Action]
		if !ok {
			v = &ActionVotes{Action: d.Action, firstSeen: i}
			tally[d.Action] = v
		}
		v.Count++
		v.ConfidenceSum += d.Confidence
	}
	for _, v := range tally {
		bd.Votes = append(bd.Votes, *v)
	}
	sort.Slice(bd.Votes, func(i, j int) bool { return bd.Votes[i].Action < bd.Votes[j].Action })

	best := pickWinner(bd.Votes, policy.TieBreak)
	if best.Count < policy.RequiredAgreement {
		logger.Infof("consensus not reached: need %d (%s)", policy.RequiredAgreement, bd)
		return Decision{}, bd, false
	}
	bd.Winner = best.Action

	consensus := mergeSubset(actionable, best.Action)
	logger.Infof("ensemble consensus %s conf=%.2f votes=%d (%s)", consensus.Action, consensus.Confidence, best.Count, bd)
	return consensus, bd, true
}

func pickWinner(votes []ActionVotes, rule TieBreak) ActionVotes {
	best := votes[0]
	for _, v := range votes[1:] {
		if v.Count != best.Count {
			if v.Count > best.Count {
				best = v
			}
			continue
		}
		switch rule {
		case TieBreakArrival:
			if v.firstSeen < best.firstSeen {
				best = v
			}
		default:
			// votes is sorted by name, so on equal sums the earlier entry stays.
			if v.ConfidenceSum > best.ConfidenceSum {
				best = v
			}
		}
	}
	return best
}

// mergeSubset averages the winning decisions and joins their reasons in arrival order.
func mergeSubset(actionable []Decision, action Action) Decision {
	var conf, stop, take float64
	reasons := make([]string, 0, len(actionable))
	n := 0
	for _, d := range actionable {
		if d.Action != action {
			continue
		}
		n++
		conf += d.Confidence
		stop += d.StopFraction
		take += d.TakeFraction
		reasons = append(reasons, d.Reason)
	}
	k := float64(n)
	return Decision{
		Action:       action,
		Confidence:   conf / k,
		StopFraction: stop / k,
		TakeFraction: take / k,
		Reason:       strings.Join(reasons, reasonSeparator),
		SourceID:     EnsembleSourceID,
	}
}
