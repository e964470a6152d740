// Package pipeline orchestrates candidate publication: compliance
// gating, pricing, and concurrent per-platform upload with bounded
// retry, with every terminal transition recorded in the audit ledger.
package pipeline

import (
	"trendmint/internal/models"
	"trendmint/internal/platform"
	"trendmint/internal/pricing"
)

// State is a candidate or per-target lifecycle state.
type State string

const (
	StatePending    State = "PENDING"
	StateVerifying  State = "VERIFYING"
	StateRejected   State = "REJECTED"
	StatePricing    State = "PRICING"
	StatePublishing State = "PUBLISHING"
	StateRetryWait  State = "RETRY_WAIT"
	StatePublished  State = "PUBLISHED"
	StateFailed     State = "FAILED"
)

// transitions is the legal state graph. REJECTED, PUBLISHED and FAILED
// are terminal.
var transitions = map[State][]State{
	StatePending:    {StateVerifying},
	StateVerifying:  {StateRejected, StatePricing, StateFailed},
	StatePricing:    {StatePublishing},
	StatePublishing: {StatePublished, StateRetryWait, StateFailed},
	StateRetryWait:  {StatePublishing},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func Terminal(s State) bool {
	return len(transitions[s]) == 0
}

// TargetResult is the final disposition of one (candidate, target)
// publication attempt series.
type TargetResult struct {
	Target   string               `json:"target"`
	State    State                `json:"state"`
	Attempts int                  `json:"attempts"`
	Ref      *platform.PlatformRef `json:"ref,omitempty"`
	Skipped  bool                 `json:"skipped,omitempty"` // already published in a prior run
	Err      string               `json:"error,omitempty"`
}

// Outcome is the final disposition of one candidate.
type Outcome struct {
	Candidate models.AssetCandidate `json:"candidate"`
	State     State                 `json:"state"`
	Quote     *pricing.PriceQuote   `json:"quote,omitempty"`
	Targets   []TargetResult        `json:"targets,omitempty"`
	Reason    string                `json:"reason,omitempty"`
}
