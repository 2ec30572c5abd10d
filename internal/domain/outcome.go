package domain

import "time"

// RoundStats describes one estimation round of a rejection policy.
type RoundStats struct {
	// Round is the 1-based round number.
	Round int `json:"round"`

	// Candidates is the number of observations the round was restricted to.
	Candidates int `json:"candidates"`

	// Eligible is the number of observations that received a z-score.
	Eligible int `json:"eligible"`

	// Groups is the number of groups examined.
	Groups int `json:"groups"`

	// Outliers is the number of observations flagged in this round.
	Outliers int `json:"outliers"`

	// Queued is the number of observations carried into the next round.
	Queued int `json:"queued"`
}

// Outcome is the result of running a rejection policy against an observation set.
// Indices refer to rows of the set the policy was executed on.
type Outcome struct {
	// Outliers holds the indices of every observation flagged, in ascending order.
	Outliers []int `json:"outliers"`

	// Ambiguous holds indices that were still queued for re-examination when
	// the policy stopped. It is empty unless a round limit was reached.
	Ambiguous []int `json:"ambiguous,omitempty"`

	// Rounds holds per-round statistics in execution order.
	Rounds []RoundStats `json:"rounds"`
}

// Summary is the informational report of a driver run, handed to logging and
// metrics collaborators instead of being printed by the algorithm.
type Summary struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// Method is the rejection method that was applied.
	Method Method `json:"method"`

	// ZMax is the rejection threshold that was applied.
	ZMax float64 `json:"zmax"`

	// Observations is the size of the observation set.
	Observations int `json:"observations"`

	// Outliers is the number of observations flagged by this run.
	Outliers int `json:"outliers"`

	// Datasets is the number of distinct datasets in the observation set.
	Datasets int `json:"datasets"`

	// Combined reports whether rejection was performed across several datasets.
	Combined bool `json:"combined"`

	// Rounds is the number of estimation rounds executed.
	Rounds int `json:"rounds"`

	// Duration is the wall time spent in the policy.
	Duration time.Duration `json:"duration"`

	// Outcome is the full policy result.
	Outcome Outcome `json:"outcome"`
}
