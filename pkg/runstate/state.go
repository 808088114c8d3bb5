package runstate

import "time"

// Outcome classifies a finished run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeEmpty   Outcome = "empty"
	OutcomeFailed  Outcome = "failed"
)

// State is the record kept for the last run of a search.
type State struct {
	RunID      string    `json:"run_id"`
	Outcome    Outcome   `json:"outcome"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error,omitempty"`
	Orders     int       `json:"orders"`
	Rows       int       `json:"rows"`
	Skipped    int       `json:"skipped"`
	Partitions []int     `json:"partitions,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns how long the run took.
func (s *State) Duration() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// IsStale returns true if the run finished longer than maxAge ago.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.FinishedAt) > maxAge
}
