package entity

import "time"

// AttemptOutcome classifies a single source adapter invocation.
type AttemptOutcome string

const (
	OutcomeSuccess AttemptOutcome = "success"
	OutcomeEmpty   AttemptOutcome = "empty"
	OutcomeTimeout AttemptOutcome = "timeout"
	OutcomeError   AttemptOutcome = "error"
)

// FetchAttempt records one adapter call made by the fallback cascade.
type FetchAttempt struct {
	Network   NetworkID      `json:"network"`
	Operation Operation      `json:"operation"`
	Source    string         `json:"source"`
	StartedAt time.Time      `json:"startedAt"`
	Latency   time.Duration  `json:"latency"`
	Outcome   AttemptOutcome `json:"outcome"`
	Error     string         `json:"error,omitempty"`
}
