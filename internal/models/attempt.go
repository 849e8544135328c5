package models

import "time"

// AttemptRecord is the per-identity failed-login state held by the attempt ledger
type AttemptRecord struct {
	FailureCount  int       `json:"failure_count"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
}

// LockoutDecision is the outcome of a login throttle check.
// MinutesRemaining is only set when Allowed is false.
type LockoutDecision struct {
	Allowed          bool `json:"allowed"`
	MinutesRemaining int  `json:"minutes_remaining,omitempty"`
}
