package services

import (
	"log/slog"
	"time"

	"github.com/BradenHooton/pmcoach/internal/metrics"
	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/BradenHooton/pmcoach/internal/repositories"
	pkglogger "github.com/BradenHooton/pmcoach/pkg/logger"
	"github.com/jonboulle/clockwork"
)

// Default throttle policy
const (
	DefaultMaxAttempts     = 5
	DefaultLockoutDuration = 15 * time.Minute
)

// ThrottleConfig holds the login lockout policy
type ThrottleConfig struct {
	MaxAttempts     int
	LockoutDuration time.Duration
}

// DefaultThrottleConfig returns the standard 5 failures / 15 minutes policy
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		MaxAttempts:     DefaultMaxAttempts,
		LockoutDuration: DefaultLockoutDuration,
	}
}

// LoginThrottle decides whether a login attempt for an identity may proceed.
// It never verifies credentials: callers report failures and successes.
type LoginThrottle struct {
	ledger *repositories.AttemptLedger
	config ThrottleConfig
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewLoginThrottle creates a new LoginThrottle over ledger
func NewLoginThrottle(ledger *repositories.AttemptLedger, config ThrottleConfig, clock clockwork.Clock, logger *slog.Logger) *LoginThrottle {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.LockoutDuration <= 0 {
		config.LockoutDuration = DefaultLockoutDuration
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LoginThrottle{
		ledger: ledger,
		config: config,
		clock:  clock,
		logger: logger,
	}
}

// CheckAllowed reports whether identity may attempt to log in now.
// An expired lockout window resets the failure count as a side effect.
func (t *LoginThrottle) CheckAllowed(identity string) models.LockoutDecision {
	decision := models.LockoutDecision{Allowed: true}
	outcome := "allowed"
	failures := 0
	now := t.clock.Now()

	t.ledger.WithRecord(identity, func(rec *models.AttemptRecord) {
		if rec == nil {
			return
		}

		elapsed := now.Sub(rec.LastAttemptAt)
		if elapsed > t.config.LockoutDuration {
			rec.FailureCount = 0
			outcome = "expired"
			return
		}

		if rec.FailureCount >= t.config.MaxAttempts {
			failures = rec.FailureCount
			decision = models.LockoutDecision{
				Allowed:          false,
				MinutesRemaining: minutesRemaining(t.config.LockoutDuration - elapsed),
			}
			outcome = "denied"
		}
	})

	metrics.LoginDecisions.WithLabelValues(outcome).Inc()
	if !decision.Allowed {
		t.logger.Warn("login attempt throttled",
			slog.String("identity", pkglogger.SanitizedIdentity(identity)),
			slog.Int("failed_attempts", failures),
			slog.Int("minutes_remaining", decision.MinutesRemaining))
	}

	return decision
}

// RecordFailure counts a failed credential check for identity
func (t *LoginThrottle) RecordFailure(identity string) {
	rec := t.ledger.RecordFailure(identity)
	metrics.LoginFailuresRecorded.Inc()

	if rec.FailureCount == t.config.MaxAttempts {
		t.logger.Warn("identity locked out",
			slog.String("identity", pkglogger.SanitizedIdentity(identity)),
			slog.Duration("lockout_duration", t.config.LockoutDuration))
	}
}

// Reset clears the failure history for identity after a successful login
func (t *LoginThrottle) Reset(identity string) {
	t.ledger.Reset(identity)
}

// Config returns the active lockout policy
func (t *LoginThrottle) Config() ThrottleConfig {
	return t.config
}

// minutesRemaining rounds the remaining lockout up to whole minutes, never below one
func minutesRemaining(remaining time.Duration) int {
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
