package repositories

import (
	"sync"
	"time"

	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/cespare/xxhash/v2"
	"github.com/jonboulle/clockwork"
)

// ledgerShards is the number of lock stripes. Identities hash onto a stripe so
// operations on unrelated identities rarely share a lock.
const ledgerShards = 64

type ledgerShard struct {
	mu      sync.Mutex
	records map[string]*models.AttemptRecord
}

// AttemptLedger is the in-memory record of failed login attempts keyed by identity.
// It is safe for concurrent use; every operation on one identity is serialized.
// State is process-local and is lost on restart.
type AttemptLedger struct {
	clock  clockwork.Clock
	shards [ledgerShards]ledgerShard
}

// NewAttemptLedger creates an empty AttemptLedger
func NewAttemptLedger(clock clockwork.Clock) *AttemptLedger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	l := &AttemptLedger{clock: clock}
	for i := range l.shards {
		l.shards[i].records = make(map[string]*models.AttemptRecord)
	}
	return l
}

func (l *AttemptLedger) shard(identity string) *ledgerShard {
	return &l.shards[xxhash.Sum64String(identity)%ledgerShards]
}

// RecordFailure increments the failure count for identity, creating the record
// if absent, and stamps it with the current time
func (l *AttemptLedger) RecordFailure(identity string) models.AttemptRecord {
	s := l.shard(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identity]
	if !ok {
		rec = &models.AttemptRecord{}
		s.records[identity] = rec
	}
	rec.FailureCount++
	rec.LastAttemptAt = l.clock.Now()
	return *rec
}

// Reset removes the record for identity
func (l *AttemptLedger) Reset(identity string) {
	s := l.shard(identity)
	s.mu.Lock()
	delete(s.records, identity)
	s.mu.Unlock()
}

// WithRecord runs fn while holding the identity's lock. rec is nil when no
// record exists. fn may mutate rec in place; it must not call back into the ledger.
func (l *AttemptLedger) WithRecord(identity string, fn func(rec *models.AttemptRecord)) {
	s := l.shard(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.records[identity])
}

// Get returns a copy of the record for identity
func (l *AttemptLedger) Get(identity string) (models.AttemptRecord, bool) {
	s := l.shard(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identity]
	if !ok {
		return models.AttemptRecord{}, false
	}
	return *rec, true
}

// Prune removes records whose last attempt is before cutoff and returns how many were removed
func (l *AttemptLedger) Prune(cutoff time.Time) int {
	removed := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		for identity, rec := range s.records {
			if rec.LastAttemptAt.Before(cutoff) {
				delete(s.records, identity)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked identities
func (l *AttemptLedger) Len() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		n += len(s.records)
		s.mu.Unlock()
	}
	return n
}
