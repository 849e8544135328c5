package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActivityType is the kind of governed action an event records
type ActivityType string

// Activity types
const (
	ActivityPageView            ActivityType = "page_view"
	ActivityMessageSent         ActivityType = "message_sent"
	ActivitySubscriptionChanged ActivityType = "subscription_changed"
	ActivityFeatureUsed         ActivityType = "feature_used"
	ActivityLogin               ActivityType = "login"
	ActivitySignup              ActivityType = "signup"
)

var activityTypes = map[ActivityType]struct{}{
	ActivityPageView:            {},
	ActivityMessageSent:         {},
	ActivitySubscriptionChanged: {},
	ActivityFeatureUsed:         {},
	ActivityLogin:               {},
	ActivitySignup:              {},
}

// Valid reports whether t is one of the known activity types
func (t ActivityType) Valid() bool {
	_, ok := activityTypes[t]
	return ok
}

// ParseActivityType converts a raw string into a known ActivityType
func ParseActivityType(raw string) (ActivityType, error) {
	t := ActivityType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidActivityType, raw)
	}
	return t, nil
}

// Detail keys added by the recorder
const (
	DetailPlanID            = "plan_id"
	DetailCapturedAt        = "captured_at"
	DetailRemainingBefore   = "remaining_before"
	DetailLowBalanceWarning = "low_balance_warning"
)

// ActivityEvent is an immutable record of a governed action
type ActivityEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	ActorID      string          `db:"actor_id" json:"actor_id"`
	ActivityType ActivityType    `db:"activity_type" json:"activity_type"`
	Details      ActivityDetails `db:"details" json:"details"`
	PlanID       string          `db:"plan_id" json:"plan_id"`
	OccurredAt   time.Time       `db:"occurred_at" json:"occurred_at"`
}

// ActivityDetails holds opaque, caller-supplied context for an activity event
type ActivityDetails map[string]interface{}

// Clone returns a shallow copy so enrichment never mutates the caller's map
func (d ActivityDetails) Clone() ActivityDetails {
	out := make(ActivityDetails, len(d)+2)
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Scan implements sql.Scanner for JSONB and TEXT columns
func (d *ActivityDetails) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*d = make(ActivityDetails)
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	if m == nil {
		m = make(map[string]interface{})
	}
	*d = ActivityDetails(m)
	return nil
}

// Value implements driver.Valuer. Empty details are stored as an empty object.
func (d ActivityDetails) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]interface{}(d))
}
