package models

// Subscription is the read-only view of a subscriber's plan and message usage.
// A nil MessageLimit means the plan is unlimited.
type Subscription struct {
	SubscriberID string `db:"subscriber_id" json:"subscriber_id"`
	PlanID       string `db:"plan_id" json:"plan_id"`
	MessageLimit *int   `db:"message_limit" json:"message_limit,omitempty"`
	MessagesUsed int    `db:"messages_used" json:"messages_used"`
}

// Allowance is the number of messages a subscriber may still send
type Allowance struct {
	Unlimited bool
	Messages  int
}

// DetailValue renders the allowance for activity details and API responses
func (a Allowance) DetailValue() interface{} {
	if a.Unlimited {
		return "unlimited"
	}
	return a.Messages
}
