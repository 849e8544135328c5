package integration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TestIdentity generates a unique login identity using timestamp
func TestIdentity(suffix string) string {
	return fmt.Sprintf("test-%d-%s@example.com", time.Now().UnixNano(), suffix)
}

// NewSubscriberID returns a fresh subscriber id
func NewSubscriberID() string {
	return uuid.NewString()
}
