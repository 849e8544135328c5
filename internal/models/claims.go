package models

import "github.com/golang-jwt/jwt/v5"

// SubscriberClaims are the claims of a Supabase access token.
// The subject claim carries the subscriber id.
type SubscriberClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
