package auth

import (
	"errors"
	"fmt"

	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenVerifier validates Supabase access tokens. Tokens are issued by
// Supabase Auth; this service only verifies them.
type TokenVerifier struct {
	secret   []byte
	audience string
	parser   *jwt.Parser
}

// NewTokenVerifier creates a TokenVerifier for HS256 tokens signed with secret
func NewTokenVerifier(secret, audience string) *TokenVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &TokenVerifier{
		secret:   []byte(secret),
		audience: audience,
		parser:   jwt.NewParser(opts...),
	}
}

// ValidateToken verifies tokenString and returns its claims. The subject
// must be a UUID since it is used as the subscriber id.
func (v *TokenVerifier) ValidateToken(tokenString string) (*models.SubscriberClaims, error) {
	claims := &models.SubscriberClaims{}

	token, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", models.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject is not a subscriber id", models.ErrUnauthorized)
	}

	return claims, nil
}
