package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@*******.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// Keep only the TLD readable
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizedIdentity masks a throttle identity. Email identities keep their
// SanitizedEmail shape; anything else keeps only its first character.
func SanitizedIdentity(identity string) string {
	if strings.Count(identity, "@") == 1 {
		return SanitizedEmail(identity)
	}
	if len(identity) <= 1 {
		return "[redacted]"
	}
	return string(identity[0]) + strings.Repeat("*", len(identity)-1)
}

// SanitizeQueryString reports whether a raw query string carries sensitive
// parameters and should be redacted entirely
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password", "token", "secret", "api_key", "apikey",
		"email", "identity", "auth", "key",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
