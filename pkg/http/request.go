package http

import (
	"net"
	"net/http"
	"strings"
)

// ClientIPResolver extracts the real client IP address from a request.
// Forwarding headers are honoured only when the direct peer is a trusted
// proxy, so clients cannot spoof their address to dodge per-IP limits.
type ClientIPResolver struct {
	trusted []*net.IPNet
}

// NewClientIPResolver parses trustedProxies as CIDR ranges. Invalid ranges are skipped.
func NewClientIPResolver(trustedProxies []string) *ClientIPResolver {
	c := &ClientIPResolver{}
	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			continue
		}
		c.trusted = append(c.trusted, ipNet)
	}
	return c
}

// ClientIP resolves the client address:
// X-Forwarded-For then X-Real-IP from a trusted proxy, else RemoteAddr.
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	remoteIP := remoteAddr(r)

	if c != nil && c.isTrusted(remoteIP) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, ip := range strings.Split(xff, ",") {
				ip = strings.TrimSpace(ip)
				if net.ParseIP(ip) != nil {
					return ip
				}
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
			return xri
		}
	}

	return remoteIP
}

// RateLimitKey has the httprate.KeyFunc signature
func (c *ClientIPResolver) RateLimitKey(r *http.Request) (string, error) {
	return c.ClientIP(r), nil
}

func (c *ClientIPResolver) isTrusted(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, ipNet := range c.trusted {
		if ipNet.Contains(parsed) {
			return true
		}
	}
	return false
}

// remoteAddr strips the port from RemoteAddr
func remoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
