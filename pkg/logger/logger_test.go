package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: "info", Format: "json"}, &buf)

	log.Info("wiring", slog.String("internal_key", "s3cr3t"), slog.String("plan_id", "pro"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[REDACTED]", entry["internal_key"])
	assert.Equal(t, "pro", entry["plan_id"])
}

func TestNewWithWriter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: "warn"}, &buf)

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestSanitizedEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", SanitizedEmail("a@x.com"))
	assert.Equal(t, "j***@*******.com", SanitizedEmail("jane@example.com"))
	assert.Equal(t, "[invalid-email]", SanitizedEmail("not-an-email"))
}

func TestSanitizedIdentity(t *testing.T) {
	assert.Equal(t, "j***@*******.com", SanitizedIdentity("jane@example.com"))
	assert.Equal(t, "u*****", SanitizedIdentity("user42"))
	assert.Equal(t, "[redacted]", SanitizedIdentity("x"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("identity=a%40x.com"))
	assert.True(t, SanitizeQueryString("Token=abc"))
	assert.False(t, SanitizeQueryString("limit=20&offset=40"))
}
