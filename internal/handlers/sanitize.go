package handlers

import (
	"html"
	"strings"

	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

const (
	maxDetailDepth       = 4
	maxDetailStringBytes = 1024
)

var detailPolicy = bluemonday.StrictPolicy()

// reservedDetailKeys are stamped by the recorder and never taken from a client
var reservedDetailKeys = map[string]bool{
	models.DetailPlanID:            true,
	models.DetailCapturedAt:        true,
	models.DetailRemainingBefore:   true,
	models.DetailLowBalanceWarning: true,
}

// sanitizeDetails strips markup from caller-supplied strings, truncates long
// values and drops nesting past maxDetailDepth. Keys the recorder stamps
// itself are removed after cleaning so a client cannot forge them.
func sanitizeDetails(in map[string]interface{}) models.ActivityDetails {
	out := make(models.ActivityDetails, len(in))
	for k, v := range in {
		key := cleanDetailText(k)
		if reservedDetailKeys[key] {
			continue
		}
		if clean, ok := sanitizeDetailValue(v, 1); ok {
			out[key] = clean
		}
	}
	return out
}

// cleanDetailText removes markup and returns plain text. The strict policy
// escapes what it keeps, so entities are decoded back before the length cap.
func cleanDetailText(s string) string {
	s = html.UnescapeString(detailPolicy.Sanitize(s))
	if len(s) > maxDetailStringBytes {
		s = strings.ToValidUTF8(s[:maxDetailStringBytes], "")
	}
	return s
}

func sanitizeDetailValue(v interface{}, depth int) (interface{}, bool) {
	if depth > maxDetailDepth {
		return nil, false
	}

	switch val := v.(type) {
	case nil, bool, float64:
		return val, true
	case string:
		return cleanDetailText(val), true
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			if clean, ok := sanitizeDetailValue(item, depth+1); ok {
				out[cleanDetailText(k)] = clean
			}
		}
		return out, true
	case []interface{}:
		out := make([]interface{}, 0, len(val))
		for _, item := range val {
			if clean, ok := sanitizeDetailValue(item, depth+1); ok {
				out = append(out, clean)
			}
		}
		return out, true
	default:
		return nil, false
	}
}
