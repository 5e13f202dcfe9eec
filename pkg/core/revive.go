package core

import (
	"regexp"
	"time"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`)

// LooksLikeDate reports whether s has the shape of an ISO-8601 timestamp.
func LooksLikeDate(s string) bool {
	return isoDatePattern.MatchString(s)
}

// ReviveDates walks a value decoded from JSON and replaces every string leaf
// that looks like an ISO-8601 timestamp with a time.Time.
//
// CAVEAT: this is structural guessing. A free-text field that happens to hold
// a timestamp-shaped string comes back as time.Time. Decode into a typed
// destination (Store.LoadInto) when the schema is known.
func ReviveDates(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = ReviveDates(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = ReviveDates(item)
		}
		return val
	case string:
		if !isoDatePattern.MatchString(val) {
			return val
		}
		t, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return val
		}
		return t
	default:
		return v
	}
}
