package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/productbaker/pkg/core"
)

func TestLooksLikeDate(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"2024-01-01T00:00:00Z", true},
		{"2024-01-01T00:00:00.123Z", true},
		{"2024-01-01T10:30:00+02:00", true},
		{"2024-01-01", false},
		{"2024-01-01 00:00:00", false},
		{"released 2024-01-01T00:00:00Z", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, core.LooksLikeDate(tt.in), tt.in)
	}
}

func TestReviveDates(t *testing.T) {
	in := map[string]any{
		"createdAt": "2024-01-01T00:00:00.000Z",
		"name":      "Foo",
		"history": []any{
			map[string]any{"at": "2024-02-01T12:00:00Z"},
			"2024-13-45T99:99:99Z",
		},
		"count": 3.0,
	}

	out := core.ReviveDates(in).(map[string]any)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), out["createdAt"].(time.Time).UTC())
	assert.Equal(t, "Foo", out["name"])
	assert.Equal(t, 3.0, out["count"])

	history := out["history"].([]any)
	assert.IsType(t, time.Time{}, history[0].(map[string]any)["at"])
	// shaped like a date but not parseable: left alone
	assert.Equal(t, "2024-13-45T99:99:99Z", history[1])
}
