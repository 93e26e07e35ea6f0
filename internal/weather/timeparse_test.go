package weather

import (
	"testing"
	"time"
)

func TestParseISOTimeFormats(t *testing.T) {
	zone := time.UTC
	now := func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-06-01T06:30", time.Date(2024, 6, 1, 6, 30, 0, 0, time.UTC)},
		{"2024-06-01T06:30:15", time.Date(2024, 6, 1, 6, 30, 15, 0, time.UTC)},
		{"2024-06-01T06:30:15Z", time.Date(2024, 6, 1, 6, 30, 15, 0, time.UTC)},
		{"2024-06-01", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, ok := ParseISOTime(tt.input, zone, now)
		if !ok {
			t.Errorf("ParseISOTime(%q) failed", tt.input)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseISOTime(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseISOTimeFallback(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return fixed }

	got, ok := ParseISOTime("not-a-timestamp", time.UTC, now)
	if ok {
		t.Error("garbage input should report ok=false")
	}
	if !got.Equal(fixed) {
		t.Errorf("fallback = %v, want current time %v", got, fixed)
	}
}
