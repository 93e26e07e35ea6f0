package weather

import (
	"time"
)

// isoLayouts are the ISO-8601 variants Open-Meteo has been observed to
// return for sunrise/sunset and daily dates, most common first.
var isoLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02",
}

// ParseISOTime parses a provider timestamp, trying each known layout.
// Layouts without a zone are interpreted in loc (the provider returns
// station-local times when timezone=auto). If nothing matches, it returns
// now() and false so the caller can log the substitution instead of
// failing the whole response.
func ParseISOTime(s string, loc *time.Location, now func() time.Time) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return now(), false
}
