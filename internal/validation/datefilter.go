package validation

import (
	"strings"
	"time"

	"twitsnap/internal/models"
)

// DateMode selects how a DateFilter constrains created_at.
type DateMode int

const (
	DateNone DateMode = iota
	// DateCursor keeps rows strictly newer (or, with Older, strictly older) than Cursor.
	DateCursor
	// DateBucket keeps rows in the half-open range [Start, End).
	DateBucket
)

// DateFilter is a parsed createdAt constraint.
type DateFilter struct {
	Mode   DateMode
	Cursor time.Time
	Older  bool
	Start  time.Time
	End    time.Time
}

var cursorLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

func invalidDate() error {
	return models.NewValidationError("createdAt", "Invalid date format.")
}

// ParseDateFilter parses the createdAt query value. With exact set the value is
// a year, month or day bucket; otherwise it is a cursor timestamp.
func ParseDateFilter(raw string, older, exact bool) (DateFilter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DateFilter{Mode: DateNone}, nil
	}
	if exact {
		return parseBucket(raw)
	}

	for _, layout := range cursorLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return DateFilter{Mode: DateCursor, Cursor: t.UTC(), Older: older}, nil
		}
	}
	return DateFilter{}, invalidDate()
}

func parseBucket(raw string) (DateFilter, error) {
	var (
		layout string
		value  = raw
		next   func(time.Time) time.Time
	)

	switch {
	case len(raw) == 4:
		layout = "2006"
		next = func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }
	case len(raw) == 7:
		layout = "2006-01"
		next = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
	case len(raw) >= 10:
		layout = "2006-01-02"
		value = raw[:10]
		next = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	default:
		return DateFilter{}, invalidDate()
	}

	start, err := time.Parse(layout, value)
	if err != nil {
		return DateFilter{}, invalidDate()
	}
	start = start.UTC()
	return DateFilter{Mode: DateBucket, Start: start, End: next(start)}, nil
}
