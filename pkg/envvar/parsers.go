package envvar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-jobenv/pkg/dsn"
	"github.com/ekaya-inc/ekaya-jobenv/pkg/schedule"
)

// Layouts with an explicit offset or zone designator. Fractional seconds after
// the seconds field are accepted by time.Parse without being spelled out.
var offsetLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15Z07:00",
	"2006-01-02T15Z0700",
	"2006-01-02T15Z07",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04Z07:00",
	"20060102T150405Z0700",
	"20060102T150405Z07:00",
	"20060102T1504Z0700",
	"20060102T15Z0700",
	"20060102T15Z07:00",
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15",
	"20060102T150405",
	"20060102T1504",
	"20060102T15",
}

func ParseString(raw string) (string, error) {
	return raw, nil
}

// ParseBool accepts "true" and "false" in any letter case and nothing else.
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, errors.New("must be true or false")
}

func ParseInt(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("must be an integer: %w", err)
	}
	return n, nil
}

func ParseFloat(raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("must be a number: %w", err)
	}
	return f, nil
}

// ListOf returns a parser that splits on sep and trims each item. Empty items
// are kept.
func ListOf(sep string) Parser[[]string] {
	return func(raw string) ([]string, error) {
		if sep == "" {
			return nil, errors.New("list separator must not be empty")
		}
		items := strings.Split(raw, sep)
		for i, item := range items {
			items[i] = strings.TrimSpace(item)
		}
		return items, nil
	}
}

// ParseTimezone loads an IANA time zone such as "Europe/Stockholm".
func ParseTimezone(raw string) (*time.Location, error) {
	if raw == "Local" {
		return nil, errors.New(`"Local" is not an IANA time zone name`)
	}
	loc, err := time.LoadLocation(raw)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone: %w", err)
	}
	return loc, nil
}

func ParseCron(raw string) (string, error) {
	if err := schedule.Validate(raw); err != nil {
		return "", err
	}
	return raw, nil
}

// ParseISO8601 parses a combined date and time. Values without an offset are
// read as UTC.
func ParseISO8601(raw string) (time.Time, error) {
	return ISO8601In(time.UTC)(raw)
}

// ISO8601In parses a combined date and time, reading values without an offset
// in loc.
func ISO8601In(loc *time.Location) Parser[time.Time] {
	return func(raw string) (time.Time, error) {
		if t, ok := parseWithOffset(raw); ok {
			return t, nil
		}
		if t, ok := parseWithoutOffset(raw, loc); ok {
			return t, nil
		}
		return time.Time{}, ErrInvalidTimestamp
	}
}

// ParseRFC3339 parses a combined date and time that must carry an offset or a
// zone designator. A value that is otherwise valid but has no offset fails with
// ErrMissingOffset.
func ParseRFC3339(raw string) (time.Time, error) {
	if t, ok := parseWithOffset(raw); ok {
		return t, nil
	}
	if _, ok := parseWithoutOffset(raw, time.UTC); ok {
		return time.Time{}, ErrMissingOffset
	}
	return time.Time{}, ErrInvalidTimestamp
}

func ParseDSN(raw string) (dsn.DSN, error) {
	return dsn.Parse(raw)
}

// normalizeDesignators upper-cases the "t" and "z" designators, which RFC 3339
// allows in lower case. A valid value has no other letters.
func normalizeDesignators(raw string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case 't':
			return 'T'
		case 'z':
			return 'Z'
		}
		return r
	}, raw)
}

func parseWithOffset(raw string) (time.Time, bool) {
	raw = normalizeDesignators(raw)
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseWithoutOffset(raw string, loc *time.Location) (time.Time, bool) {
	raw = normalizeDesignators(raw)
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
