package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxNameLen bounds first and last names, in characters.
	MaxNameLen = 100
	// MaxTitleLen bounds event titles, in characters.
	MaxTitleLen = 200
	// MaxMessageLen is Telegram's limit for a single text message.
	MaxMessageLen = 4096

	dateLayout      = "2 January"
	dateLabelLayout = "02 January (Monday)"
)

// NormalizePhone keeps the digits of raw and prefixes them with "+".
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", &ValidationError{Field: "phone", Reason: "no digits"}
	}
	return "+" + b.String(), nil
}

// ValidateName checks that s holds 1..MaxNameLen characters.
func ValidateName(field, s string) (string, error) {
	return validateLen(field, s, MaxNameLen)
}

// ValidateTitle checks that s holds 1..MaxTitleLen characters.
func ValidateTitle(s string) (string, error) {
	return validateLen("title", s, MaxTitleLen)
}

func validateLen(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n == 0 || n > max {
		return "", &ValidationError{Field: field, Reason: fmt.Sprintf("must be between 1 and %d characters", max)}
	}
	return s, nil
}

// ParseEventDate parses "25 December" or "25 December (Monday)" into midnight
// of that day in loc. The year is taken from now, unless the day would then
// lie more than half a year back, in which case it is next year's.
func ParseEventDate(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	s = strings.Join(strings.Fields(s), " ")
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: "expected DD Month"}
	}
	local := now.In(loc)
	date := time.Date(local.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	if date.Before(local.AddDate(0, -6, 0)) {
		date = date.AddDate(1, 0, 0)
	}
	return date, nil
}

// ParseClock parses a 24-hour "HH:MM" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, &ValidationError{Field: "time", Reason: "expected HH:MM"}
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, &ValidationError{Field: "time", Reason: "invalid hour"}
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, 0, &ValidationError{Field: "time", Reason: "invalid minute"}
	}
	return h, m, nil
}

// CombineLocal places hour:minute on the calendar day of date in loc.
func CombineLocal(date time.Time, hour, minute int, loc *time.Location) time.Time {
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// DateOptions returns quick-pick labels for today and the following n-1 days.
func DateOptions(now time.Time, loc *time.Location, n int) []string {
	local := now.In(loc)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, local.AddDate(0, 0, i).Format(dateLabelLayout))
	}
	return out
}

// ClockOptions returns the common event start times 09:00..20:00.
func ClockOptions() []string {
	out := make([]string, 0, 12)
	for h := 9; h <= 20; h++ {
		out = append(out, fmt.Sprintf("%02d:00", h))
	}
	return out
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

// FormatDate renders t as "25 December 2024 (Wednesday)" in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02 January 2006 (Monday)")
}

// FormatClock renders t as HH:MM in loc.
func FormatClock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

// FormatTimeUntil renders d as "2 days, 3 hours, 5 minutes".
func FormatTimeUntil(d time.Duration) string {
	if d <= 0 {
		return "Starting now!"
	}
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d days", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d hours", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d minutes", minutes))
	}
	if len(parts) == 0 {
		return "Starting now!"
	}
	return strings.Join(parts, ", ")
}

// SplitMessage cuts text into chunks of at most limit characters, preferring
// line breaks as cut points.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLen
	}
	var out []string
	for utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		out = append(out, string(runes[:cut]))
		text = string(runes[cut:])
	}
	if text != "" || len(out) == 0 {
		out = append(out, text)
	}
	return out
}
