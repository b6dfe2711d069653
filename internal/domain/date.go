package domain

import "time"

// DateLayout is the wire and storage format for date-only values.
const DateLayout = "2006-01-02"

// DateOf truncates t to its calendar date, as seen in t's own location,
// and returns it as midnight UTC. Two values compare correctly with
// Before/After/Equal only after both have been passed through DateOf.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar date of now in the reference location loc.
// A nil loc means UTC.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}

// ParseDate parses a YYYY-MM-DD string into a date-only value.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}
