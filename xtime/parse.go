package xtime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseError reports a malformed duration or time-of-day string.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%q does not look like a valid time: %s", e.Input, e.Reason)
}

// ClockAmbiguityError reports a local time-of-day that maps to zero or
// several instants, as happens around daylight-saving transitions.
type ClockAmbiguityError struct {
	Input      string
	Candidates int
}

func (e *ClockAmbiguityError) Error() string {
	if e.Candidates == 0 {
		return fmt.Sprintf("%q does not exist in local time", e.Input)
	}
	return fmt.Sprintf("%q is ambiguous in local time (%d candidates)", e.Input, e.Candidates)
}

// ParseDuration parses 1 to 3 colon separated fields right-aligned to
// seconds, minutes and hours: "10", "5:10", "1:5:10".
func ParseDuration(s string) (time.Duration, error) {
	fields := strings.Split(s, ":")
	if len(fields) > 3 {
		return 0, &ParseError{Input: s, Reason: fmt.Sprintf("expected at most 3 fields, got %d", len(fields))}
	}

	units := []time.Duration{time.Second, time.Minute, time.Hour}
	var total time.Duration
	for i := range fields {
		field := fields[len(fields)-1-i]
		n, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return 0, &ParseError{Input: s, Reason: fmt.Sprintf("field %q is not a number", field)}
		}
		if n > uint64(math.MaxInt64/int64(units[i])) {
			return 0, &ParseError{Input: s, Reason: "duration too large"}
		}
		total += time.Duration(n) * units[i]
		if total < 0 {
			return 0, &ParseError{Input: s, Reason: "duration too large"}
		}
	}
	return total, nil
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS" and resolves it against now:
// a time-of-day strictly earlier than now's lands on the next day, anything
// else on now's day. The result is in now's location.
func ParseTimeOfDay(s string, now time.Time) (time.Time, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 2 && len(fields) != 3 {
		return time.Time{}, &ParseError{Input: s, Reason: "expected HH:MM or HH:MM:SS"}
	}

	limits := []int{23, 59, 59}
	hms := make([]int, 3)
	for i, field := range fields {
		n, err := strconv.ParseUint(field, 10, 8)
		if err != nil || len(field) > 2 || n > uint64(limits[i]) {
			return time.Time{}, &ParseError{Input: s, Reason: fmt.Sprintf("field %q is out of range", field)}
		}
		hms[i] = int(n)
	}

	target := time.Duration(hms[0])*time.Hour + time.Duration(hms[1])*time.Minute + time.Duration(hms[2])*time.Second
	h, m, sec := now.Clock()
	current := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second + time.Duration(now.Nanosecond())

	year, month, day := now.Date()
	if target < current {
		year, month, day = NextDay(now)
	}

	candidates := resolveLocal(year, month, day, hms[0], hms[1], hms[2], now.Location())
	if len(candidates) != 1 {
		return time.Time{}, &ClockAmbiguityError{Input: s, Candidates: len(candidates)}
	}
	return candidates[0], nil
}

// resolveLocal returns every instant whose wall clock in loc reads the given
// date and time-of-day.
func resolveLocal(year int, month time.Month, day, hour, min, sec int, loc *time.Location) []time.Time {
	guess := time.Date(year, month, day, hour, min, sec, 0, loc)
	wall := time.Date(year, month, day, hour, min, sec, 0, time.UTC)

	offsets := make([]int, 0, 3)
	for _, probe := range []time.Time{guess.Add(-12 * time.Hour), guess, guess.Add(12 * time.Hour)} {
		_, off := probe.Zone()
		if !containsInt(offsets, off) {
			offsets = append(offsets, off)
		}
	}

	var out []time.Time
	for _, off := range offsets {
		t := wall.Add(-time.Duration(off) * time.Second).In(loc)
		y, mo, d := t.Date()
		h, mi, s := t.Clock()
		if y == year && mo == month && d == day && h == hour && mi == min && s == sec {
			out = append(out, t)
		}
	}
	return out
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
