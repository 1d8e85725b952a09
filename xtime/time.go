package xtime

import (
	"context"
	"fmt"
	"time"

	"github.com/dromara/carbon/v2"
)

// Tick is the fixed step of every countdown, clock and stopwatch loop.
const Tick = time.Second

// Clock provides the two time operations the loops depend on.
// Tests substitute a stepped implementation.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the Clock backed by the local wall clock.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TimeString formats t as HH:MM:SS.
func TimeString(t time.Time) string {
	return carbon.CreateFromStdTime(t).ToTimeString()
}

// DateString formats t as YYYY-MM-DD.
func DateString(t time.Time) string {
	return carbon.CreateFromStdTime(t).ToDateString()
}

// DateTimeString formats t as "YYYY-MM-DD HH:MM:SS".
func DateTimeString(t time.Time) string {
	return carbon.CreateFromStdTime(t).ToDateTimeString()
}

// NowString formats t as "HH:MM:SS YYYY-MM-DD".
func NowString(t time.Time) string {
	return TimeString(t) + " " + DateString(t)
}

// FormatDuration renders d as HH:MM:SS, truncating sub-second precision.
// Negative durations render as 00:00:00; hours are not capped at 24.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

// IsNextDay reports whether target falls on a later calendar day than now.
func IsNextDay(now, target time.Time) bool {
	return DateString(target.In(now.Location())) > DateString(now)
}

// NextDay returns the calendar date following t in t's location.
func NextDay(t time.Time) (year int, month time.Month, day int) {
	return carbon.CreateFromStdTime(t).AddDay().StdTime().Date()
}
