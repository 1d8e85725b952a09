package countdown

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/pkg/errors"

	"github.com/vulcan-frame/vtime/notify"
	xsync "github.com/vulcan-frame/vtime/sync"
	"github.com/vulcan-frame/vtime/term"
	"github.com/vulcan-frame/vtime/xtime"
)

const listenerJoinTimeout = time.Second

type action int

const (
	actNone action = iota
	actTogglePause
	actCancel
	actForward
	actBackward
)

func isCancelKey(k term.Key) bool {
	return k.IsRune('q') || k.Code == term.KeyEsc || k.Code == term.KeyCtrlC
}

func timerAction(k term.Key) action {
	switch {
	case k.IsRune('p', ' '):
		return actTogglePause
	case isCancelKey(k):
		return actCancel
	case k.Code == term.KeyRight || k.IsRune('a'):
		return actForward
	case k.Code == term.KeyLeft || k.IsRune('d'):
		return actBackward
	default:
		return actNone
	}
}

// Timer counts down a fixed duration. One goroutine ticks once per second while
// a second one applies key presses; both go through the shared State.
type Timer struct {
	env       Env
	duration  time.Duration
	state     *State
	startedAt time.Time
}

func NewTimer(d time.Duration, env Env) *Timer {
	return &Timer{
		env:      env,
		duration: d,
		state:    newState(d, time.Time{}),
	}
}

// Run blocks until the timer completes, is cancelled by key, or ctx is done.
// Cancellation through ctx ends the session the same way the cancel key does.
func (t *Timer) Run(ctx context.Context) (Result, error) {
	t.startedAt = t.env.Clock.Now()
	start := fmt.Sprintf("%s: Started timer for %s", xtime.TimeString(t.startedAt), xtime.FormatDuration(t.duration))
	if err := t.env.Printer.Print(start); err != nil {
		return Result{StartedAt: t.startedAt, EndedAt: t.startedAt}, err
	}

	sessCtx, stop := context.WithCancel(ctx)
	defer stop()
	t.state.bind(stop)

	var listener <-chan struct{}
	if t.env.Keys != nil {
		listener = xsync.GoSafe("timer key listener", func() error {
			return t.listen(sessCtx)
		})
	}

	for {
		interrupted := t.env.Clock.Sleep(sessCtx, t.state.increment) != nil
		if t.step(interrupted) {
			break
		}
	}

	stop()
	if listener != nil && !xsync.WaitTimeout(listener, listenerJoinTimeout) {
		log.Warnf("timer key listener still blocked after %.2fs", listenerJoinTimeout.Seconds())
	}
	return t.result(), t.state.err
}

// step runs one tick and reports whether the session is over.
func (t *Timer) step(interrupted bool) bool {
	st := t.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.cancelled {
		return true
	}
	if interrupted {
		t.cancelLocked()
		return true
	}
	t.tickLocked()
	return st.cancelled
}

func (t *Timer) tickLocked() {
	st := t.state
	if st.paused {
		return
	}

	st.elapsed += st.increment
	remaining := st.remaining()
	if err := t.env.Printer.Erase(xtime.FormatDuration(remaining)); err != nil {
		st.finish(Cancelled, t.env.Clock.Now(), err)
		return
	}
	if remaining > 0 {
		return
	}

	now := t.env.Clock.Now()
	dur := xtime.FormatDuration(t.duration)
	err := t.env.Printer.Print(fmt.Sprintf("%s%s: Completed timer for %s", t.env.bell(), xtime.TimeString(now), dur))
	t.env.Notify.Send(notify.Notification{
		Summary: "Timer complete",
		Body:    fmt.Sprintf("Timer for %s complete\nFinished at %s", dur, xtime.TimeString(now)),
	})
	st.finish(Completed, now, err)
}

func (t *Timer) cancelLocked() {
	st := t.state
	now := t.env.Clock.Now()
	left := xtime.FormatDuration(st.remaining())
	dur := xtime.FormatDuration(t.duration)

	err := t.env.Printer.Print(fmt.Sprintf("%s%s: Timer cancelled (time left: %s)", t.env.bell(), xtime.TimeString(now), left))
	t.env.Notify.Send(notify.Notification{
		Summary: "Timer cancelled",
		Body:    fmt.Sprintf("Timer for %s cancelled\n(time left: %s)", dur, left),
	})
	st.finish(Cancelled, now, err)
}

// listen applies key presses until the session ends or the input runs dry.
func (t *Timer) listen(ctx context.Context) error {
	for {
		if t.state.isCancelled() {
			return nil
		}

		key, err := t.env.Keys.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			t.state.mu.Lock()
			t.state.finish(Cancelled, t.env.Clock.Now(), err)
			t.state.mu.Unlock()
			return nil
		}

		if t.handleKey(key) {
			return nil
		}
	}
}

// handleKey applies one key press and reports whether the session is over.
func (t *Timer) handleKey(key term.Key) bool {
	st := t.state
	st.mu.Lock()
	defer st.mu.Unlock()

	// the tick loop may have finished while we were waiting for input
	if st.cancelled {
		return true
	}

	switch timerAction(key) {
	case actTogglePause:
		if !st.paused {
			t.redrawLocked(true)
		}
		st.paused = !st.paused
	case actCancel:
		t.cancelLocked()
	case actForward:
		st.elapsed += st.increment * skipTicks
		t.redrawLocked(st.paused)
	case actBackward:
		st.elapsed -= st.increment * skipTicks
		t.redrawLocked(st.paused)
	}
	return st.cancelled
}

func (t *Timer) redrawLocked(paused bool) {
	line := xtime.FormatDuration(t.state.remaining())
	if paused {
		line += " " + t.env.Printer.Accent("PAUSED")
	}
	if err := t.env.Printer.Erase(line); err != nil {
		t.state.finish(Cancelled, t.env.Clock.Now(), err)
	}
}

// Done is closed once the timer has completed or been cancelled.
func (t *Timer) Done() <-chan struct{} {
	return t.state.Done()
}

func (t *Timer) result() Result {
	st := t.state
	st.mu.Lock()
	defer st.mu.Unlock()

	remaining := st.remaining()
	if remaining < 0 || st.outcome == Completed {
		remaining = 0
	}
	return Result{
		Outcome:   st.outcome,
		StartedAt: t.startedAt,
		EndedAt:   st.endedAt,
		Remaining: remaining,
	}
}
