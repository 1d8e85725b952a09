package countdown

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/vulcan-frame/vtime/notify"
	"github.com/vulcan-frame/vtime/xtime"
)

// resyncEvery is how often the alarm drops its simulated clock and rereads the wall clock.
const resyncEvery = time.Minute

// Alarm counts down to a wall-clock instant. It runs on a single goroutine and
// polls for the cancel key once per tick.
//
// The simulated clock advances one tick per loop and is reset to the wall clock
// every simulated minute. Completion is only declared once the wall clock,
// reread at that moment, has also reached the target.
type Alarm struct {
	env       Env
	target    time.Time
	state     *State
	startedAt time.Time
	simulated time.Time
}

func NewAlarm(target time.Time, env Env) *Alarm {
	return &Alarm{
		env:    env,
		target: target,
		state:  newState(0, target),
	}
}

// Run blocks until the alarm goes off, is cancelled by key, or ctx is done.
func (a *Alarm) Run(ctx context.Context) (Result, error) {
	a.startedAt = a.env.Clock.Now()
	a.simulated = a.startedAt

	line := fmt.Sprintf("%s: Alarm set at %s", xtime.TimeString(a.startedAt), xtime.TimeString(a.target))
	if xtime.IsNextDay(a.startedAt, a.target) {
		line += " (tomorrow)"
	}
	if err := a.env.Printer.Print(line); err != nil {
		return Result{StartedAt: a.startedAt, EndedAt: a.startedAt}, err
	}

	var sinceSync time.Duration
	for {
		cancel, err := a.cancelRequested()
		if err != nil {
			a.finish(Cancelled, err)
			break
		}
		if cancel {
			a.cancel()
			break
		}

		if err := a.env.Printer.Erase(xtime.FormatDuration(a.target.Sub(a.simulated))); err != nil {
			a.finish(Cancelled, err)
			break
		}

		if err := a.env.Clock.Sleep(ctx, a.state.increment); err != nil {
			a.cancel()
			break
		}

		a.simulated = a.simulated.Add(a.state.increment)
		sinceSync += a.state.increment
		if sinceSync >= resyncEvery {
			sinceSync = 0
			a.simulated = a.env.Clock.Now()
		}

		if !a.simulated.Before(a.target) {
			sinceSync = 0
			a.simulated = a.env.Clock.Now()
			if !a.simulated.Before(a.target) {
				a.complete()
				break
			}
		}
	}

	return a.result(), a.state.err
}

// cancelRequested drains pending keys and reports whether any of them was a cancel key.
func (a *Alarm) cancelRequested() (bool, error) {
	if a.env.Keys == nil {
		return false, nil
	}
	for {
		key, ok, err := a.env.Keys.Poll()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, err
		}
		if !ok {
			return false, nil
		}
		if isCancelKey(key) {
			return true, nil
		}
	}
}

func (a *Alarm) cancel() {
	at := xtime.TimeString(a.target)
	left := xtime.FormatDuration(a.target.Sub(a.simulated))

	err := a.env.Printer.Print(fmt.Sprintf("%sAlarm for %s cancelled (time left: %s)", a.env.bell(), at, left))
	a.env.Notify.Send(notify.Notification{
		Summary: "Alarm cancelled",
		Body:    fmt.Sprintf("Alarm for %s cancelled\nTime left: %s", at, left),
	})
	a.finish(Cancelled, err)
}

func (a *Alarm) complete() {
	msg := fmt.Sprintf("%s: Alarm complete! (total time %s)",
		xtime.TimeString(a.target), xtime.FormatDuration(a.target.Sub(a.startedAt)))

	err := a.env.Printer.Print(a.env.bell() + msg)
	a.env.Notify.Send(notify.Notification{Summary: "Alarm complete", Body: msg})
	a.finish(Completed, err)
}

func (a *Alarm) finish(o Outcome, err error) {
	st := a.state
	st.mu.Lock()
	defer st.mu.Unlock()
	st.finish(o, a.env.Clock.Now(), err)
}

// Done is closed once the alarm has gone off or been cancelled.
func (a *Alarm) Done() <-chan struct{} {
	return a.state.Done()
}

func (a *Alarm) result() Result {
	st := a.state
	st.mu.Lock()
	defer st.mu.Unlock()

	remaining := st.deadline.Sub(a.simulated)
	if remaining < 0 || st.outcome == Completed {
		remaining = 0
	}
	return Result{
		Outcome:   st.outcome,
		StartedAt: a.startedAt,
		EndedAt:   st.endedAt,
		Remaining: remaining,
	}
}
