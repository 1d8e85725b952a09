package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/vulcan-frame/vtime/notify"
	xsync "github.com/vulcan-frame/vtime/sync"
	"github.com/vulcan-frame/vtime/term"
	"github.com/vulcan-frame/vtime/xtime"
)

// skipTicks is how many ticks a skip key moves a timer.
const skipTicks = 5

// Outcome is the terminal state of a session.
type Outcome int

const (
	Running Outcome = iota
	Completed
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "running"
	}
}

// Env carries the collaborators a session runs against.
type Env struct {
	Clock   xtime.Clock
	Printer *term.Printer
	// Keys is optional; without it the session cannot be paused, adjusted or cancelled by key.
	Keys   term.KeySource
	Notify *notify.Dispatcher
	// Bell prefixes completion and cancellation messages with the terminal bell.
	Bell bool
}

func (e Env) bell() string {
	if e.Bell {
		return term.Bell
	}
	return ""
}

// Result describes a finished session.
type Result struct {
	Outcome   Outcome
	StartedAt time.Time
	EndedAt   time.Time
	// Remaining is the time left when the session ended, zero when completed.
	Remaining time.Duration
}

// State is the countdown record shared by a session's tick loop and key listener.
// Every field is guarded by mu.
type State struct {
	mu sync.Mutex

	elapsed   time.Duration
	target    time.Duration
	deadline  time.Time
	increment time.Duration
	paused    bool
	cancelled bool
	outcome   Outcome
	endedAt   time.Time
	err       error

	latch *xsync.Latch
	stop  context.CancelFunc
}

func newState(target time.Duration, deadline time.Time) *State {
	return &State{
		target:    target,
		deadline:  deadline,
		increment: xtime.Tick,
		latch:     xsync.NewLatch(),
	}
}

// bind ties the state to the session context, cancelling it on finish.
func (s *State) bind(stop context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop = stop
}

// remaining is the time left on a timer. Caller holds mu.
func (s *State) remaining() time.Duration {
	return s.target - s.elapsed
}

// finish moves the session to its terminal outcome. Only the first call has
// any effect and reports true. Caller holds mu.
func (s *State) finish(o Outcome, at time.Time, err error) bool {
	if s.cancelled || !s.latch.Trigger() {
		return false
	}
	s.cancelled = true
	s.outcome = o
	s.endedAt = at
	s.err = err
	if s.stop != nil {
		s.stop()
	}
	return true
}

func (s *State) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Done is closed once the session has reached a terminal outcome.
func (s *State) Done() <-chan struct{} {
	return s.latch.Done()
}
