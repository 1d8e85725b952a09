package sync

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Latch is a write-once signal. It starts open and can be triggered exactly once;
// every later Trigger is a no-op that reports false.
type Latch struct {
	_triggerLock sync.Mutex
	triggerChan  chan struct{} // closed when triggered
	triggered    *atomic.Bool
}

func NewLatch() *Latch {
	return &Latch{
		triggerChan: make(chan struct{}),
		triggered:   atomic.NewBool(false),
	}
}

// Trigger fires the latch. Only the first caller gets true.
func (l *Latch) Trigger() bool {
	if l.triggered.Load() {
		return false
	}

	l._triggerLock.Lock()
	defer l._triggerLock.Unlock()

	if l.triggered.Load() {
		return false
	}

	close(l.triggerChan)
	l.triggered.Store(true)
	return true
}

func (l *Latch) Triggered() bool {
	return l.triggered.Load()
}

// Done is closed once the latch has been triggered.
func (l *Latch) Done() <-chan struct{} {
	return l.triggerChan
}

// WaitTimeout waits for done to be closed, giving up after timeout.
// It reports whether done was closed in time.
func WaitTimeout(done <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
