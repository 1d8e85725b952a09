package countdown

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/vulcan-frame/vtime/notify"
	"github.com/vulcan-frame/vtime/term"
	"github.com/vulcan-frame/vtime/xtime"
)

// fakeClock returns immediately from Sleep and moves its wall clock forward.
// advance overrides how far each Sleep moves the wall clock, to model jitter.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	advance time.Duration
	sleeps  int
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	step := c.advance
	if step == 0 {
		step = d
	}
	c.now = c.now.Add(step)
	c.sleeps++
	return nil
}

func (c *fakeClock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}

// idleClock never finishes a Sleep on its own.
type idleClock struct {
	now time.Time
}

func (c idleClock) Now() time.Time { return c.now }

func (c idleClock) Sleep(ctx context.Context, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

type scriptedKeys struct {
	ch chan term.Key
}

func newScriptedKeys(keys ...term.Key) *scriptedKeys {
	ch := make(chan term.Key, len(keys)+8)
	for _, k := range keys {
		ch <- k
	}
	return &scriptedKeys{ch: ch}
}

func (s *scriptedKeys) Read(ctx context.Context) (term.Key, error) {
	select {
	case k := <-s.ch:
		return k, nil
	case <-ctx.Done():
		return term.Key{}, ctx.Err()
	}
}

func (s *scriptedKeys) Poll() (term.Key, bool, error) {
	select {
	case k := <-s.ch:
		return k, true, nil
	default:
		return term.Key{}, false, nil
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) Summaries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.Summary)
	}
	return out
}

// syncBuffer is a bytes.Buffer safe for the concurrent writers a session has.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runeKey(r rune) term.Key {
	return term.Key{Code: term.KeyRune, Rune: r}
}

var noon = time.Date(2026, 10, 17, 12, 0, 0, 0, time.Local)

func testEnv(clock xtime.Clock, out *syncBuffer, keys term.KeySource) Env {
	return Env{
		Clock:   clock,
		Printer: term.NewPrinter(out, false),
		Keys:    keys,
		Bell:    true,
	}
}
