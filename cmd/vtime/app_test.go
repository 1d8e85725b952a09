package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulcan-frame/vtime/notify"
	"github.com/vulcan-frame/vtime/xtime"
)

var noon = time.Date(2026, 10, 17, 12, 0, 0, 0, time.Local)

type fastClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fastClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fastClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []string
}

func (r *recordingNotifier) Notify(n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, n.Summary)
	return nil
}

type harness struct {
	app      *app
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	notifier *recordingNotifier
}

// newHarness runs commands against a closed pipe for input and a clock that
// never really sleeps.
func newHarness(t *testing.T) *harness {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	require.NoError(t, w.Close())
	t.Cleanup(func() { _ = r.Close() })

	h := &harness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, notifier: &recordingNotifier{}}
	h.app = newApp(r, h.stdout, h.stderr)
	h.app.clock = &fastClock{now: noon}
	h.app.newNotifier = func(bool) notify.Notifier { return h.notifier }
	return h
}

func (h *harness) run(args ...string) error {
	return h.app.execute(context.Background(), args)
}

func TestPrintCommands(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"time"}, "12:00:00\r\n"},
		{[]string{"date"}, "2026-10-17\r\n"},
		{[]string{"now"}, "12:00:00 2026-10-17\r\n"},
		{nil, "12:00:00 2026-10-17\r\n"},
		{[]string{"-version"}, "vtime dev\r\n"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			h := newHarness(t)
			require.NoError(t, h.run(tt.args...))
			assert.Equal(t, tt.want, h.stdout.String())
		})
	}
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"yesterday"}, `unknown command "yesterday"`},
		{"extra args", []string{"time", "now"}, "unexpected arguments"},
		{"bad duration", []string{"timer", "abc"}, "incorrect timer duration"},
		{"too many timer args", []string{"timer", "1", "2"}, "unexpected arguments"},
		{"bad alarm", []string{"alarm", "25:00"}, "incorrect alarm time"},
		{"bad backend", []string{"-history", "sqlite", "now"}, "unknown history backend"},
		{"history disabled", []string{"history"}, "history is disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			err := h.run(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseErrorIsTyped(t *testing.T) {
	h := newHarness(t)
	err := h.run("timer", "1:2:3:4")

	var perr *xtime.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "1:2:3:4", perr.Input)
}

func TestHelp(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.run("-h"), flag.ErrHelp)
	assert.Contains(t, h.stderr.String(), "vtime [flags] <subcommand>")
}

func TestTimerCommand(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("-bell=false", "timer", "00:00:02"))

	out := h.stdout.String()
	assert.True(t, strings.HasPrefix(out, "12:00:00: Started timer for 00:00:02\r\n"))
	assert.True(t, strings.HasSuffix(out, "12:00:02: Completed timer for 00:00:02\r\n"))
	assert.NotContains(t, out, "\a")
	assert.Equal(t, []string{"Timer complete"}, h.notifier.summaries)
}

func TestAlarmCommand(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("alarm", "12:00:02"))

	out := h.stdout.String()
	assert.True(t, strings.HasPrefix(out, "12:00:00: Alarm set at 12:00:02\r\n"))
	assert.True(t, strings.HasSuffix(out, "\a12:00:02: Alarm complete! (total time 00:00:02)\r\n"))
	assert.Equal(t, []string{"Alarm complete"}, h.notifier.summaries)
}

func TestStopwatchCommand_NotATerminal(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.app.execute(ctx, []string{"stopwatch"}))
	assert.Equal(t, "00:00:00\r\n", h.stdout.String())
}

func TestHistory_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	flags := []string{"-history", "redis", "-redis-addr", mr.Addr()}

	h := newHarness(t)
	require.NoError(t, h.run(append(flags, "timer", "3")...))
	h = newHarness(t)
	require.NoError(t, h.run(append(flags, "alarm", "12:00:01")...))

	h = newHarness(t)
	require.NoError(t, h.run(append(flags, "history", "-n", "5")...))

	lines := strings.Split(strings.TrimSuffix(h.stdout.String(), "\r\n"), "\r\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "alarm")
	assert.Contains(t, lines[0], "2026-10-17 12:00:01")
	assert.Contains(t, lines[1], "timer")
	assert.Contains(t, lines[1], "00:00:03")
	assert.Contains(t, lines[1], "completed")
}

func TestHistory_Empty(t *testing.T) {
	mr := miniredis.RunT(t)

	h := newHarness(t)
	require.NoError(t, h.run("-history", "redis", "-redis-addr", mr.Addr(), "history"))
	assert.Equal(t, "no sessions recorded\r\n", h.stdout.String())
}

func TestHistory_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	h := newHarness(t)
	require.NoError(t, h.run("-history", "redis", "-redis-addr", addr, "timer", "1"))
	assert.Contains(t, h.stdout.String(), "Completed timer for 00:00:01")
	assert.Contains(t, h.stderr.String(), "session not recorded")
}
