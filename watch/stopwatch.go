package watch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/vulcan-frame/vtime/term"
	"github.com/vulcan-frame/vtime/xtime"
)

// Stopwatch counts up once per tick. With a key source it can be paused,
// lapped and stopped; without one it prints a permanent line per tick.
type Stopwatch struct {
	clock   xtime.Clock
	printer *term.Printer
	keys    term.KeySource

	elapsed time.Duration
	paused  bool
	laps    []time.Duration
}

func NewStopwatch(clock xtime.Clock, p *term.Printer, keys term.KeySource) *Stopwatch {
	return &Stopwatch{clock: clock, printer: p, keys: keys}
}

// Elapsed is the time counted so far.
func (s *Stopwatch) Elapsed() time.Duration {
	return s.elapsed
}

// Laps returns the elapsed readings taken so far.
func (s *Stopwatch) Laps() []time.Duration {
	return s.laps
}

// Run counts until ctx is done or, when interactive, a stop key is pressed.
// It returns the total counted time.
func (s *Stopwatch) Run(ctx context.Context) (time.Duration, error) {
	if s.keys == nil {
		return s.runPlain(ctx)
	}
	return s.runInteractive(ctx)
}

func (s *Stopwatch) runPlain(ctx context.Context) (time.Duration, error) {
	for {
		if err := s.printer.Print(xtime.FormatDuration(s.elapsed)); err != nil {
			return s.elapsed, err
		}
		if err := s.clock.Sleep(ctx, xtime.Tick); err != nil {
			return s.elapsed, nil
		}
		s.elapsed += xtime.Tick
	}
}

func (s *Stopwatch) runInteractive(ctx context.Context) (time.Duration, error) {
	for {
		stop, err := s.drainKeys()
		if err != nil {
			return s.elapsed, err
		}
		if stop {
			break
		}

		if err := s.render(); err != nil {
			return s.elapsed, err
		}
		if err := s.clock.Sleep(ctx, xtime.Tick); err != nil {
			break
		}
		if !s.paused {
			s.elapsed += xtime.Tick
		}
	}

	err := s.printer.Print(fmt.Sprintf("Stopwatch stopped (total time %s)", xtime.FormatDuration(s.elapsed)))
	return s.elapsed, err
}

// drainKeys applies pending keys and reports whether one of them stops the stopwatch.
// Exhausted input leaves the stopwatch running without key handling.
func (s *Stopwatch) drainKeys() (bool, error) {
	for s.keys != nil {
		key, ok, err := s.keys.Poll()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.keys = nil
				return false, nil
			}
			return false, err
		}
		if !ok {
			return false, nil
		}

		switch {
		case key.IsRune('q') || key.Code == term.KeyEsc || key.Code == term.KeyCtrlC:
			return true, nil
		case key.IsRune('p', ' '):
			s.paused = !s.paused
		case key.IsRune('l') || key.Code == term.KeyEnter:
			if err := s.lap(); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

func (s *Stopwatch) lap() error {
	var prev time.Duration
	if n := len(s.laps); n > 0 {
		prev = s.laps[n-1]
	}
	s.laps = append(s.laps, s.elapsed)
	return s.printer.Print(fmt.Sprintf("lap %d: %s (+%s)",
		len(s.laps), xtime.FormatDuration(s.elapsed), xtime.FormatDuration(s.elapsed-prev)))
}

func (s *Stopwatch) render() error {
	line := xtime.FormatDuration(s.elapsed)
	if s.paused {
		line += " " + s.printer.Accent("PAUSED")
	}
	return s.printer.Erase(line)
}
