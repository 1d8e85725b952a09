// Package watch implements the free-running displays: a live clock and a stopwatch.
package watch

import (
	"context"

	"github.com/vulcan-frame/vtime/term"
	"github.com/vulcan-frame/vtime/xtime"
)

// Clock re-renders the current time and date once per tick until ctx is done,
// then leaves the last reading on screen.
func Clock(ctx context.Context, clock xtime.Clock, p *term.Printer) error {
	for {
		if err := p.Erase(xtime.NowString(clock.Now())); err != nil {
			return err
		}
		if err := clock.Sleep(ctx, xtime.Tick); err != nil {
			break
		}
	}
	return p.Print(xtime.NowString(clock.Now()))
}
