package term

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

const (
	// Bell is the terminal alert character emitted with completion and cancellation messages.
	Bell = "\a"

	clearLine = "\r\x1b[2K"
	newline   = "\r\n"
)

// IOError reports a failed terminal read or write. A session cannot continue after one.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("terminal %s failed: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Printer owns the output stream and the state of its current line.
// A transient line is rewritten in place by Erase; Print emits a permanent line.
// "\r\n" terminates lines so output stays aligned when the terminal is in raw mode.
type Printer struct {
	mu        sync.Mutex
	w         io.Writer
	transient bool
	accent    *color.Color
}

// NewPrinter returns a Printer writing to w. colored enables ANSI colors for Accent.
func NewPrinter(w io.Writer, colored bool) *Printer {
	accent := color.New(color.FgYellow, color.Bold)
	if colored {
		accent.EnableColor()
	} else {
		accent.DisableColor()
	}
	return &Printer{w: w, accent: accent}
}

// Print replaces the transient line, if any, with line and moves to a new line.
func (p *Printer) Print(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	prefix := ""
	if p.transient {
		prefix = clearLine
	}
	p.transient = false
	return p.write(prefix + line + newline)
}

// Erase clears the transient line, if any, and writes line in its place without a newline.
func (p *Printer) Erase(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	prefix := ""
	if p.transient {
		prefix = clearLine
	}
	p.transient = true
	return p.write(prefix + line)
}

// Accent highlights s when colors are enabled.
func (p *Printer) Accent(s string) string {
	return p.accent.Sprint(s)
}

func (p *Printer) write(s string) error {
	if _, err := io.WriteString(p.w, s); err != nil {
		return errors.WithStack(&IOError{Op: "write", Err: err})
	}
	return nil
}

// Diagnostics wraps w, typically standard error, so writes to it first clear
// the transient status line. The next Erase redraws the status.
func (p *Printer) Diagnostics(w io.Writer) io.Writer {
	return &diagnosticWriter{p: p, w: w}
}

type diagnosticWriter struct {
	p *Printer
	w io.Writer
}

func (d *diagnosticWriter) Write(b []byte) (int, error) {
	d.p.mu.Lock()
	defer d.p.mu.Unlock()

	if d.p.transient {
		if err := d.p.write(clearLine); err != nil {
			return 0, err
		}
		d.p.transient = false
	}

	out := bytes.ReplaceAll(bytes.ReplaceAll(b, []byte(newline), []byte("\n")), []byte("\n"), []byte(newline))
	if _, err := d.w.Write(out); err != nil {
		return 0, err
	}
	return len(b), nil
}
