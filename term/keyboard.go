package term

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/term"

	xsync "github.com/vulcan-frame/vtime/sync"
)

const keyBufferSize = 16

// escapeWait is how long a trailing ESC waits for the rest of an escape sequence.
const escapeWait = 50 * time.Millisecond

// KeySource delivers key events.
type KeySource interface {
	// Read blocks until a key arrives or ctx is done.
	// It returns io.EOF once the input is exhausted.
	Read(ctx context.Context) (Key, error)
	// Poll returns a pending key without blocking.
	Poll() (Key, bool, error)
}

var _ KeySource = (*Keyboard)(nil)

// Keyboard decodes keys from an input stream. A single pump goroutine owns the
// underlying reads, so Read can give up on ctx while the pump stays blocked.
type Keyboard struct {
	keys chan Key

	_errLock sync.Mutex
	err      error

	fd    int
	state *term.State
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// OpenKeyboard reads keys from f, switching it to raw mode when it is a
// terminal. Close restores the previous mode.
func OpenKeyboard(f *os.File) (*Keyboard, error) {
	fd := int(f.Fd())
	var state *term.State
	if term.IsTerminal(fd) {
		var err error
		if state, err = term.MakeRaw(fd); err != nil {
			return nil, errors.WithStack(&IOError{Op: "raw mode", Err: err})
		}
	}

	k := NewKeyboard(f)
	k.fd, k.state = fd, state
	return k, nil
}

// NewKeyboard reads keys from r as-is.
func NewKeyboard(r io.Reader) *Keyboard {
	k := &Keyboard{keys: make(chan Key, keyBufferSize)}
	xsync.GoSafe("keyboard pump", func() error {
		return k.pump(r)
	})
	return k
}

func (k *Keyboard) pump(r io.Reader) error {
	defer close(k.keys)

	chunks := make(chan []byte)
	var readErr error
	xsync.GoSafe("keyboard reader", func() error {
		defer close(chunks)
		buf := make([]byte, 64)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunks <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				readErr = err
				return nil
			}
		}
	})

	var tail []byte
	for {
		chunk, ok, expired := k.next(chunks, tail)
		if expired {
			k.emit(tail)
			tail = nil
			continue
		}
		if !ok {
			k.emit(tail)
			err := readErr
			if !errors.Is(err, io.EOF) {
				err = errors.WithStack(&IOError{Op: "read", Err: err})
			}
			k.setErr(err)
			return nil
		}

		var complete []byte
		complete, tail = splitEscape(append(tail, chunk...))
		k.emit(complete)
	}
}

// next waits for the next chunk of input. While an unfinished escape
// sequence is held it waits at most escapeWait and then reports expired.
func (k *Keyboard) next(chunks <-chan []byte, tail []byte) (chunk []byte, ok, expired bool) {
	if len(tail) == 0 {
		chunk, ok = <-chunks
		return chunk, ok, false
	}

	timer := time.NewTimer(escapeWait)
	defer timer.Stop()

	select {
	case chunk, ok = <-chunks:
		return chunk, ok, false
	case <-timer.C:
		return nil, true, true
	}
}

func (k *Keyboard) emit(buf []byte) {
	for _, key := range Decode(buf) {
		k.keys <- key
	}
}

func (k *Keyboard) setErr(err error) {
	k._errLock.Lock()
	defer k._errLock.Unlock()
	k.err = err
}

func (k *Keyboard) readErr() error {
	k._errLock.Lock()
	defer k._errLock.Unlock()
	if k.err == nil {
		return io.EOF
	}
	return k.err
}

func (k *Keyboard) Read(ctx context.Context) (Key, error) {
	select {
	case key, ok := <-k.keys:
		if !ok {
			return Key{}, k.readErr()
		}
		return key, nil
	case <-ctx.Done():
		return Key{}, ctx.Err()
	}
}

func (k *Keyboard) Poll() (Key, bool, error) {
	select {
	case key, ok := <-k.keys:
		if !ok {
			return Key{}, false, k.readErr()
		}
		return key, true, nil
	default:
		return Key{}, false, nil
	}
}

// Close restores the terminal mode changed by OpenKeyboard.
func (k *Keyboard) Close() error {
	if k.state == nil {
		return nil
	}
	if err := term.Restore(k.fd, k.state); err != nil {
		return errors.WithStack(&IOError{Op: "restore", Err: err})
	}
	k.state = nil
	return nil
}
