package sync

import (
	"bytes"
	"runtime"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/pkg/errors"
)

// DefaultStackSize is the default size for stack traces
const DefaultStackSize = 64 << 10 // 64KB

const (
	initialRoutineIDBuffer = 128
)

// GoSafe runs fn in its own goroutine with panic recovery and logs any error
// or panic under msg. The returned channel is closed when fn has returned.
func GoSafe(msg string, fn func() error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		rid := RoutineId()
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("goroutine panic recovered. message=%s routine_id=%d error=%+v", msg, rid, CatchErr(r))
			}
		}()

		if err := RunSafe(fn); err != nil {
			log.Errorf("goroutine error occurred. message=%s routine_id=%d error=%+v", msg, rid, err)
		}
	}()
	return done
}

// RunSafe executes fn, converting a panic into an error.
func RunSafe(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = CatchErr(p)
		}
	}()

	return fn()
}

// RoutineId returns the current goroutine ID, parsed from the runtime stack.
// Only for log correlation.
func RoutineId() uint64 {
	buf := make([]byte, initialRoutineIDBuffer)
	n := runtime.Stack(buf, false)
	return parseRoutineID(buf[:n])
}

func parseRoutineID(stack []byte) uint64 {
	const prefix = "goroutine "
	if !bytes.HasPrefix(stack, []byte(prefix)) {
		return 0
	}

	stack = stack[len(prefix):]
	end := bytes.IndexByte(stack, ' ')
	if end == -1 {
		return 0
	}

	var id uint64
	for _, c := range stack[:end] {
		if c < '0' || c > '9' {
			return 0
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}

// CatchErr creates an error with stack trace from a recovered panic.
func CatchErr(p interface{}) error {
	buf := make([]byte, DefaultStackSize)
	n := runtime.Stack(buf, false)

	return errors.WithStack(
		errors.Errorf("panic recovered: %v\n%s", p, buf[:n]),
	)
}
