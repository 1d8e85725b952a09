package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/pkg/errors"

	xsync "github.com/vulcan-frame/vtime/sync"
)

// Notification is a desktop alert.
type Notification struct {
	Summary string
	Body    string
}

// Notifier delivers notifications. Delivery is best effort.
type Notifier interface {
	Notify(n Notification) error
}

// NotificationError reports a notification that could not be delivered.
type NotificationError struct {
	Summary string
	Err     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("failed to send notification %q: %v", e.Summary, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// New selects the desktop notifier when enabled, otherwise a no-op.
func New(enabled bool) Notifier {
	if enabled {
		return Desktop{}
	}
	return Nop{}
}

// Desktop shows notifications through the platform notification service.
type Desktop struct{}

func (Desktop) Notify(n Notification) error {
	if err := beeep.Notify(n.Summary, n.Body, ""); err != nil {
		return errors.WithStack(&NotificationError{Summary: n.Summary, Err: err})
	}
	return nil
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(Notification) error { return nil }

// Dispatcher sends notifications in the background so a slow or failing
// notifier never holds up a countdown. A nil Dispatcher drops everything.
type Dispatcher struct {
	notifier Notifier
	wg       sync.WaitGroup
}

func NewDispatcher(n Notifier) *Dispatcher {
	return &Dispatcher{notifier: n}
}

// Send dispatches n asynchronously. Failures are logged and dropped.
func (d *Dispatcher) Send(n Notification) {
	if d == nil {
		return
	}

	d.wg.Add(1)
	xsync.GoSafe("notification", func() error {
		defer d.wg.Done()
		if err := d.notifier.Notify(n); err != nil {
			log.Errorf("%v", err)
		}
		return nil
	})
}

// Flush waits up to timeout for in-flight notifications and reports whether all finished.
func (d *Dispatcher) Flush(timeout time.Duration) bool {
	if d == nil {
		return true
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	if !xsync.WaitTimeout(done, timeout) {
		log.Warnf("notifications still pending after %.2fs", timeout.Seconds())
		return false
	}
	return true
}
