// internal/driver/cdpdriver/context.go
package cdpdriver

import (
	"context"
)

// combineContext derives from tabCtx, which carries the CDP target, and is also
// cancelled when opCtx is. Values come from tabCtx only.
//
// chromedp finds the browser and target through context values, so the caller's
// context cannot be used directly. The caller still owns the deadline and
// cancellation of the operation, which is what opCtx contributes.
func combineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tabCtx)
	if deadline, ok := opCtx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		combined, cancelDeadline = context.WithDeadline(combined, deadline)
		prev := cancel
		cancel = func() {
			cancelDeadline()
			prev()
		}
	}

	// Forwards cancellation of opCtx. The goroutine exits when either side is done,
	// so it never outlives the returned cancel.
	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}
