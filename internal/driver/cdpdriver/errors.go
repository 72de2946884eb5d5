// internal/driver/cdpdriver/errors.go
package cdpdriver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"

	"github.com/xkilldash9x/pagesync/internal/faults"
)

// staleMarker is thrown by the element functions when the node left the document.
const staleMarker = "pagesync:stale"

// Protocol errors that mean the node behind a reference is gone.
var staleSignals = []string{
	"Could not find node",
	"No node with given id",
	"Node with given id does not belong to the document",
	"Cannot find context with specified id",
	"Execution context was destroyed",
	staleMarker,
}

// classify maps CDP failures onto the engine's fault sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, faults.ErrStale) || errors.Is(err, faults.ErrNotFound) {
		return err
	}
	msg := err.Error()
	for _, s := range staleSignals {
		if strings.Contains(msg, s) {
			return fmt.Errorf("%w: %v", faults.ErrStale, err)
		}
	}
	return err
}

func exceptionError(exc *runtime.ExceptionDetails) error {
	msg := exc.Text
	if exc.Exception != nil && exc.Exception.Description != "" {
		msg = exc.Exception.Description
	}
	return classify(fmt.Errorf("javascript exception: %s", msg))
}
