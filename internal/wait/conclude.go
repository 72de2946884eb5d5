// internal/wait/conclude.go
package wait

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/faults"
)

// Conclude applies the caller's timeout decision to a wait result. A completed wait
// passes through. An incomplete one either logs a warning and returns false, or returns
// an ActionNotCompleteError naming label.
func Conclude(logger *zap.Logger, completed bool, onTimeout OnTimeout, label string, p Policy) (bool, error) {
	if completed {
		return true, nil
	}
	if onTimeout == Warn {
		if logger != nil {
			logger.Warn("Action did not complete before timeout, continuing.",
				zap.String("label", label),
				zap.Duration("timeout", p.Timeout))
		}
		return false, nil
	}
	return false, &faults.ActionNotCompleteError{Label: label, Timeout: p.Timeout.String()}
}
