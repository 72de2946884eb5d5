// internal/retry/retry.go
package retry

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/faults"
	"github.com/xkilldash9x/pagesync/internal/wait"
)

// Op is one attempt at an operation against a freshly resolved element.
type Op[T any] func(ctx context.Context, ref driver.ElementRef) (T, error)

// Retrier re-resolves a locator on every attempt and retries only when the failure is
// a stale reference. Precondition failures come back untouched; not-found and any
// other fault are wrapped in an ElementActionError. Neither is retried.
type Retrier struct {
	drv    driver.Driver
	clock  wait.Clock
	logger *zap.Logger
}

// NewRetrier creates a retrier. A nil clock uses the system clock.
func NewRetrier(drv driver.Driver, clock wait.Clock, logger *zap.Logger) *Retrier {
	if clock == nil {
		clock = wait.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{drv: drv, clock: clock, logger: logger.Named("retry")}
}

// Driver returns the driver the retrier resolves against.
func (r *Retrier) Driver() driver.Driver {
	return r.drv
}

// Run is Do for operations without a result.
func (r *Retrier) Run(ctx context.Context, loc driver.Locator, label string, p wait.Policy, op func(ctx context.Context, ref driver.ElementRef) error) error {
	_, err := Do(ctx, r, loc, label, p, func(ctx context.Context, ref driver.ElementRef) (struct{}, error) {
		return struct{}{}, op(ctx, ref)
	})
	return err
}

// Do runs op against loc. With p.MaxAttempts = k, k-1 stale faults are absorbed
// (sleeping one poll interval after each) and the k-th raises
// StaleReferenceExhaustedError.
func Do[T any](ctx context.Context, r *Retrier, loc driver.Locator, label string, p wait.Policy, op Op[T]) (T, error) {
	var zero T
	stale := 0

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := attempt(ctx, r.drv, loc, op)
		kind := faults.Classify(err)
		switch kind {
		case faults.KindNone:
			if stale > 0 {
				r.logger.Debug("Operation succeeded after stale retries.", zap.String("label", label), zap.Int("stale", stale))
			}
			return result, nil

		case faults.KindPrecondition:
			return zero, err

		case faults.KindStale:
			stale++
			if stale >= p.MaxAttempts {
				r.logger.Debug("Stale retry budget exhausted.", zap.String("label", label), zap.Stringer("locator", loc), zap.Int("attempts", stale))
				return zero, &faults.StaleReferenceExhaustedError{Label: label, Locator: loc.String(), Attempts: stale, Err: err}
			}
			r.logger.Debug("Element went stale, retrying.", zap.String("label", label), zap.Int("attempt", stale), zap.Error(err))
			if serr := r.clock.Sleep(ctx, p.PollInterval); serr != nil {
				return zero, serr
			}

		default:
			if passThrough(err) {
				return zero, err
			}
			r.logger.Debug("Operation failed, not retrying.", zap.String("label", label), zap.Stringer("kind", kind), zap.Error(err))
			return zero, &faults.ElementActionError{Label: label, Locator: loc.String(), Err: err}
		}
	}
}

func attempt[T any](ctx context.Context, drv driver.Driver, loc driver.Locator, op Op[T]) (T, error) {
	ref, err := drv.Resolve(ctx, loc)
	if err != nil {
		var zero T
		return zero, err
	}
	return op(ctx, ref)
}

// passThrough reports whether err is already one of the engine's own typed errors or
// a context error, which are returned without wrapping.
func passThrough(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var (
		script    *faults.ScriptExecutionError
		selection *faults.SelectionNotFoundError
		action    *faults.ElementActionError
		timeout   *faults.ActionNotCompleteError
	)
	return errors.As(err, &script) || errors.As(err, &selection) || errors.As(err, &action) || errors.As(err, &timeout)
}
