// internal/wait/detectors.go
package wait

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/faults"
)

// Detector specializes the Poller into the change conditions the orchestrator waits on.
type Detector struct {
	drv    driver.Driver
	poller *Poller
	logger *zap.Logger
}

// NewDetector binds a poller to a driver.
func NewDetector(drv driver.Driver, poller *Poller, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{drv: drv, poller: poller, logger: logger.Named("detector")}
}

// Poller returns the underlying poller.
func (d *Detector) Poller() *Poller {
	return d.poller
}

// CaptureAttribute reads an attribute for later comparison. Anything unreadable,
// including a missing element, is the empty string.
func (d *Detector) CaptureAttribute(ctx context.Context, loc driver.Locator, name string) string {
	ref, err := d.drv.Resolve(ctx, loc)
	if err != nil {
		return ""
	}
	v, ok, err := d.drv.Attribute(ctx, ref, name)
	if err != nil || !ok {
		return ""
	}
	return v
}

// WaitForAttributeChange waits until the attribute of the element at loc differs from
// initial, ignoring case. The element is re-resolved on every poll; if it cannot be
// found its value reads as "".
func (d *Detector) WaitForAttributeChange(ctx context.Context, loc driver.Locator, name, initial string, p Policy) bool {
	return d.poller.Until(ctx, func(ctx context.Context) (bool, error) {
		current := d.CaptureAttribute(ctx, loc, name)
		return !strings.EqualFold(current, initial), nil
	}, p.Timeout, p.PollInterval)
}

// WaitForStaleness waits until ref no longer points into the live document.
func (d *Detector) WaitForStaleness(ctx context.Context, ref driver.ElementRef, p Policy) bool {
	return d.poller.Until(ctx, isStale(d.drv, ref), p.Timeout, p.PollInterval)
}

// WaitForRefreshes waits for the element at loc to be replaced n times in a row. ref is
// the reference captured before the triggering action. Each refresh gets the full
// timeout.
func (d *Detector) WaitForRefreshes(ctx context.Context, ref driver.ElementRef, loc driver.Locator, n int, p Policy) bool {
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			var next driver.ElementRef
			found := d.poller.Until(ctx, func(ctx context.Context) (bool, error) {
				r, err := d.drv.Resolve(ctx, loc)
				if err != nil {
					return false, err
				}
				next = r
				return true, nil
			}, p.Timeout, p.PollInterval)
			if !found {
				d.logger.Debug("Companion element did not reappear.", zap.Stringer("locator", loc), zap.Int("refresh", i+1))
				return false
			}
			ref = next
		}
		if !d.WaitForStaleness(ctx, ref, p) {
			d.logger.Debug("Companion element did not refresh.", zap.Stringer("locator", loc), zap.Int("refresh", i+1))
			return false
		}
	}
	return true
}

// WaitForDisplayed waits until the element at loc resolves and is displayed.
func (d *Detector) WaitForDisplayed(ctx context.Context, loc driver.Locator, p Policy) bool {
	return d.poller.Until(ctx, func(ctx context.Context) (bool, error) {
		ref, err := d.drv.Resolve(ctx, loc)
		if err != nil {
			return false, err
		}
		return d.drv.IsDisplayed(ctx, ref)
	}, p.Timeout, p.PollInterval)
}

// WaitForRemoved waits until the element at loc is not found, or found but not displayed.
func (d *Detector) WaitForRemoved(ctx context.Context, loc driver.Locator, p Policy) bool {
	return d.poller.Until(ctx, isRemoved(d.drv, loc), p.Timeout, p.PollInterval)
}

// URLMatch selects how WaitForURLChange compares URLs.
type URLMatch int

const (
	// URLPartial completes once the current URL no longer contains the old value.
	URLPartial URLMatch = iota
	// URLExact completes on any textual difference.
	URLExact
)

// WaitForURLChange waits for the page URL to move away from old.
func (d *Detector) WaitForURLChange(ctx context.Context, old string, match URLMatch, p Policy) bool {
	return d.poller.Until(ctx, func(ctx context.Context) (bool, error) {
		current, err := d.drv.CurrentURL(ctx)
		if err != nil {
			return false, err
		}
		if match == URLExact {
			return current != old, nil
		}
		return !strings.Contains(current, old), nil
	}, p.Timeout, p.PollInterval)
}

// WaitForURLContains waits until the page URL contains fragment.
func (d *Detector) WaitForURLContains(ctx context.Context, fragment string, p Policy) bool {
	return d.poller.Until(ctx, func(ctx context.Context) (bool, error) {
		current, err := d.drv.CurrentURL(ctx)
		if err != nil {
			return false, err
		}
		return strings.Contains(current, fragment), nil
	}, p.Timeout, p.PollInterval)
}

func isStale(drv driver.Driver, ref driver.ElementRef) Predicate {
	return func(ctx context.Context) (bool, error) {
		stale, err := drv.IsStale(ctx, ref)
		if err != nil {
			// A fault while touching the reference is itself the signal.
			return faults.IsStale(err), nil
		}
		return stale, nil
	}
}

func isRemoved(drv driver.Driver, loc driver.Locator) Predicate {
	return func(ctx context.Context) (bool, error) {
		ref, err := drv.Resolve(ctx, loc)
		if errors.Is(err, faults.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		displayed, err := drv.IsDisplayed(ctx, ref)
		if err != nil {
			return faults.IsStale(err), nil
		}
		return !displayed, nil
	}
}

// Absent is a predicate that holds once loc resolves to nothing.
func Absent(drv driver.Driver, loc driver.Locator) Predicate {
	return func(ctx context.Context) (bool, error) {
		_, err := drv.Resolve(ctx, loc)
		if errors.Is(err, faults.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
}
