// internal/retry/collect.go
package retry

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/faults"
	"github.com/xkilldash9x/pagesync/internal/wait"
)

// CollectOptions controls Collect.
type CollectOptions struct {
	// Attribute to read from each element. Empty reads the rendered text.
	Attribute string
	// MaxRefreshes bounds how many times the list may be re-resolved after going stale.
	MaxRefreshes int
}

// Collect reads one value from every element matched by loc. The list may be
// re-rendered while it is being read; when that happens the list is resolved again and
// reading continues from the number of values already collected.
func (r *Retrier) Collect(ctx context.Context, loc driver.Locator, label string, p wait.Policy, opts CollectOptions) ([]string, error) {
	buffer := make([]string, 0)
	refreshes := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		refs, err := r.drv.ResolveAll(ctx, loc)
		if err != nil {
			return nil, &faults.ElementActionError{Label: label, Locator: loc.String(), Err: err}
		}

		wentStale := false
		for i := len(buffer); i < len(refs); i++ {
			v, err := r.read(ctx, refs[i], opts.Attribute)
			if faults.IsStale(err) {
				wentStale = true
				break
			}
			if err != nil {
				return nil, &faults.ElementActionError{Label: label, Locator: loc.String(), Err: err}
			}
			buffer = append(buffer, v)
		}
		if !wentStale {
			return buffer, nil
		}

		refreshes++
		if refreshes > opts.MaxRefreshes {
			return nil, &faults.StaleReferenceExhaustedError{Label: label, Locator: loc.String(), Attempts: refreshes, Err: faults.ErrStale}
		}
		r.logger.Debug("List refreshed while collecting, continuing.",
			zap.String("label", label), zap.Int("processed", len(buffer)), zap.Int("refresh", refreshes))
		if err := r.clock.Sleep(ctx, p.PollInterval); err != nil {
			return nil, err
		}
	}
}

func (r *Retrier) read(ctx context.Context, ref driver.ElementRef, attribute string) (string, error) {
	if attribute == "" {
		return r.drv.Text(ctx, ref)
	}
	v, _, err := r.drv.Attribute(ctx, ref, attribute)
	return v, err
}
