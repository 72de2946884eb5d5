// internal/action/select.go
package action

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/faults"
	"github.com/xkilldash9x/pagesync/internal/retry"
	"github.com/xkilldash9x/pagesync/internal/selection"
	"github.com/xkilldash9x/pagesync/internal/wait"
)

// Choice is the desired selection of a dropdown.
type Choice struct {
	Intent selection.Intent
	// DefaultIndex is the slot the widget returns to on its own, used to pick the
	// transition option. Empty means "0".
	DefaultIndex string
}

// PerformSelectionWithSync makes the selection described by c. When the widget already
// shows the desired option, a different option is selected first (with its own sync)
// so that the real selection produces an observable change.
//
// Widgets with no options fail with SelectionNotFoundError. A widget with a single
// option that already shows the desired value cannot be moved away from it; the
// current value is accepted as verified and a warning is logged.
func (o *Orchestrator) PerformSelectionWithSync(ctx context.Context, t Target, c Choice, s Sync, p wait.Policy, onTimeout wait.OnTimeout) (Outcome, error) {
	if c.Intent.Mode == selection.ModeSkip {
		o.logger.Info("Skipped selection.", zap.String("label", t.Label))
		return o.finishEarly(t.Label, nil)
	}

	snap, err := o.snapshot(ctx, t, p)
	if err != nil {
		return o.finishEarly(t.Label, err)
	}

	if snap.OptionCount == 0 {
		return o.finishEarly(t.Label, c.Intent.NotFound(t.Label, "widget has no options"))
	}
	if !snap.Enabled {
		return o.finishEarly(t.Label, &faults.ElementStateError{Label: t.Label, State: "not enabled"})
	}

	desired, err := o.resolveIntent(c.Intent, snap.OptionCount)
	if err != nil {
		return o.finishEarly(t.Label, c.Intent.NotFound(t.Label, err.Error()))
	}

	defaultIndex := c.DefaultIndex
	if defaultIndex == "" {
		defaultIndex = "0"
	}
	decision := selection.Decide(snap, desired, defaultIndex, o.logger)

	if decision.ChangeNeeded {
		if snap.OptionCount < 2 {
			o.logger.Warn("Only one option available, verified current selection without forcing a change.",
				zap.String("label", t.Label), zap.Stringer("intent", desired), zap.String("current", snap.VisibleText))
			return o.finishEarly(t.Label, nil)
		}

		fallback := selection.Index(decision.FallbackIndex)
		out, err := o.selectWithSync(ctx, t, fallback, s, p, onTimeout)
		if err != nil {
			return out, err
		}
		o.logger.Info("Dropdown is ready for the requested selection.",
			zap.String("label", t.Label), zap.Int("transition_index", decision.FallbackIndex))
	}

	return o.selectWithSync(ctx, t, desired, s, p, onTimeout)
}

func (o *Orchestrator) selectWithSync(ctx context.Context, t Target, intent selection.Intent, s Sync, p wait.Policy, onTimeout wait.OnTimeout) (Outcome, error) {
	by, ok := intent.By()
	if !ok {
		return o.finishEarly(t.Label, intent.NotFound(t.Label, "intent has no concrete option"))
	}

	return o.perform(ctx, t, s, p, onTimeout, step{
		check: func(ctx context.Context, ref driver.ElementRef) error {
			return o.requireInteractable(ctx, ref, t.Label)
		},
		act: func(ctx context.Context, ref driver.ElementRef) error {
			err := o.drv.SelectOption(ctx, ref, by, intent.Value)
			if errors.Is(err, faults.ErrNoSuchOption) {
				return intent.NotFound(t.Label, "")
			}
			return err
		},
	})
}

// PerformSelectionOnBlurWithSync selects the option described by intent on a widget
// that updates the page when it loses focus rather than on change. The widget is
// blurred under s only when the selected index actually moved; re-selecting the
// current option triggers nothing and completes at once.
func (o *Orchestrator) PerformSelectionOnBlurWithSync(ctx context.Context, t Target, intent selection.Intent, s Sync, p wait.Policy, onTimeout wait.OnTimeout) (Outcome, error) {
	if intent.Mode == selection.ModeSkip {
		o.logger.Info("Skipped selection.", zap.String("label", t.Label))
		return o.finishEarly(t.Label, nil)
	}

	before, err := o.snapshot(ctx, t, p)
	if err != nil {
		return o.finishEarly(t.Label, err)
	}
	if before.OptionCount == 0 {
		return o.finishEarly(t.Label, intent.NotFound(t.Label, "widget has no options"))
	}
	desired, err := o.resolveIntent(intent, before.OptionCount)
	if err != nil {
		return o.finishEarly(t.Label, intent.NotFound(t.Label, err.Error()))
	}

	if out, err := o.selectWithSync(ctx, t, desired, NoSync(), p, onTimeout); err != nil {
		return out, err
	}

	after, err := o.snapshot(ctx, t, p)
	if err != nil {
		return o.finishEarly(t.Label, err)
	}
	if after.Index == before.Index {
		o.logger.Debug("Selection did not move, no update expected.", zap.String("label", t.Label), zap.Int("index", after.Index))
		return o.finishEarly(t.Label, nil)
	}

	return o.perform(ctx, t, s, p, onTimeout, step{act: o.drv.Blur})
}

func (o *Orchestrator) snapshot(ctx context.Context, t Target, p wait.Policy) (selection.Snapshot, error) {
	return retry.Do(ctx, o.retrier, t.Locator, t.Label, p, func(ctx context.Context, ref driver.ElementRef) (selection.Snapshot, error) {
		sel, err := o.drv.Selection(ctx, ref)
		return selection.FromDriver(sel), err
	})
}
