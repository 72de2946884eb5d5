// internal/action/toggle.go
package action

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/faults"
	"github.com/xkilldash9x/pagesync/internal/retry"
	"github.com/xkilldash9x/pagesync/internal/wait"
)

// Toggle is the desired state of a checkbox-like control.
type Toggle struct {
	Checked bool
	// Skip leaves the control untouched.
	Skip bool
	// VerifyInitialState makes a control already in the desired state an error
	// instead of a no-op.
	VerifyInitialState bool
}

// PerformToggleWithSync flips the target into the desired state and waits for
// completion. A control already in the desired state is left alone unless
// VerifyInitialState is set, in which case WrongInitialStateError is returned.
func (o *Orchestrator) PerformToggleWithSync(ctx context.Context, t Target, tg Toggle, s Sync, p wait.Policy, onTimeout wait.OnTimeout) (Outcome, error) {
	if tg.Skip {
		o.logger.Info("Skipped toggle.", zap.String("label", t.Label))
		return o.finishEarly(t.Label, nil)
	}

	checked, err := retry.Do(ctx, o.retrier, t.Locator, t.Label, p, func(ctx context.Context, ref driver.ElementRef) (bool, error) {
		checked, err := o.drv.IsChecked(ctx, ref)
		if err != nil {
			return false, err
		}
		if checked == tg.Checked && tg.VerifyInitialState {
			return checked, &faults.WrongInitialStateError{Label: t.Label, Checked: checked}
		}
		return checked, nil
	})
	if err != nil {
		return o.finishEarly(t.Label, err)
	}

	if checked == tg.Checked {
		o.logger.Info("Toggle already in the desired state.", zap.String("label", t.Label), zap.Bool("checked", checked))
		return o.finishEarly(t.Label, nil)
	}

	return o.perform(ctx, t, s, p, onTimeout, step{
		check: func(ctx context.Context, ref driver.ElementRef) error {
			return o.requireInteractable(ctx, ref, t.Label)
		},
		act: func(ctx context.Context, ref driver.ElementRef) error {
			return o.drv.Toggle(ctx, ref)
		},
	})
}
