// internal/action/entry.go
package action

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/retry"
	"github.com/xkilldash9x/pagesync/internal/wait"
)

// Entry is the desired content of a text field.
type Entry struct {
	Value string
	// Skip leaves the field untouched.
	Skip bool
	// Append writes after the existing content instead of replacing it.
	Append bool
}

// PerformEntryWithSync writes e.Value into the target field and waits for completion.
//
// A write of the value the field already holds fires no change notification, so in
// that case the field is first set to "" under the same sync, and after the policy's
// settle delay to the real value. If the field is empty and the desired value is
// empty there is nothing to do.
func (o *Orchestrator) PerformEntryWithSync(ctx context.Context, t Target, e Entry, s Sync, p wait.Policy, onTimeout wait.OnTimeout) (Outcome, error) {
	if e.Skip {
		o.logger.Info("Skipped entering field.", zap.String("label", t.Label))
		return o.finishEarly(t.Label, nil)
	}

	current, err := retry.Do(ctx, o.retrier, t.Locator, t.Label, p, func(ctx context.Context, ref driver.ElementRef) (string, error) {
		v, _, err := o.drv.Attribute(ctx, ref, "value")
		return v, err
	})
	if err != nil {
		return o.finishEarly(t.Label, err)
	}

	if !e.Append && current == e.Value {
		if current == "" {
			o.logger.Debug("Field already empty, nothing to enter.", zap.String("label", t.Label))
			return o.finishEarly(t.Label, nil)
		}

		o.logger.Debug("Field already holds the value, writing a placeholder first.", zap.String("label", t.Label))
		// The placeholder triggers its own update. It must land before the real write
		// arms, or it razes the marker meant for the real value.
		if out, err := o.perform(ctx, t, s, p, onTimeout, o.writeStep(t, "", true)); err != nil {
			return out, err
		}
		if err := o.clock.Sleep(ctx, p.SettleDelay); err != nil {
			return o.finishEarly(t.Label, err)
		}
	}

	return o.perform(ctx, t, s, p, onTimeout, o.writeStep(t, e.Value, !e.Append))
}

func (o *Orchestrator) writeStep(t Target, text string, clearFirst bool) step {
	return step{
		check: func(ctx context.Context, ref driver.ElementRef) error {
			return o.requireInteractable(ctx, ref, t.Label)
		},
		act: func(ctx context.Context, ref driver.ElementRef) error {
			return o.drv.WriteValue(ctx, ref, text, clearFirst)
		},
	}
}
