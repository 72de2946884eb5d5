// internal/action/click.go
package action

import (
	"context"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/wait"
)

// PerformClickWithSync clicks the target once it is displayed and enabled, then waits
// for the completion signal described by s.
func (o *Orchestrator) PerformClickWithSync(ctx context.Context, t Target, s Sync, p wait.Policy, onTimeout wait.OnTimeout) (Outcome, error) {
	return o.perform(ctx, t, s, p, onTimeout, step{
		check: func(ctx context.Context, ref driver.ElementRef) error {
			return o.requireInteractable(ctx, ref, t.Label)
		},
		act: func(ctx context.Context, ref driver.ElementRef) error {
			return o.drv.Click(ctx, ref)
		},
	})
}
