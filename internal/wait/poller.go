// internal/wait/poller.go
package wait

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/faults"
)

// Predicate is one evaluation of a wait condition. A returned error means "not yet".
type Predicate func(ctx context.Context) (bool, error)

// Poller is the bounded polling loop every wait in the engine is built on.
type Poller struct {
	clock  Clock
	logger *zap.Logger
}

// NewPoller creates a poller. A nil clock uses the system clock.
func NewPoller(clock Clock, logger *zap.Logger) *Poller {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{clock: clock, logger: logger.Named("poller")}
}

// Clock exposes the poller's clock so callers can sleep on the same time source.
func (p *Poller) Clock() Clock {
	return p.clock
}

// Until evaluates pred until it returns true or timeout elapses, sleeping interval
// between evaluations. The final sleep is shortened so it never overshoots the
// deadline. Errors and panics from pred count as false. A done ctx ends the wait early
// with false.
func (p *Poller) Until(ctx context.Context, pred Predicate, timeout, interval time.Duration) bool {
	deadline := p.clock.Now().Add(timeout)
	attempts := 0

	for {
		attempts++
		if p.evaluate(ctx, pred) {
			return true
		}

		remaining := deadline.Sub(p.clock.Now())
		if remaining <= 0 {
			p.logger.Debug("Poll deadline reached.", zap.Duration("timeout", timeout), zap.Int("attempts", attempts))
			return false
		}

		if err := p.clock.Sleep(ctx, min(interval, remaining)); err != nil {
			p.logger.Debug("Poll interrupted by context.", zap.Error(err), zap.Int("attempts", attempts))
			return false
		}
	}
}

func (p *Poller) evaluate(ctx context.Context, pred Predicate) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Debug("Poll predicate panicked, treating as not yet.", zap.String("panic", fmt.Sprint(r)))
			ok = false
		}
	}()

	ok, err := pred(ctx)
	if err != nil {
		p.logger.Debug("Poll predicate faulted, treating as not yet.", zap.Error(err), zap.Stringer("kind", faults.Classify(err)))
		return false
	}
	return ok
}
