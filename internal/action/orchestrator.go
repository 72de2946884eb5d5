// internal/action/orchestrator.go
package action

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/faults"
	"github.com/xkilldash9x/pagesync/internal/retry"
	"github.com/xkilldash9x/pagesync/internal/selection"
	"github.com/xkilldash9x/pagesync/internal/sentinel"
	"github.com/xkilldash9x/pagesync/internal/wait"
)

// Target is the element an action is performed on. Label is the logical name used in
// logs and errors.
type Target struct {
	Locator driver.Locator
	Label   string
}

// Orchestrator composes target resolution, completion signals and the primitive
// actions of the driver. It holds no per-call state and is safe for concurrent use as
// long as the driver is.
type Orchestrator struct {
	drv      driver.Driver
	clock    wait.Clock
	detector *wait.Detector
	sentinel *sentinel.Protocol
	retrier  *retry.Retrier
	logger   *zap.Logger
	observer TransitionFunc

	markerTag string
	rngMu     sync.Mutex
	rng       *rand.Rand
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the system clock.
func WithClock(c wait.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithObserver registers a callback for every state transition.
func WithObserver(fn TransitionFunc) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// WithRand sets the source used to resolve random selections.
func WithRand(r *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = r }
}

// WithMarkerTag overrides the element name of sentinel markers.
func WithMarkerTag(tag string) Option {
	return func(o *Orchestrator) { o.markerTag = tag }
}

// New wires an orchestrator around a driver.
func New(drv driver.Driver, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		drv:    drv,
		clock:  wait.SystemClock{},
		logger: logger.Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	poller := wait.NewPoller(o.clock, logger)
	o.detector = wait.NewDetector(drv, poller, logger)
	o.sentinel = sentinel.New(drv, poller, logger, sentinel.WithTag(o.markerTag))
	o.retrier = retry.NewRetrier(drv, o.clock, logger)
	return o
}

// Detector exposes the change detectors bound to this orchestrator's driver.
func (o *Orchestrator) Detector() *wait.Detector { return o.detector }

// Sentinel exposes the marker protocol.
func (o *Orchestrator) Sentinel() *sentinel.Protocol { return o.sentinel }

// Retrier exposes the stale-reference retry wrapper.
func (o *Orchestrator) Retrier() *retry.Retrier { return o.retrier }

// -- Lifecycle --

// armed carries what was captured before the action for the completion wait.
type armed struct {
	marker    string
	companion driver.ElementRef
	initial   string
}

type step struct {
	// check runs first on the fresh reference; precondition failures end the action.
	check func(ctx context.Context, ref driver.ElementRef) error
	act   func(ctx context.Context, ref driver.ElementRef) error
}

func (o *Orchestrator) begin(label string) *run {
	return &run{label: label, state: Idle, logger: o.logger, observer: o.observer}
}

// finishEarly ends an action that never reached the driver.
func (o *Orchestrator) finishEarly(label string, err error) (Outcome, error) {
	r := o.begin(label)
	if err != nil {
		r.to(Failed)
		return r.outcome(), err
	}
	r.to(Completed)
	return r.outcome(), nil
}

// perform runs one action through its full lifecycle. Sentinel insertion strictly
// precedes the action, which strictly precedes the completion wait. Arming happens
// inside each retry attempt so a marker is never left behind by a failed attempt.
func (o *Orchestrator) perform(ctx context.Context, t Target, s Sync, p wait.Policy, onTimeout wait.OnTimeout, st step) (Outcome, error) {
	r := o.begin(t.Label)
	var captured armed

	err := o.retrier.Run(ctx, t.Locator, t.Label, p, func(ctx context.Context, ref driver.ElementRef) error {
		r.to(TargetResolved)
		if st.check != nil {
			if err := st.check(ctx, ref); err != nil {
				return err
			}
		}

		a, err := o.arm(ctx, t, s)
		if err != nil {
			return err
		}
		if a.marker != "" {
			r.to(SentinelArmed)
		}

		if err := st.act(ctx, ref); err != nil {
			o.disarm(ctx, a)
			return err
		}
		captured = a
		return nil
	})
	if err != nil {
		r.to(Failed)
		return r.outcome(), err
	}
	r.to(ActionPerformed)

	if s.Mode == SyncNone {
		r.to(Completed)
		return r.outcome(), nil
	}

	r.to(AwaitingCompletion)
	completed, err := o.await(ctx, t, s, captured, p, onTimeout)
	switch {
	case err != nil:
		r.to(TimedOutError)
	case !completed:
		r.to(TimedOutWarned)
	default:
		r.to(Completed)
	}
	o.logger.Debug("Action finished.", zap.String("label", t.Label), zap.Stringer("sync", s.Mode), zap.Stringer("state", r.state))
	return r.outcome(), err
}

func (o *Orchestrator) arm(ctx context.Context, t Target, s Sync) (armed, error) {
	anchor := s.anchorOr(t.Locator)

	switch s.Mode {
	case SyncSentinel:
		id := o.sentinel.NewMarkerID()
		if _, err := o.sentinel.Insert(ctx, anchor, id, t.Label); err != nil {
			return armed{}, err
		}
		return armed{marker: id}, nil

	case SyncStale:
		ref, err := o.drv.Resolve(ctx, anchor)
		if err != nil {
			return armed{}, err
		}
		return armed{companion: ref}, nil

	case SyncAttribute:
		return armed{initial: o.detector.CaptureAttribute(ctx, anchor, s.attribute())}, nil
	}
	return armed{}, nil
}

func (o *Orchestrator) disarm(ctx context.Context, a armed) {
	if a.marker != "" {
		o.sentinel.Remove(ctx, a.marker)
	}
}

func (o *Orchestrator) await(ctx context.Context, t Target, s Sync, a armed, p wait.Policy, onTimeout wait.OnTimeout) (bool, error) {
	anchor := s.anchorOr(t.Locator)

	switch s.Mode {
	case SyncSentinel:
		return o.sentinel.WaitForRemoval(ctx, a.marker, t.Label, p, onTimeout)
	case SyncStale:
		done := o.detector.WaitForRefreshes(ctx, a.companion, anchor, s.refreshes(), p)
		return wait.Conclude(o.logger, done, onTimeout, t.Label, p)
	case SyncAttribute:
		done := o.detector.WaitForAttributeChange(ctx, anchor, s.attribute(), a.initial, p)
		return wait.Conclude(o.logger, done, onTimeout, t.Label, p)
	}
	return true, nil
}

// requireInteractable fails with ElementStateError unless ref is displayed and enabled.
func (o *Orchestrator) requireInteractable(ctx context.Context, ref driver.ElementRef, label string) error {
	shown, err := o.drv.IsDisplayed(ctx, ref)
	if err != nil {
		return err
	}
	if !shown {
		return &faults.ElementStateError{Label: label, State: "not displayed"}
	}
	enabled, err := o.drv.IsEnabled(ctx, ref)
	if err != nil {
		return err
	}
	if !enabled {
		return &faults.ElementStateError{Label: label, State: "not enabled"}
	}
	return nil
}

// resolveIntent turns a random intent into a concrete index.
func (o *Orchestrator) resolveIntent(intent selection.Intent, optionCount int) (selection.Intent, error) {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return selection.ResolveRandom(intent, optionCount, o.rng)
}
