// internal/plan/runner.go
package plan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/action"
	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/retry"
	"github.com/xkilldash9x/pagesync/internal/selection"
	"github.com/xkilldash9x/pagesync/internal/wait"
)

// Navigator is implemented by drivers that can load a URL.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Settings are the process-wide values a plan falls back to.
type Settings struct {
	Defaults         *wait.Defaults
	OnTimeout        wait.OnTimeout
	DefaultIndex     string
	ListMaxRefreshes int
}

// Runner executes plans against one page. It is not safe for concurrent use; run
// parallel plans on separate pages with separate runners.
type Runner struct {
	drv      driver.Driver
	orch     *action.Orchestrator
	settings Settings
	logger   *zap.Logger
	now      func() time.Time
}

// NewRunner binds a runner to a page driver and the orchestrator driving it.
func NewRunner(drv driver.Driver, orch *action.Orchestrator, s Settings, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.Defaults == nil {
		s.Defaults, _ = wait.NewDefaults(wait.DefaultPolicy)
	}
	if s.DefaultIndex == "" {
		s.DefaultIndex = "0"
	}
	return &Runner{
		drv:      drv,
		orch:     orch,
		settings: s,
		logger:   logger.Named("runner"),
		now:      time.Now,
	}
}

// Run executes p step by step and stops at the first failing step. The report is
// returned in every case; the error names the failing step.
func (r *Runner) Run(ctx context.Context, p *Plan) (*Report, error) {
	started := r.now()
	report := newReport(p, started)
	defer func() { report.Duration = Duration(r.now().Sub(started)) }()

	steps := make([]compiled, 0, len(p.Steps))
	for i, s := range p.Steps {
		c, err := compile(s)
		if err != nil {
			report.Succeeded = false
			return report, fmt.Errorf("step %d (%s): %w", i+1, s.name(), err)
		}
		steps = append(steps, c)
	}

	onTimeout := r.settings.OnTimeout
	if p.OnTimeout != "" {
		ot, err := wait.ParseOnTimeout(p.OnTimeout)
		if err != nil {
			report.Succeeded = false
			return report, err
		}
		onTimeout = ot
	}
	base := p.Policy.apply(r.settings.Defaults.Policy())

	logger := r.logger.With(zap.String("plan", p.Name), zap.String("run_id", report.RunID))
	if p.URL != "" {
		nav, ok := r.drv.(Navigator)
		if !ok {
			report.Succeeded = false
			return report, errors.New("driver cannot navigate")
		}
		if err := nav.Navigate(ctx, p.URL); err != nil {
			report.Succeeded = false
			return report, err
		}
	}

	for i, c := range steps {
		policy := base
		if c.Timeout > 0 {
			policy = policy.WithTimeout(time.Duration(c.Timeout))
		}
		ot := onTimeout
		if c.onTimeout != nil {
			ot = *c.onTimeout
		}

		stepStart := r.now()
		res := StepResult{Index: i + 1, Label: c.target.Label, Action: c.kind}

		var (
			out action.Outcome
			err error
		)
		if verr := policy.Validate(); verr != nil {
			out, err = action.Outcome{State: action.Failed}, fmt.Errorf("invalid policy: %w", verr)
		} else {
			out, res.Values, err = r.exec(ctx, c, policy, ot)
		}

		res.State = out.State.String()
		res.Completed = out.Completed
		res.Duration = Duration(r.now().Sub(stepStart))
		report.record(res, err)

		if err != nil {
			logger.Error("Step failed.",
				zap.Int("step", i+1),
				zap.String("label", res.Label),
				zap.String("action", res.Action),
				zap.Error(err))
			return report, fmt.Errorf("step %d (%s): %w", i+1, res.Label, err)
		}
		logger.Debug("Step finished.",
			zap.Int("step", i+1),
			zap.String("label", res.Label),
			zap.String("state", res.State))
	}

	logger.Info("Plan finished.",
		zap.Int("steps", len(report.Steps)),
		zap.Int("timeouts", report.Timeouts()))
	return report, nil
}

func (r *Runner) exec(ctx context.Context, c compiled, p wait.Policy, ot wait.OnTimeout) (action.Outcome, []string, error) {
	switch c.kind {
	case ActionClick:
		out, err := r.orch.PerformClickWithSync(ctx, c.target, c.sync, p, ot)
		return out, nil, err

	case ActionEnter:
		e := action.Entry{Value: c.Value, Skip: c.Skip, Append: c.Append}
		out, err := r.orch.PerformEntryWithSync(ctx, c.target, e, c.sync, p, ot)
		return out, nil, err

	case ActionToggle:
		tg := action.Toggle{Skip: c.Skip, VerifyInitialState: c.Strict}
		if c.Checked != nil {
			tg.Checked = *c.Checked
		}
		out, err := r.orch.PerformToggleWithSync(ctx, c.target, tg, c.sync, p, ot)
		return out, nil, err

	case ActionSelect:
		intent := c.intent
		if c.Skip {
			intent = selection.Skip()
		}
		defaultIndex := c.DefaultIndex
		if defaultIndex == "" {
			defaultIndex = r.settings.DefaultIndex
		}
		out, err := r.orch.PerformSelectionWithSync(ctx, c.target, action.Choice{Intent: intent, DefaultIndex: defaultIndex}, c.sync, p, ot)
		return out, nil, err

	case ActionSelectOnBlur:
		intent := c.intent
		if c.Skip {
			intent = selection.Skip()
		}
		out, err := r.orch.PerformSelectionOnBlurWithSync(ctx, c.target, intent, c.sync, p, ot)
		return out, nil, err

	case ActionAutoComplete:
		ac := action.AutoComplete{Value: c.Value, List: c.list, Options: c.options, Pick: c.intent, MinLength: c.MinLength}
		if c.Skip {
			ac.Pick = selection.Skip()
		}
		out, err := r.orch.PerformAutoCompleteWithSync(ctx, c.target, ac, c.sync, p, ot)
		return out, nil, err

	case ActionWaitURL:
		out, err := r.waitURL(ctx, c, p, ot)
		return out, nil, err

	case ActionCollect:
		values, err := r.orch.Retrier().Collect(ctx, c.target.Locator, c.target.Label, p, retry.CollectOptions{
			Attribute:    c.Attribute,
			MaxRefreshes: r.settings.ListMaxRefreshes,
		})
		if err != nil {
			return action.Outcome{State: action.Failed}, nil, err
		}
		return action.Outcome{Completed: true, State: action.Completed}, values, nil
	}
	return action.Outcome{State: action.Failed}, nil, fmt.Errorf("unknown action '%s'", c.kind)
}

func (r *Runner) waitURL(ctx context.Context, c compiled, p wait.Policy, ot wait.OnTimeout) (action.Outcome, error) {
	det := r.orch.Detector()

	var observed bool
	switch c.match {
	case "contains":
		observed = det.WaitForURLContains(ctx, c.Value, p)
	default:
		old := c.Value
		if old == "" {
			current, err := r.drv.CurrentURL(ctx)
			if err != nil {
				return action.Outcome{State: action.Failed}, err
			}
			old = current
		}
		match := wait.URLPartial
		if c.match == "exact" {
			match = wait.URLExact
		}
		observed = det.WaitForURLChange(ctx, old, match, p)
	}

	completed, err := wait.Conclude(r.logger, observed, ot, c.target.Label, p)
	switch {
	case err != nil:
		return action.Outcome{State: action.TimedOutError}, err
	case completed:
		return action.Outcome{Completed: true, State: action.Completed}, nil
	default:
		return action.Outcome{State: action.TimedOutWarned}, nil
	}
}
