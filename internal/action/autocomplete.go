// internal/action/autocomplete.go
package action

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/faults"
	"github.com/xkilldash9x/pagesync/internal/retry"
	"github.com/xkilldash9x/pagesync/internal/selection"
	"github.com/xkilldash9x/pagesync/internal/wait"
)

// AutoComplete describes typing into a field that opens a suggestion list and
// picking one of the suggestions.
type AutoComplete struct {
	// Value is typed into the target field.
	Value string
	// List is the suggestion container that appears after typing.
	List driver.Locator
	// Options matches every suggestion entry. It must be an XPath or name locator
	// so a single entry can be addressed again after a re-render.
	Options driver.Locator
	// Pick chooses the entry: Index (first displayed at or after), VisibleText
	// (first displayed containing), RegEx or RandomIndex.
	Pick selection.Intent
	// MinLength is the number of characters the page needs before it suggests
	// anything. Zero disables the check.
	MinLength int
}

// PerformAutoCompleteWithSync types ac.Value into the target, waits for the
// suggestion list to be displayed and clicks the chosen suggestion under s. Only the
// click is synchronized; typing is not expected to trigger an update of its own.
func (o *Orchestrator) PerformAutoCompleteWithSync(ctx context.Context, t Target, ac AutoComplete, s Sync, p wait.Policy, onTimeout wait.OnTimeout) (Outcome, error) {
	if ac.Pick.Mode == selection.ModeSkip {
		o.logger.Info("Skipped auto complete.", zap.String("label", t.Label))
		return o.finishEarly(t.Label, nil)
	}

	if out, err := o.perform(ctx, t, NoSync(), p, onTimeout, o.writeStep(t, ac.Value, true)); err != nil {
		return out, err
	}

	short := ac.MinLength > 0 && utf8.RuneCountInString(ac.Value) < ac.MinLength
	if !o.detector.WaitForDisplayed(ctx, ac.List, p) {
		reason := "suggestion list did not appear before timeout"
		if short {
			reason = fmt.Sprintf("%d characters entered, suggestions need %d", utf8.RuneCountInString(ac.Value), ac.MinLength)
		}
		return o.finishEarly(t.Label, ac.Pick.NotFound(t.Label, reason))
	}
	if short {
		o.logger.Warn("Suggestion list appeared for fewer characters than expected.",
			zap.String("label", t.Label), zap.Int("entered", utf8.RuneCountInString(ac.Value)), zap.Int("min_length", ac.MinLength))
	}

	list, err := o.readSuggestions(ctx, t.Label, ac.Options, p)
	if err != nil {
		return o.finishEarly(t.Label, err)
	}

	pick, err := o.resolveIntent(ac.Pick, len(list))
	if err != nil {
		return o.finishEarly(t.Label, ac.Pick.NotFound(t.Label, err.Error()))
	}
	i, err := selection.PickSuggestion(pick, list)
	if err != nil {
		return o.finishEarly(t.Label, ac.Pick.NotFound(t.Label, err.Error()))
	}
	loc, err := ac.Options.Nth(i)
	if err != nil {
		return o.finishEarly(t.Label, err)
	}

	o.logger.Debug("Picking suggestion.", zap.String("label", t.Label), zap.Int("index", i), zap.String("text", list[i].Text))
	suggestion := Target{Locator: loc, Label: fmt.Sprintf("%s suggestion '%s'", t.Label, list[i].Text)}
	return o.perform(ctx, suggestion, s, p, onTimeout, step{
		check: func(ctx context.Context, ref driver.ElementRef) error {
			return o.requireInteractable(ctx, ref, suggestion.Label)
		},
		act: o.drv.Click,
	})
}

// readSuggestions reads every entry matched by loc. A re-render during the read
// starts it over, within the stale retry budget.
func (o *Orchestrator) readSuggestions(ctx context.Context, label string, loc driver.Locator, p wait.Policy) ([]selection.Suggestion, error) {
	list, err := retry.Do(ctx, o.retrier, loc, label, p, func(ctx context.Context, _ driver.ElementRef) ([]selection.Suggestion, error) {
		refs, err := o.drv.ResolveAll(ctx, loc)
		if err != nil {
			return nil, err
		}
		out := make([]selection.Suggestion, 0, len(refs))
		for _, ref := range refs {
			shown, err := o.drv.IsDisplayed(ctx, ref)
			if err != nil {
				return nil, err
			}
			text, err := o.drv.Text(ctx, ref)
			if err != nil {
				return nil, err
			}
			out = append(out, selection.Suggestion{Text: text, Displayed: shown})
		}
		return out, nil
	})
	if errors.Is(err, faults.ErrNotFound) {
		return nil, &faults.SelectionNotFoundError{Label: label, Mode: "suggestion", Criterion: loc.String(), Reason: "suggestion list has no entries"}
	}
	return list, err
}
