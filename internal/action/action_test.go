// internal/action/action_test.go
package action

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/driver/memdom"
	"github.com/xkilldash9x/pagesync/internal/faults"
	"github.com/xkilldash9x/pagesync/internal/selection"
	"github.com/xkilldash9x/pagesync/internal/sentinel"
	"github.com/xkilldash9x/pagesync/internal/wait"
)

const fixture = `<html><body>
<div id="region">
  <input id="name" type="text" value="X">
  <input id="empty" type="text" value="">
  <button id="save">Save</button>
  <button id="noop">Noop</button>
  <button id="locked" disabled>Locked</button>
  <button id="ghost" style="display:none">Ghost</button>
  <input id="agree" type="checkbox">
  <input id="subscribed" type="checkbox" checked>
  <select id="country"><option value="a">Option A</option><option value="b">Option B</option><option value="c">Option C</option></select>
  <select id="tier"><option>Option A</option><option selected>Option B</option><option>Option C</option></select>
  <select id="single"><option>Only</option></select>
  <select id="none"></select>
  <input id="viewstate" type="hidden" value="vs-1">
  <input id="city" type="text" value="">
  <select id="lazy"><option>Alpha</option><option>Beta</option></select>
</div>
<div id="hits" style="display:none"><ul>
  <li id="hit-0" style="display:none">Paris, TX</li>
  <li id="hit-1">Paris, France</li>
  <li id="hit-2">Parish Hall</li>
</ul></div>
<div id="results"><span>rows</span></div>
</body></html>`

const settle = 77 * time.Millisecond

var (
	fast  = wait.Policy{Timeout: 5 * time.Second, PollInterval: 20 * time.Millisecond, MaxAttempts: 3, SettleDelay: settle}
	short = wait.Policy{Timeout: 200 * time.Millisecond, PollInterval: 20 * time.Millisecond, MaxAttempts: 3, SettleDelay: settle}
)

// recordingClock is the system clock that remembers every sleep.
type recordingClock struct {
	wait.SystemClock
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *recordingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return c.SystemClock.Sleep(ctx, d)
}

func (c *recordingClock) count(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.sleeps {
		if s == d {
			n++
		}
	}
	return n
}

type transition struct{ from, to State }

type harness struct {
	page  *memdom.Page
	orch  *Orchestrator
	clock *recordingClock
	logs  *observer.ObservedLogs

	mu          sync.Mutex
	transitions []transition
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	page, err := memdom.Parse(fixture, logger)
	require.NoError(t, err)
	t.Cleanup(page.Close)
	page.HandleScript(sentinel.InsertScript, memdom.AppendChild)
	page.HandleScript(sentinel.RemoveScript, memdom.RemoveByID)

	h := &harness{page: page, clock: &recordingClock{}, logs: logs}
	opts = append([]Option{
		WithClock(h.clock),
		WithObserver(func(_ string, from, to State) {
			h.mu.Lock()
			h.transitions = append(h.transitions, transition{from, to})
			h.mu.Unlock()
		}),
	}, opts...)
	h.orch = New(page, logger, opts...)
	return h
}

func (h *harness) states() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := []State{}
	for _, tr := range h.transitions {
		out = append(out, tr.to)
	}
	return out
}

func (h *harness) warnings() int {
	return h.logs.FilterLevelExact(zapcore.WarnLevel).Len()
}

// refreshOn re-renders the region some time after event fires on id.
func (h *harness) refreshOn(id, event, region string, after time.Duration) {
	h.page.On(id, event, func(p *memdom.Page) {
		p.After(after, func(d *memdom.Document) { d.Refresh(region) })
	})
}

func target(id, label string) Target {
	return Target{Locator: driver.ID(id), Label: label}
}

func TestClickWithSentinel(t *testing.T) {
	ctx := context.Background()

	t.Run("update removes the marker", func(t *testing.T) {
		h := newHarness(t)
		h.refreshOn("save", memdom.EventClick, "region", 400*time.Millisecond)

		out, err := h.orch.PerformClickWithSync(ctx, target("save", "Save"), SentinelSync(driver.ID("region")), fast, wait.Raise)
		require.NoError(t, err)
		assert.Equal(t, Outcome{Completed: true, State: Completed}, out)
		assert.Equal(t, []State{TargetResolved, SentinelArmed, ActionPerformed, AwaitingCompletion, Completed}, h.states())
		assert.Zero(t, h.clock.count(settle))
	})

	t.Run("no update raises with label", func(t *testing.T) {
		h := newHarness(t)
		out, err := h.orch.PerformClickWithSync(ctx, target("noop", "Apply filters"), SentinelSync(driver.ID("region")), short, wait.Raise)

		var notComplete *faults.ActionNotCompleteError
		require.ErrorAs(t, err, &notComplete)
		assert.Contains(t, err.Error(), "Apply filters")
		assert.Equal(t, TimedOutError, out.State)
		assert.False(t, strings.Contains(h.page.HTML(), sentinel.DefaultTag), "marker cleaned up")
	})

	t.Run("no update warns", func(t *testing.T) {
		h := newHarness(t)
		out, err := h.orch.PerformClickWithSync(ctx, target("noop", "Apply filters"), SentinelSync(driver.ID("region")), short, wait.Warn)

		require.NoError(t, err)
		assert.Equal(t, Outcome{Completed: false, State: TimedOutWarned}, out)
		assert.Equal(t, 1, h.warnings())
	})

	t.Run("anchor defaults to target", func(t *testing.T) {
		h := newHarness(t)
		h.refreshOn("save", memdom.EventClick, "region", 30*time.Millisecond)
		out, err := h.orch.PerformClickWithSync(ctx, target("save", "Save"), Sync{Mode: SyncSentinel}, fast, wait.Raise)
		require.NoError(t, err)
		assert.True(t, out.Completed)
	})
}

func TestClickPreconditions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		id, state string
	}{
		{"locked", "not enabled"},
		{"ghost", "not displayed"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			h := newHarness(t)
			out, err := h.orch.PerformClickWithSync(ctx, target(tt.id, "Button"), SentinelSync(driver.ID("region")), fast, wait.Raise)

			var stateErr *faults.ElementStateError
			require.ErrorAs(t, err, &stateErr)
			assert.Equal(t, tt.state, stateErr.State)
			assert.Equal(t, Failed, out.State)
			assert.NotContains(t, h.page.HTML(), sentinel.DefaultTag, "precondition fails before arming")
		})
	}

	t.Run("missing target", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.orch.PerformClickWithSync(ctx, target("nope", "Nope"), NoSync(), fast, wait.Raise)
		var actionErr *faults.ElementActionError
		require.ErrorAs(t, err, &actionErr)
		assert.Equal(t, "Nope", actionErr.Label)
	})
}

func TestClickWithAttributeSync(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.page.On("save", memdom.EventClick, func(p *memdom.Page) {
		p.After(40*time.Millisecond, func(d *memdom.Document) { d.SetAttr("viewstate", "value", "vs-2") })
	})

	out, err := h.orch.PerformClickWithSync(ctx, target("save", "Save"), AttributeSync(driver.ID("viewstate"), ""), fast, wait.Raise)
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.NotContains(t, h.states(), SentinelArmed)
}

func TestEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("same non-empty value writes a placeholder first", func(t *testing.T) {
		h := newHarness(t)
		h.refreshOn("name", memdom.EventChange, "region", 30*time.Millisecond)

		out, err := h.orch.PerformEntryWithSync(ctx, target("name", "Name"), Entry{Value: "X"}, SentinelSync(driver.ID("region")), fast, wait.Raise)
		require.NoError(t, err)
		assert.True(t, out.Completed)
		assert.Equal(t, []string{"", "X"}, h.page.Writes("name"))
		assert.Equal(t, 1, h.clock.count(settle))
	})

	t.Run("placeholder update lands before the real write", func(t *testing.T) {
		h := newHarness(t)
		var mu sync.Mutex
		refreshes := 0
		h.page.On("name", memdom.EventChange, func(p *memdom.Page) {
			p.After(150*time.Millisecond, func(d *memdom.Document) {
				d.Refresh("region")
				mu.Lock()
				refreshes++
				mu.Unlock()
			})
		})

		out, err := h.orch.PerformEntryWithSync(ctx, target("name", "Name"), Entry{Value: "X"}, SentinelSync(driver.ID("region")), fast, wait.Raise)
		require.NoError(t, err)
		assert.Equal(t, Outcome{Completed: true, State: Completed}, out)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 2, refreshes, "both writes must have landed when the entry returns")
		assert.Equal(t, []string{"", "X"}, h.page.Writes("name"))
	})

	t.Run("placeholder timeout raises before the real write", func(t *testing.T) {
		h := newHarness(t)
		out, err := h.orch.PerformEntryWithSync(ctx, target("name", "Name"), Entry{Value: "X"}, SentinelSync(driver.ID("region")), short, wait.Raise)
		var notComplete *faults.ActionNotCompleteError
		require.ErrorAs(t, err, &notComplete)
		assert.Equal(t, TimedOutError, out.State)
		assert.Equal(t, []string{""}, h.page.Writes("name"))
	})

	t.Run("different value writes once", func(t *testing.T) {
		h := newHarness(t)
		h.refreshOn("name", memdom.EventChange, "region", 30*time.Millisecond)

		out, err := h.orch.PerformEntryWithSync(ctx, target("name", "Name"), Entry{Value: "Y"}, SentinelSync(driver.ID("region")), fast, wait.Raise)
		require.NoError(t, err)
		assert.True(t, out.Completed)
		assert.Equal(t, []string{"Y"}, h.page.Writes("name"))
		assert.Zero(t, h.clock.count(settle))
	})

	t.Run("empty into empty is a no-op", func(t *testing.T) {
		h := newHarness(t)
		out, err := h.orch.PerformEntryWithSync(ctx, target("empty", "Comment"), Entry{Value: ""}, SentinelSync(driver.ID("region")), fast, wait.Raise)
		require.NoError(t, err)
		assert.Equal(t, Outcome{Completed: true, State: Completed}, out)
		assert.Empty(t, h.page.Writes("empty"))
		assert.Equal(t, []State{Completed}, h.states())
	})

	t.Run("skip", func(t *testing.T) {
		h := newHarness(t)
		out, err := h.orch.PerformEntryWithSync(ctx, target("name", "Name"), Entry{Value: "Z", Skip: true}, NoSync(), fast, wait.Raise)
		require.NoError(t, err)
		assert.True(t, out.Completed)
		assert.Empty(t, h.page.Writes("name"))
	})

	t.Run("append", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.orch.PerformEntryWithSync(ctx, target("name", "Name"), Entry{Value: "X", Append: true}, NoSync(), fast, wait.Raise)
		require.NoError(t, err)
		assert.Equal(t, []string{"XX"}, h.page.Writes("name"))
	})
}

func TestToggle(t *testing.T) {
	ctx := context.Background()

	t.Run("stale companion sync", func(t *testing.T) {
		h := newHarness(t)
		h.refreshOn("agree", memdom.EventChange, "results", 40*time.Millisecond)

		out, err := h.orch.PerformToggleWithSync(ctx, target("agree", "Agree"), Toggle{Checked: true}, StaleSync(driver.ID("results"), 1), fast, wait.Raise)
		require.NoError(t, err)
		assert.True(t, out.Completed)

		ref, err := h.page.Resolve(ctx, driver.ID("agree"))
		require.NoError(t, err)
		checked, err := h.page.IsChecked(ctx, ref)
		require.NoError(t, err)
		assert.True(t, checked)
	})

	t.Run("companion never refreshes", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.orch.PerformToggleWithSync(ctx, target("agree", "Agree"), Toggle{Checked: true}, StaleSync(driver.ID("results"), 1), short, wait.Raise)
		var notComplete *faults.ActionNotCompleteError
		assert.ErrorAs(t, err, &notComplete)
	})

	t.Run("already in state is left alone", func(t *testing.T) {
		h := newHarness(t)
		changes := 0
		h.page.On("subscribed", memdom.EventChange, func(*memdom.Page) { changes++ })

		out, err := h.orch.PerformToggleWithSync(ctx, target("subscribed", "Newsletter"), Toggle{Checked: true}, NoSync(), fast, wait.Raise)
		require.NoError(t, err)
		assert.True(t, out.Completed)
		assert.Zero(t, changes)
	})

	t.Run("strict initial state", func(t *testing.T) {
		h := newHarness(t)
		out, err := h.orch.PerformToggleWithSync(ctx, target("subscribed", "Newsletter"), Toggle{Checked: true, VerifyInitialState: true}, NoSync(), fast, wait.Raise)
		var wrong *faults.WrongInitialStateError
		require.ErrorAs(t, err, &wrong)
		assert.Equal(t, "Newsletter", wrong.Label)
		assert.True(t, wrong.Checked)
		assert.Equal(t, Failed, out.State)
	})

	t.Run("skip", func(t *testing.T) {
		h := newHarness(t)
		out, err := h.orch.PerformToggleWithSync(ctx, target("agree", "Agree"), Toggle{Checked: true, Skip: true}, NoSync(), fast, wait.Raise)
		require.NoError(t, err)
		assert.True(t, out.Completed)
	})
}

func TestSelection(t *testing.T) {
	ctx := context.Background()

	countChanges := func(h *harness, id string) *int {
		n := 0
		h.page.On(id, memdom.EventChange, func(*memdom.Page) { n++ })
		return &n
	}
	current := func(t *testing.T, h *harness, id string) driver.Selected {
		ref, err := h.page.Resolve(ctx, driver.ID(id))
		require.NoError(t, err)
		sel, err := h.page.Selection(ctx, ref)
		require.NoError(t, err)
		return sel
	}

	t.Run("equal value forces a transition first", func(t *testing.T) {
		h := newHarness(t)
		changes := countChanges(h, "country")

		out, err := h.orch.PerformSelectionWithSync(ctx, target("country", "Country"), Choice{Intent: selection.VisibleText("Option A"), DefaultIndex: "0"}, NoSync(), fast, wait.Raise)
		require.NoError(t, err)
		assert.True(t, out.Completed)
		assert.Equal(t, 2, *changes)
		assert.Equal(t, "Option A", current(t, h, "country").VisibleText)
	})

	t.Run("forced transition leaves a non-default slot", func(t *testing.T) {
		h := newHarness(t)
		var indexes []int
		h.page.On("tier", memdom.EventChange, func(*memdom.Page) {
			indexes = append(indexes, current(t, h, "tier").Index)
		})

		out, err := h.orch.PerformSelectionWithSync(ctx, target("tier", "Tier"), Choice{Intent: selection.VisibleText("Option B"), DefaultIndex: "0"}, NoSync(), fast, wait.Raise)
		require.NoError(t, err)
		assert.True(t, out.Completed)
		assert.Equal(t, []int{0, 1}, indexes, "the widget must visit another option before returning")
	})

	t.Run("forced transition with sentinel sync", func(t *testing.T) {
		h := newHarness(t)
		h.refreshOn("country", memdom.EventChange, "region", 30*time.Millisecond)

		out, err := h.orch.PerformSelectionWithSync(ctx, target("country", "Country"), Choice{Intent: selection.HTMLValue("a")}, SentinelSync(driver.ID("region")), fast, wait.Raise)
		require.NoError(t, err)
		assert.True(t, out.Completed)
		assert.Equal(t, "a", current(t, h, "country").HTMLValue)
	})

	t.Run("different value selects once", func(t *testing.T) {
		h := newHarness(t)
		changes := countChanges(h, "country")

		_, err := h.orch.PerformSelectionWithSync(ctx, target("country", "Country"), Choice{Intent: selection.RegEx("Option [C]")}, NoSync(), fast, wait.Raise)
		require.NoError(t, err)
		assert.Equal(t, 1, *changes)
		assert.Equal(t, 2, current(t, h, "country").Index)
	})

	t.Run("single option already selected is verify-only", func(t *testing.T) {
		h := newHarness(t)
		changes := countChanges(h, "single")

		out, err := h.orch.PerformSelectionWithSync(ctx, target("single", "Plan"), Choice{Intent: selection.VisibleText("Only")}, SentinelSync(driver.ID("region")), fast, wait.Raise)
		require.NoError(t, err)
		assert.Equal(t, Outcome{Completed: true, State: Completed}, out)
		assert.Zero(t, *changes)
		assert.Equal(t, 1, h.warnings())
	})

	t.Run("single option without a match", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.orch.PerformSelectionWithSync(ctx, target("single", "Plan"), Choice{Intent: selection.VisibleText("Gold")}, NoSync(), fast, wait.Raise)
		var notFound *faults.SelectionNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "Gold", notFound.Criterion)
		assert.Equal(t, "Plan", notFound.Label)
	})

	t.Run("no options", func(t *testing.T) {
		h := newHarness(t)
		out, err := h.orch.PerformSelectionWithSync(ctx, target("none", "Region"), Choice{Intent: selection.Index(0)}, NoSync(), fast, wait.Raise)
		var notFound *faults.SelectionNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Contains(t, notFound.Reason, "no options")
		assert.Equal(t, Failed, out.State)
	})

	t.Run("random index", func(t *testing.T) {
		h := newHarness(t, WithRand(rand.New(rand.NewSource(3))))
		_, err := h.orch.PerformSelectionWithSync(ctx, target("country", "Country"), Choice{Intent: selection.RandomIndex(1)}, NoSync(), fast, wait.Raise)
		require.NoError(t, err)
		assert.Contains(t, []int{1, 2}, current(t, h, "country").Index)
	})

	t.Run("random index out of range", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.orch.PerformSelectionWithSync(ctx, target("country", "Country"), Choice{Intent: selection.RandomIndex(5)}, NoSync(), fast, wait.Raise)
		var notFound *faults.SelectionNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("skip", func(t *testing.T) {
		h := newHarness(t)
		changes := countChanges(h, "country")
		out, err := h.orch.PerformSelectionWithSync(ctx, target("country", "Country"), Choice{Intent: selection.Skip()}, NoSync(), fast, wait.Raise)
		require.NoError(t, err)
		assert.True(t, out.Completed)
		assert.Zero(t, *changes)
	})
}

func TestAutoComplete(t *testing.T) {
	ctx := context.Background()
	options := driver.XPath("//div[@id='hits']//li")

	// showHits makes the suggestion list appear shortly after the field changes.
	showHits := func(h *harness) {
		h.page.On("city", memdom.EventChange, func(p *memdom.Page) {
			p.After(30*time.Millisecond, func(d *memdom.Document) { d.RemoveAttr("hits", "style") })
		})
	}
	clicks := func(h *harness, ids ...string) map[string]int {
		var mu sync.Mutex
		n := map[string]int{}
		for _, id := range ids {
			id := id
			h.page.On(id, memdom.EventClick, func(*memdom.Page) {
				mu.Lock()
				n[id]++
				mu.Unlock()
			})
		}
		return n
	}

	t.Run("picks by text under sentinel sync", func(t *testing.T) {
		h := newHarness(t)
		showHits(h)
		clicked := clicks(h, "hit-0", "hit-1", "hit-2")
		h.refreshOn("hit-2", memdom.EventClick, "region", 30*time.Millisecond)

		ac := AutoComplete{Value: "Par", List: driver.ID("hits"), Options: options, Pick: selection.VisibleText("Hall"), MinLength: 3}
		out, err := h.orch.PerformAutoCompleteWithSync(ctx, target("city", "City"), ac, SentinelSync(driver.ID("region")), fast, wait.Raise)
		require.NoError(t, err)
		assert.Equal(t, Outcome{Completed: true, State: Completed}, out)
		assert.Equal(t, []string{"Par"}, h.page.Writes("city"))
		assert.Equal(t, map[string]int{"hit-2": 1}, clicked)
		assert.Zero(t, h.warnings())
	})

	t.Run("index skips hidden suggestions", func(t *testing.T) {
		h := newHarness(t)
		showHits(h)
		clicked := clicks(h, "hit-0", "hit-1", "hit-2")

		ac := AutoComplete{Value: "Par", List: driver.ID("hits"), Options: options, Pick: selection.Index(0)}
		_, err := h.orch.PerformAutoCompleteWithSync(ctx, target("city", "City"), ac, NoSync(), fast, wait.Raise)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"hit-1": 1}, clicked)
	})

	t.Run("list never appears for a short value", func(t *testing.T) {
		h := newHarness(t)
		ac := AutoComplete{Value: "P", List: driver.ID("hits"), Options: options, Pick: selection.Index(0), MinLength: 3}
		out, err := h.orch.PerformAutoCompleteWithSync(ctx, target("city", "City"), ac, NoSync(), short, wait.Raise)
		var notFound *faults.SelectionNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Contains(t, notFound.Reason, "suggestions need 3")
		assert.Equal(t, Failed, out.State)
	})

	t.Run("list appearing early is only a warning", func(t *testing.T) {
		h := newHarness(t)
		showHits(h)
		ac := AutoComplete{Value: "P", List: driver.ID("hits"), Options: options, Pick: selection.Index(0), MinLength: 3}
		_, err := h.orch.PerformAutoCompleteWithSync(ctx, target("city", "City"), ac, NoSync(), fast, wait.Raise)
		require.NoError(t, err)
		assert.Equal(t, 1, h.warnings())
	})

	t.Run("no suggestion matches", func(t *testing.T) {
		h := newHarness(t)
		showHits(h)
		ac := AutoComplete{Value: "Par", List: driver.ID("hits"), Options: options, Pick: selection.VisibleText("Lyon")}
		_, err := h.orch.PerformAutoCompleteWithSync(ctx, target("city", "City"), ac, NoSync(), fast, wait.Raise)
		var notFound *faults.SelectionNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "Lyon", notFound.Criterion)
	})
}

func TestSelectionOnBlur(t *testing.T) {
	ctx := context.Background()

	blurs := func(h *harness) *int {
		n := 0
		h.page.On("lazy", memdom.EventBlur, func(*memdom.Page) { n++ })
		return &n
	}

	t.Run("moved selection blurs under sync", func(t *testing.T) {
		h := newHarness(t)
		n := blurs(h)
		h.refreshOn("lazy", memdom.EventBlur, "region", 30*time.Millisecond)

		out, err := h.orch.PerformSelectionOnBlurWithSync(ctx, target("lazy", "Lazy"), selection.VisibleText("Beta"), SentinelSync(driver.ID("region")), fast, wait.Raise)
		require.NoError(t, err)
		assert.Equal(t, Outcome{Completed: true, State: Completed}, out)
		assert.Equal(t, 1, *n)
	})

	t.Run("unchanged selection waits for nothing", func(t *testing.T) {
		h := newHarness(t)
		n := blurs(h)

		out, err := h.orch.PerformSelectionOnBlurWithSync(ctx, target("lazy", "Lazy"), selection.VisibleText("Alpha"), SentinelSync(driver.ID("region")), short, wait.Raise)
		require.NoError(t, err)
		assert.True(t, out.Completed)
		assert.Zero(t, *n)
		assert.NotContains(t, h.page.HTML(), sentinel.DefaultTag)
	})

	t.Run("blur without an update times out", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.orch.PerformSelectionOnBlurWithSync(ctx, target("lazy", "Lazy"), selection.Index(1), SentinelSync(driver.ID("region")), short, wait.Raise)
		var notComplete *faults.ActionNotCompleteError
		assert.ErrorAs(t, err, &notComplete)
	})
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, CanTransition(Idle, TargetResolved))
	assert.True(t, CanTransition(SentinelArmed, TargetResolved), "stale retry re-resolves")
	assert.True(t, CanTransition(AwaitingCompletion, TimedOutWarned))
	assert.False(t, CanTransition(Idle, ActionPerformed))
	assert.False(t, CanTransition(Completed, Idle))
	for _, s := range []State{Completed, TimedOutWarned, TimedOutError, Failed} {
		assert.True(t, s.Terminal(), s.String())
	}
	assert.Equal(t, "sentinel_armed", SentinelArmed.String())
}

func TestParseSyncMode(t *testing.T) {
	for in, want := range map[string]SyncMode{"": SyncNone, "sentinel": SyncSentinel, "STALE": SyncStale, "transaction": SyncAttribute} {
		got, err := ParseSyncMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseSyncMode("magic")
	assert.Error(t, err)
}
