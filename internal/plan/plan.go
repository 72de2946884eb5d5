// internal/plan/plan.go
package plan

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/pagesync/internal/action"
	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/selection"
	"github.com/xkilldash9x/pagesync/internal/wait"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Step actions.
const (
	ActionClick   = "click"
	ActionEnter   = "enter"
	ActionToggle  = "toggle"
	ActionSelect  = "select"
	ActionWaitURL = "wait_url"
	ActionCollect = "collect"

	ActionSelectOnBlur = "select_blur"
	ActionAutoComplete = "autocomplete"
)

// Duration is a time.Duration written as a Go duration string ("750ms", "5s").
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Plan is a scripted sequence of synchronized actions on one page.
type Plan struct {
	Name string `json:"name"`
	// URL is loaded before the first step when set.
	URL       string          `json:"url,omitempty"`
	Policy    *PolicyOverride `json:"policy,omitempty"`
	OnTimeout string          `json:"on_timeout,omitempty"`
	Steps     []Step          `json:"steps"`
}

// PolicyOverride replaces individual fields of the process-wide policy.
type PolicyOverride struct {
	Timeout      Duration `json:"timeout,omitempty"`
	PollInterval Duration `json:"poll_interval,omitempty"`
	MaxAttempts  int      `json:"max_attempts,omitempty"`
	SettleDelay  Duration `json:"settle_delay,omitempty"`
}

func (o *PolicyOverride) apply(p wait.Policy) wait.Policy {
	if o == nil {
		return p
	}
	if o.Timeout > 0 {
		p.Timeout = time.Duration(o.Timeout)
	}
	if o.PollInterval > 0 {
		p.PollInterval = time.Duration(o.PollInterval)
	}
	if o.MaxAttempts > 0 {
		p.MaxAttempts = o.MaxAttempts
	}
	if o.SettleDelay > 0 {
		p.SettleDelay = time.Duration(o.SettleDelay)
	}
	return p
}

// SyncSpec is the JSON form of action.Sync.
type SyncSpec struct {
	Mode      string `json:"mode"`
	Anchor    string `json:"anchor,omitempty"`
	Attribute string `json:"attribute,omitempty"`
	Refreshes int    `json:"refreshes,omitempty"`
}

// Step is one action of a plan. Which fields apply depends on Action.
type Step struct {
	Action string `json:"action"`
	Label  string `json:"label,omitempty"`
	// Target is a locator string, see driver.ParseLocator.
	Target string    `json:"target,omitempty"`
	Sync   *SyncSpec `json:"sync,omitempty"`

	// enter, autocomplete: text; select: criterion; wait_url: URL fragment.
	Value string `json:"value,omitempty"`
	// toggle: desired state.
	Checked *bool `json:"checked,omitempty"`
	// select: intent mode (index, visible_text, html_value, regex, random_index, skip).
	// autocomplete: how Pick is read; html_value is not supported.
	Mode         string `json:"mode,omitempty"`
	DefaultIndex string `json:"default_index,omitempty"`
	// wait_url: contains (default), partial or exact.
	Match string `json:"match,omitempty"`
	// collect: attribute to read; empty reads text.
	Attribute string `json:"attribute,omitempty"`

	// autocomplete: suggestion container, suggestion entries (xpath or name), the
	// suggestion to pick and the characters needed before suggestions show.
	List      string `json:"list,omitempty"`
	Options   string `json:"options,omitempty"`
	Pick      string `json:"pick,omitempty"`
	MinLength int    `json:"min_length,omitempty"`

	Skip   bool `json:"skip,omitempty"`
	Append bool `json:"append,omitempty"`
	// toggle: fail instead of skipping when already in the desired state.
	Strict bool `json:"strict,omitempty"`

	Timeout   Duration `json:"timeout,omitempty"`
	OnTimeout string   `json:"on_timeout,omitempty"`
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = path
	}
	return p, nil
}

// Parse decodes and validates a plan.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every step without touching a page.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return errors.New("plan has no steps")
	}
	if _, err := wait.ParseOnTimeout(p.OnTimeout); err != nil {
		return err
	}
	if err := p.Policy.apply(wait.DefaultPolicy).Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	var errs []error
	for i, s := range p.Steps {
		if _, err := compile(s); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, s.name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s Step) name() string {
	if s.Label != "" {
		return s.Label
	}
	if s.Target != "" {
		return s.Target
	}
	return s.Action
}

// compiled is a validated step with its parsed parts.
type compiled struct {
	Step
	kind      string
	target    action.Target
	sync      action.Sync
	intent    selection.Intent
	onTimeout *wait.OnTimeout
	match     string
	list      driver.Locator
	options   driver.Locator
}

func (c *compiled) compileAutoComplete() error {
	intent, err := selection.ParseIntent(c.Mode, c.Pick)
	if err != nil {
		return err
	}
	switch intent.Mode {
	case selection.ModeHTMLValue:
		return errors.New("autocomplete picks by index, text or pattern")
	case selection.ModeSkip:
		if !c.Skip {
			return errors.New("autocomplete needs 'mode' and 'pick'")
		}
	}
	c.intent = intent

	if c.list, err = driver.ParseLocator(c.List); err != nil {
		return fmt.Errorf("invalid list: %w", err)
	}
	if c.options, err = driver.ParseLocator(c.Options); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	if _, err := c.options.Nth(0); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	if c.MinLength < 0 {
		return errors.New("min_length cannot be negative")
	}
	return nil
}

func compile(s Step) (compiled, error) {
	c := compiled{Step: s, kind: strings.ToLower(strings.TrimSpace(s.Action))}
	c.target.Label = s.name()

	needsTarget := true
	switch c.kind {
	case ActionClick, ActionEnter, ActionCollect:
	case ActionToggle:
		if s.Checked == nil && !s.Skip {
			return c, errors.New("toggle needs 'checked'")
		}
	case ActionSelect, ActionSelectOnBlur:
		intent, err := selection.ParseIntent(s.Mode, s.Value)
		if err != nil {
			return c, err
		}
		c.intent = intent
	case ActionAutoComplete:
		if err := c.compileAutoComplete(); err != nil {
			return c, err
		}
	case ActionWaitURL:
		needsTarget = false
		c.match = strings.ToLower(strings.TrimSpace(s.Match))
		switch c.match {
		case "", "contains":
			c.match = "contains"
			if s.Value == "" {
				return c, errors.New("wait_url contains needs a value")
			}
		case "partial", "exact":
		default:
			return c, fmt.Errorf("unknown url match '%s'", s.Match)
		}
	case "":
		return c, errors.New("missing action")
	default:
		return c, fmt.Errorf("unknown action '%s'", s.Action)
	}

	if needsTarget {
		loc, err := driver.ParseLocator(s.Target)
		if err != nil {
			return c, fmt.Errorf("invalid target: %w", err)
		}
		c.target.Locator = loc
	}

	if s.Sync != nil {
		mode, err := action.ParseSyncMode(s.Sync.Mode)
		if err != nil {
			return c, err
		}
		c.sync = action.Sync{Mode: mode, Attribute: s.Sync.Attribute, Refreshes: s.Sync.Refreshes}
		if s.Sync.Anchor != "" {
			anchor, err := driver.ParseLocator(s.Sync.Anchor)
			if err != nil {
				return c, fmt.Errorf("invalid sync anchor: %w", err)
			}
			c.sync.Anchor = anchor
		}
	}

	if s.OnTimeout != "" {
		ot, err := wait.ParseOnTimeout(s.OnTimeout)
		if err != nil {
			return c, err
		}
		c.onTimeout = &ot
	}
	if s.Timeout < 0 {
		return c, errors.New("timeout cannot be negative")
	}
	return c, nil
}
