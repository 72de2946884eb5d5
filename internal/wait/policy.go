// internal/wait/policy.go
package wait

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Policy is the immutable retry policy owned by a single call site. Copies are cheap
// and never share state.
type Policy struct {
	// Timeout bounds every completion wait.
	Timeout time.Duration
	// PollInterval is the fixed sleep between predicate evaluations and between
	// stale-reference retries.
	PollInterval time.Duration
	// MaxAttempts is the stale-reference retry budget.
	MaxAttempts int
	// SettleDelay is the pause between a transient placeholder write and the real one.
	SettleDelay time.Duration
}

// DefaultPolicy is the policy used when nothing is configured.
var DefaultPolicy = Policy{
	Timeout:      5 * time.Second,
	PollInterval: 250 * time.Millisecond,
	MaxAttempts:  3,
	SettleDelay:  250 * time.Millisecond,
}

// Validate enforces that the poll interval is positive and strictly less than the timeout.
func (p Policy) Validate() error {
	if p.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", p.Timeout)
	}
	if p.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", p.PollInterval)
	}
	if p.PollInterval >= p.Timeout {
		return fmt.Errorf("poll interval (%s) must be less than timeout (%s)", p.PollInterval, p.Timeout)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.SettleDelay < 0 {
		return fmt.Errorf("settle delay cannot be negative, got %s", p.SettleDelay)
	}
	return nil
}

func (p Policy) WithTimeout(d time.Duration) Policy {
	p.Timeout = d
	return p
}

func (p Policy) WithPollInterval(d time.Duration) Policy {
	p.PollInterval = d
	return p
}

func (p Policy) WithMaxAttempts(n int) Policy {
	p.MaxAttempts = n
	return p
}

// Defaults is the process-wide default policy. It is constructed once by the
// composition root and handed to whoever needs it. Readers take a snapshot at the start
// of each wait; writers go through the validating setters.
type Defaults struct {
	mu     sync.RWMutex
	policy Policy
}

// NewDefaults validates p and wraps it.
func NewDefaults(p Policy) (*Defaults, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default policy: %w", err)
	}
	return &Defaults{policy: p}, nil
}

// Policy returns a snapshot of the current defaults.
func (d *Defaults) Policy() Policy {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.policy
}

// Set replaces the defaults. The previous value is kept if p is invalid.
func (d *Defaults) Set(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	d.policy = p
	d.mu.Unlock()
	return nil
}

func (d *Defaults) SetTimeout(t time.Duration) error {
	return d.update(func(p Policy) Policy { return p.WithTimeout(t) })
}

func (d *Defaults) SetPollInterval(i time.Duration) error {
	return d.update(func(p Policy) Policy { return p.WithPollInterval(i) })
}

func (d *Defaults) SetMaxAttempts(n int) error {
	return d.update(func(p Policy) Policy { return p.WithMaxAttempts(n) })
}

func (d *Defaults) update(fn func(Policy) Policy) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	next := fn(d.policy)
	if err := next.Validate(); err != nil {
		return err
	}
	d.policy = next
	return nil
}

// OnTimeout tells a completion wait what to do when the deadline passes.
type OnTimeout int

const (
	// Raise turns a timeout into an ActionNotCompleteError.
	Raise OnTimeout = iota
	// Warn logs a warning and reports an incomplete outcome.
	Warn
)

func (o OnTimeout) String() string {
	if o == Warn {
		return "warn"
	}
	return "raise"
}

// ParseOnTimeout accepts "raise", "warn" and "continue". The empty string is Raise.
func ParseOnTimeout(s string) (OnTimeout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raise", "error":
		return Raise, nil
	case "warn", "continue":
		return Warn, nil
	}
	return Raise, fmt.Errorf("unknown on_timeout value '%s'", s)
}

// FromContinueFlag maps the legacy continue-on-timeout boolean.
func FromContinueFlag(continueOnTimeout bool) OnTimeout {
	if continueOnTimeout {
		return Warn
	}
	return Raise
}
