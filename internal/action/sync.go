// internal/action/sync.go
package action

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/pagesync/internal/driver"
)

// SyncMode selects the completion signal awaited after an action.
type SyncMode int

const (
	// SyncNone performs the action and returns.
	SyncNone SyncMode = iota
	// SyncSentinel plants a marker under Anchor and waits for the update to raze it.
	SyncSentinel
	// SyncStale waits for the companion element at Anchor to be replaced.
	SyncStale
	// SyncAttribute waits for an attribute of the element at Anchor to change.
	SyncAttribute
)

func (m SyncMode) String() string {
	switch m {
	case SyncSentinel:
		return "sentinel"
	case SyncStale:
		return "stale"
	case SyncAttribute:
		return "attribute"
	default:
		return "none"
	}
}

// ParseSyncMode accepts the names produced by String.
func ParseSyncMode(s string) (SyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SyncNone, nil
	case "sentinel", "marker":
		return SyncSentinel, nil
	case "stale", "refresh":
		return SyncStale, nil
	case "attribute", "transaction":
		return SyncAttribute, nil
	}
	return SyncNone, fmt.Errorf("unknown sync mode '%s'", s)
}

// Sync describes how completion of an action is detected. A zero Anchor means the
// action target itself.
type Sync struct {
	Mode   SyncMode
	Anchor driver.Locator
	// Attribute read in SyncAttribute mode. Defaults to "value".
	Attribute string
	// Refreshes required in SyncStale mode. Defaults to 1.
	Refreshes int
}

// NoSync performs actions without waiting.
func NoSync() Sync { return Sync{Mode: SyncNone} }

// SentinelSync waits for a marker planted under anchor to be removed.
func SentinelSync(anchor driver.Locator) Sync {
	return Sync{Mode: SyncSentinel, Anchor: anchor}
}

// StaleSync waits for the companion element to be replaced refreshes times.
func StaleSync(companion driver.Locator, refreshes int) Sync {
	return Sync{Mode: SyncStale, Anchor: companion, Refreshes: refreshes}
}

// AttributeSync waits for attribute of the element at loc to change, such as the
// value of a hidden view-state or transaction id field.
func AttributeSync(loc driver.Locator, attribute string) Sync {
	return Sync{Mode: SyncAttribute, Anchor: loc, Attribute: attribute}
}

func (s Sync) anchorOr(target driver.Locator) driver.Locator {
	if s.Anchor.IsZero() {
		return target
	}
	return s.Anchor
}

func (s Sync) attribute() string {
	if s.Attribute == "" {
		return "value"
	}
	return s.Attribute
}

func (s Sync) refreshes() int {
	if s.Refreshes < 1 {
		return 1
	}
	return s.Refreshes
}
