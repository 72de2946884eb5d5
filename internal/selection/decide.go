// internal/selection/decide.go
package selection

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/driver"
)

// Snapshot is the live selection of a widget captured for comparison. It has the same
// shape as driver.Selected and converts from it directly.
type Snapshot struct {
	VisibleText string
	HTMLValue   string
	Index       int
	Enabled     bool
	OptionCount int
}

// FromDriver converts a driver reading into a Snapshot.
func FromDriver(s driver.Selected) Snapshot {
	return Snapshot(s)
}

// Decision says whether a forced transition is needed before the real selection.
// FallbackIndex is only meaningful when ChangeNeeded is true.
type Decision struct {
	ChangeNeeded  bool
	FallbackIndex int
}

// Current reads the dimension of snap that future compares on. For a pattern intent
// the visible text is read, and if it already matches the pattern the pattern itself
// is returned so that the two compare equal.
func Current(future Intent, snap Snapshot) string {
	switch future.Mode {
	case ModeIndex:
		return strconv.Itoa(snap.Index)
	case ModeVisibleText:
		return snap.VisibleText
	case ModeHTMLValue:
		return snap.HTMLValue
	case ModeRegEx:
		if Matches(future.Value, snap.VisibleText) {
			return future.Value
		}
		return snap.VisibleText
	}
	return ""
}

// Decide compares the live selection with future. When the widget already shows the
// desired value a change is needed, through a fallback derived from the configured
// default slot. The fallback never equals the slot the widget currently sits on.
// Skip and unresolved random intents never need a change.
func Decide(snap Snapshot, future Intent, defaultIndex string, logger *zap.Logger) Decision {
	switch future.Mode {
	case ModeSkip, ModeRandomIndex:
		return Decision{}
	}

	if Current(future, snap) != future.Value {
		return Decision{ChangeNeeded: false}
	}

	fallback, err := FallbackIndex(defaultIndex)
	if err != nil && logger != nil {
		logger.Warn("Default index could not be parsed, using the first option as fallback.",
			zap.String("default_index", defaultIndex), zap.Error(err))
	}
	if fallback == snap.Index {
		fallback = alternate(snap.Index)
	}
	return Decision{ChangeNeeded: true, FallbackIndex: fallback}
}

// FallbackIndex picks the option to transition through: 1 when the default slot is 0,
// otherwise 0. An unparseable or negative default yields 0 and an error.
func FallbackIndex(defaultIndex string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(defaultIndex))
	if err != nil {
		return 0, fmt.Errorf("invalid default index '%s': %w", defaultIndex, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative default index %d", n)
	}
	if n == 0 {
		return 1, nil
	}
	return 0, nil
}

func alternate(index int) int {
	if index == 0 {
		return 1
	}
	return 0
}
