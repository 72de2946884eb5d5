// internal/selection/suggest.go
package selection

import (
	"fmt"
	"strconv"
	"strings"
)

// Suggestion is one entry of an autocomplete list as read from the page.
type Suggestion struct {
	Text      string
	Displayed bool
}

// PickSuggestion returns the position of the entry to click. Hidden entries are never
// picked. An index intent takes the first displayed entry at or after the index, a
// visible text intent the first displayed entry containing the text, and a pattern
// intent the first displayed entry the pattern fully matches. Random intents must be
// resolved first.
func PickSuggestion(pick Intent, list []Suggestion) (int, error) {
	if len(list) == 0 {
		return -1, fmt.Errorf("suggestion list is empty")
	}

	var match func(i int, s Suggestion) bool
	switch pick.Mode {
	case ModeIndex:
		from, err := strconv.Atoi(pick.Value)
		if err != nil {
			return -1, fmt.Errorf("invalid index '%s'", pick.Value)
		}
		match = func(i int, _ Suggestion) bool { return i >= from }
	case ModeVisibleText:
		match = func(_ int, s Suggestion) bool { return strings.Contains(s.Text, pick.Value) }
	case ModeRegEx:
		match = func(_ int, s Suggestion) bool { return Matches(pick.Value, s.Text) }
	default:
		return -1, fmt.Errorf("suggestions cannot be picked by %s", pick.Mode)
	}

	for i, s := range list {
		if s.Displayed && match(i, s) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("no displayed suggestion out of %d", len(list))
}
