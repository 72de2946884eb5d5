// internal/selection/intent.go
package selection

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/faults"
)

// Mode is the comparison dimension of an Intent.
type Mode int

const (
	ModeIndex Mode = iota
	ModeVisibleText
	ModeHTMLValue
	ModeRegEx
	ModeRandomIndex
	ModeSkip
)

var modeNames = map[Mode]string{
	ModeIndex:       "index",
	ModeVisibleText: "visible_text",
	ModeHTMLValue:   "html_value",
	ModeRegEx:       "regex",
	ModeRandomIndex: "random_index",
	ModeSkip:        "skip",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// Intent is the desired option of a choice widget. Value holds the index, text, value
// or pattern depending on Mode; MinIndex is only read for ModeRandomIndex.
type Intent struct {
	Mode     Mode
	Value    string
	MinIndex int
}

func Index(i int) Intent              { return Intent{Mode: ModeIndex, Value: strconv.Itoa(i)} }
func VisibleText(s string) Intent     { return Intent{Mode: ModeVisibleText, Value: s} }
func HTMLValue(s string) Intent       { return Intent{Mode: ModeHTMLValue, Value: s} }
func RegEx(pattern string) Intent     { return Intent{Mode: ModeRegEx, Value: pattern} }
func RandomIndex(minIndex int) Intent { return Intent{Mode: ModeRandomIndex, MinIndex: minIndex} }
func Skip() Intent                    { return Intent{Mode: ModeSkip} }

func (i Intent) String() string {
	switch i.Mode {
	case ModeSkip:
		return "skip"
	case ModeRandomIndex:
		return fmt.Sprintf("random_index(>=%d)", i.MinIndex)
	}
	return fmt.Sprintf("%s(%q)", i.Mode, i.Value)
}

// ParseIntent builds an Intent from its textual mode name, as used in plan files.
func ParseIntent(mode, value string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "index":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return Intent{}, fmt.Errorf("index intent needs a non-negative integer, got '%s'", value)
		}
		return Index(n), nil
	case "visible_text", "text":
		return VisibleText(value), nil
	case "html_value", "value":
		return HTMLValue(value), nil
	case "regex", "pattern":
		if _, err := regexp.Compile(anchored(value)); err != nil {
			return Intent{}, fmt.Errorf("invalid selection pattern '%s': %w", value, err)
		}
		return RegEx(value), nil
	case "random_index", "random":
		minIndex := 0
		if strings.TrimSpace(value) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return Intent{}, fmt.Errorf("random intent needs a non-negative minimum index, got '%s'", value)
			}
			minIndex = n
		}
		return RandomIndex(minIndex), nil
	case "skip", "":
		return Skip(), nil
	}
	return Intent{}, fmt.Errorf("unknown selection mode '%s'", mode)
}

// By maps the intent onto the driver's selection dimension. Skip and unresolved random
// intents have no driver form.
func (i Intent) By() (driver.SelectBy, bool) {
	switch i.Mode {
	case ModeIndex:
		return driver.SelectByIndex, true
	case ModeVisibleText:
		return driver.SelectByVisibleText, true
	case ModeHTMLValue:
		return driver.SelectByValue, true
	case ModeRegEx:
		return driver.SelectByPattern, true
	}
	return 0, false
}

// NotFound builds the error for an intent no option satisfies.
func (i Intent) NotFound(label, reason string) *faults.SelectionNotFoundError {
	criterion := i.Value
	if i.Mode == ModeRandomIndex {
		criterion = ">=" + strconv.Itoa(i.MinIndex)
	}
	return &faults.SelectionNotFoundError{Label: label, Mode: i.Mode.String(), Criterion: criterion, Reason: reason}
}

// ResolveRandom turns a RandomIndex intent into a concrete Index intent drawn uniformly
// from [MinIndex, optionCount). Other intents are returned unchanged.
func ResolveRandom(i Intent, optionCount int, rng *rand.Rand) (Intent, error) {
	if i.Mode != ModeRandomIndex {
		return i, nil
	}
	if i.MinIndex < 0 || i.MinIndex >= optionCount {
		return Intent{}, fmt.Errorf("minimum index %d leaves no options out of %d", i.MinIndex, optionCount)
	}
	return Index(i.MinIndex + rng.Intn(optionCount-i.MinIndex)), nil
}

func anchored(pattern string) string {
	return "^(?:" + pattern + ")$"
}

// Matches reports whether text fully matches pattern. Invalid patterns never match.
func Matches(pattern, text string) bool {
	re, err := regexp.Compile(anchored(pattern))
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
