// internal/driver/locator.go
package driver

import (
	"fmt"
	"strings"
)

// Strategy is how a Locator finds elements.
type Strategy string

const (
	ByID    Strategy = "id"
	ByCSS   Strategy = "css"
	ByXPath Strategy = "xpath"
	ByName  Strategy = "name"
)

// Locator is a re-resolvable description of an element. Unlike an ElementRef it never
// goes stale.
type Locator struct {
	By    Strategy
	Value string
}

// ID is shorthand for an id locator.
func ID(id string) Locator { return Locator{By: ByID, Value: id} }

// CSS is shorthand for a CSS selector locator.
func CSS(sel string) Locator { return Locator{By: ByCSS, Value: sel} }

// XPath is shorthand for an XPath locator.
func XPath(expr string) Locator { return Locator{By: ByXPath, Value: expr} }

// Name is shorthand for a name attribute locator.
func Name(name string) Locator { return Locator{By: ByName, Value: name} }

func (l Locator) String() string {
	return string(l.By) + "=" + l.Value
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool {
	return l.Value == ""
}

// Nth narrows l to its i-th match, counting from zero, as an XPath locator. Only
// XPath and name locators can be narrowed.
func (l Locator) Nth(i int) (Locator, error) {
	if i < 0 {
		return Locator{}, fmt.Errorf("negative match index %d", i)
	}
	switch l.By {
	case ByXPath:
		return XPath(fmt.Sprintf("(%s)[%d]", l.Value, i+1)), nil
	case ByName:
		return XPath(fmt.Sprintf("(//*[@name=%s])[%d]", xpathLiteral(l.Value), i+1)), nil
	}
	return Locator{}, fmt.Errorf("locator %s cannot address a single match, use xpath or name", l)
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	return `"` + s + `"`
}

// ParseLocator parses "strategy=value". A value starting with "/" or "(" without a
// prefix is taken as XPath; anything else without a prefix is taken as CSS.
func ParseLocator(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}

	if by, value, ok := strings.Cut(s, "="); ok {
		switch Strategy(strings.ToLower(by)) {
		case ByID, ByCSS, ByXPath, ByName:
			if value == "" {
				return Locator{}, fmt.Errorf("locator '%s' has an empty value", s)
			}
			return Locator{By: Strategy(strings.ToLower(by)), Value: value}, nil
		}
	}

	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(") {
		return XPath(s), nil
	}
	return CSS(s), nil
}
