// internal/driver/driver.go
package driver

import (
	"context"
)

// ElementRef is an opaque handle to a node in the live document. A reference may go
// stale at any time when an async update replaces the node it points to; every
// method taking a ref returns an error classified as faults.KindStale in that case.
type ElementRef interface {
	// String describes the element for logs. It must not touch the live document.
	String() string
}

// SelectBy names the dimension used to pick an option from a choice widget.
type SelectBy int

const (
	SelectByIndex SelectBy = iota
	SelectByVisibleText
	SelectByValue
	SelectByPattern // full match of a regular expression against the visible text
)

func (s SelectBy) String() string {
	switch s {
	case SelectByIndex:
		return "index"
	case SelectByVisibleText:
		return "visible text"
	case SelectByValue:
		return "value"
	case SelectByPattern:
		return "pattern"
	default:
		return "unknown"
	}
}

// Selected is the live state of a choice widget at one point in time.
type Selected struct {
	VisibleText string
	HTMLValue   string
	Index       int
	Enabled     bool
	OptionCount int
}

// Driver is the document abstraction the synchronization engine drives. Resolution
// failures return faults.ErrNotFound; detached references return faults.ErrStale.
type Driver interface {
	// Resolve returns the first element matching loc.
	Resolve(ctx context.Context, loc Locator) (ElementRef, error)
	// ResolveAll returns every element matching loc, possibly none.
	ResolveAll(ctx context.Context, loc Locator) ([]ElementRef, error)

	// Attribute reads an attribute. For "value" the live property is returned. The
	// boolean is false when the attribute is absent.
	Attribute(ctx context.Context, ref ElementRef, name string) (string, bool, error)
	// Text returns the rendered text of the element.
	Text(ctx context.Context, ref ElementRef) (string, error)

	IsStale(ctx context.Context, ref ElementRef) (bool, error)
	IsDisplayed(ctx context.Context, ref ElementRef) (bool, error)
	IsEnabled(ctx context.Context, ref ElementRef) (bool, error)
	IsChecked(ctx context.Context, ref ElementRef) (bool, error)

	Click(ctx context.Context, ref ElementRef) error
	// WriteValue sets the value of an input and fires its change notifications.
	WriteValue(ctx context.Context, ref ElementRef, text string, clearFirst bool) error
	Toggle(ctx context.Context, ref ElementRef) error
	// Blur moves focus off the element, firing the handlers of widgets that update
	// when they lose focus.
	Blur(ctx context.Context, ref ElementRef) error
	SelectOption(ctx context.Context, ref ElementRef, by SelectBy, value string) error
	Selection(ctx context.Context, ref ElementRef) (Selected, error)

	// ExecuteScript evaluates a JavaScript function expression with the given
	// arguments and reports its boolean result.
	ExecuteScript(ctx context.Context, script string, args ...any) (bool, error)
	// ExecuteScriptOn is ExecuteScript with `this` bound to the element behind ref.
	ExecuteScriptOn(ctx context.Context, ref ElementRef, script string, args ...any) (bool, error)
	CurrentURL(ctx context.Context) (string, error)
}
