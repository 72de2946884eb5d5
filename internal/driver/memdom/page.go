// internal/driver/memdom/page.go
package memdom

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/faults"
)

// Page is an in-memory document implementing driver.Driver. Async updates are
// simulated with hooks on element events and timers that mutate the tree later,
// which is enough to exercise every synchronization path without a browser.
type Page struct {
	mu      sync.Mutex
	doc     *Document
	url     string
	hooks   map[hookKey][]Hook
	scripts map[string]ScriptFunc
	bound   map[string]ElementScriptFunc
	writes  map[string][]string
	timers  []*time.Timer
	closed  bool
	logger  *zap.Logger
}

// Hook runs after an element event, outside the page lock.
type Hook func(p *Page)

// ScriptFunc handles ExecuteScript for one registered script source. It runs with the
// page lock held.
type ScriptFunc func(doc *Document, args []any) (bool, error)

// ElementScriptFunc handles ExecuteScriptOn; n is the element the script is bound to.
type ElementScriptFunc func(doc *Document, n *html.Node, args []any) (bool, error)

type hookKey struct {
	id    string
	event string
}

// Element events a Hook can be registered for.
const (
	EventClick  = "click"
	EventChange = "change"
	EventBlur   = "blur"
)

var _ driver.Driver = (*Page)(nil)

// Parse builds a page from markup.
func Parse(markup string, logger *zap.Logger) (*Page, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page markup: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Page{
		doc:     newDocument(root),
		url:     "about:blank",
		hooks:   make(map[hookKey][]Hook),
		scripts: make(map[string]ScriptFunc),
		bound:   make(map[string]ElementScriptFunc),
		writes:  make(map[string][]string),
		logger:  logger.Named("memdom"),
	}, nil
}

// -- Simulation API --

// On registers a hook for an event on the element with the given id.
func (p *Page) On(id, event string, h Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := hookKey{id: id, event: event}
	p.hooks[k] = append(p.hooks[k], h)
}

// After schedules a mutation of the document.
func (p *Page) After(d time.Duration, fn func(doc *Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.timers = append(p.timers, time.AfterFunc(d, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.closed {
			fn(p.doc)
		}
	}))
}

// Mutate changes the document immediately.
func (p *Page) Mutate(fn func(doc *Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.doc)
}

// HandleScript registers the handler run when ExecuteScript receives exactly src.
func (p *Page) HandleScript(src string, fn ScriptFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[src] = fn
}

// HandleElementScript registers the handler run when ExecuteScriptOn receives exactly src.
func (p *Page) HandleElementScript(src string, fn ElementScriptFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bound[src] = fn
}

// SetURL changes the current URL.
func (p *Page) SetURL(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = u
}

// Navigate moves the page to u. The document is left as is.
func (p *Page) Navigate(ctx context.Context, u string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.SetURL(u)
	return nil
}

// Writes returns every value written to the element with the given id, in order.
func (p *Page) Writes(id string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes[id]...)
}

// HTML renders the current document.
func (p *Page) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.HTML()
}

// Close cancels pending mutations.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, t := range p.timers {
		t.Stop()
	}
	p.timers = nil
}

// AppendChild is a ScriptFunc taking (parentID, tag, id).
func AppendChild(doc *Document, args []any) (bool, error) {
	if len(args) != 3 {
		return false, fmt.Errorf("append child expects 3 arguments, got %d", len(args))
	}
	return doc.AppendChild(str(args[0]), str(args[1]), str(args[2])), nil
}

// AppendChildHere is an ElementScriptFunc taking (tag, id). It appends to the bound element.
func AppendChildHere(doc *Document, n *html.Node, args []any) (bool, error) {
	if len(args) != 2 {
		return false, fmt.Errorf("append child expects 2 arguments, got %d", len(args))
	}
	doc.appendTo(n, str(args[0]), str(args[1]))
	return true, nil
}

// RemoveByID is a ScriptFunc taking (id). It succeeds whether or not the element exists.
func RemoveByID(doc *Document, args []any) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("remove expects 1 argument, got %d", len(args))
	}
	doc.Remove(str(args[0]))
	return true, nil
}

// -- driver.Driver --

type elementRef struct {
	node *html.Node
	desc string
}

func (r *elementRef) String() string { return r.desc }

func (p *Page) Resolve(ctx context.Context, loc driver.Locator) (driver.ElementRef, error) {
	refs, err := p.ResolveAll(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: %s", faults.ErrNotFound, loc)
	}
	return refs[0], nil
}

func (p *Page) ResolveAll(ctx context.Context, loc driver.Locator) ([]driver.ElementRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var expr string
	switch loc.By {
	case driver.ByID:
		expr = fmt.Sprintf("//*[@id=%s]", quote(loc.Value))
	case driver.ByName:
		expr = fmt.Sprintf("//*[@name=%s]", quote(loc.Value))
	case driver.ByXPath:
		expr = loc.Value
	case driver.ByCSS:
		x, ok := cssToXPath(loc.Value)
		if !ok {
			return nil, fmt.Errorf("css selector '%s' is not supported by the in-memory document", loc.Value)
		}
		expr = x
	default:
		return nil, fmt.Errorf("unknown locator strategy '%s'", loc.By)
	}

	nodes, err := htmlquery.QueryAll(p.doc.root, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid locator %s: %w", loc, err)
	}
	refs := make([]driver.ElementRef, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			refs = append(refs, &elementRef{node: n, desc: describe(n)})
		}
	}
	return refs, nil
}

func (p *Page) Attribute(ctx context.Context, ref driver.ElementRef, name string) (string, bool, error) {
	var (
		val string
		ok  bool
	)
	err := p.withNode(ctx, ref, func(n *html.Node) error {
		if name == "value" {
			val, ok = valueOf(n)
			return nil
		}
		for _, a := range n.Attr {
			if a.Key == name {
				val, ok = a.Val, true
			}
		}
		return nil
	})
	return val, ok, err
}

func (p *Page) Text(ctx context.Context, ref driver.ElementRef) (string, error) {
	var text string
	err := p.withNode(ctx, ref, func(n *html.Node) error {
		text = textOf(n)
		return nil
	})
	return text, err
}

func (p *Page) IsStale(ctx context.Context, ref driver.ElementRef) (bool, error) {
	err := p.withNode(ctx, ref, func(*html.Node) error { return nil })
	if faults.IsStale(err) {
		return true, nil
	}
	return false, err
}

func (p *Page) IsDisplayed(ctx context.Context, ref driver.ElementRef) (bool, error) {
	var v bool
	err := p.withNode(ctx, ref, func(n *html.Node) error {
		v = displayed(n)
		return nil
	})
	return v, err
}

func (p *Page) IsEnabled(ctx context.Context, ref driver.ElementRef) (bool, error) {
	var v bool
	err := p.withNode(ctx, ref, func(n *html.Node) error {
		v = !hasAttr(n, "disabled")
		return nil
	})
	return v, err
}

func (p *Page) IsChecked(ctx context.Context, ref driver.ElementRef) (bool, error) {
	var v bool
	err := p.withNode(ctx, ref, func(n *html.Node) error {
		v = hasAttr(n, "checked")
		return nil
	})
	return v, err
}

func (p *Page) Click(ctx context.Context, ref driver.ElementRef) error {
	var id string
	err := p.withNode(ctx, ref, func(n *html.Node) error {
		id = htmlquery.SelectAttr(n, "id")
		return nil
	})
	if err != nil {
		return err
	}
	p.fire(id, EventClick)
	return nil
}

func (p *Page) Blur(ctx context.Context, ref driver.ElementRef) error {
	var id string
	err := p.withNode(ctx, ref, func(n *html.Node) error {
		id = htmlquery.SelectAttr(n, "id")
		return nil
	})
	if err != nil {
		return err
	}
	p.fire(id, EventBlur)
	return nil
}

func (p *Page) WriteValue(ctx context.Context, ref driver.ElementRef, text string, clearFirst bool) error {
	var id string
	err := p.withNode(ctx, ref, func(n *html.Node) error {
		id = htmlquery.SelectAttr(n, "id")
		next := text
		if !clearFirst {
			cur, _ := valueOf(n)
			next = cur + text
		}
		if isTag(n, "textarea") {
			for c := n.FirstChild; c != nil; {
				nx := c.NextSibling
				n.RemoveChild(c)
				c = nx
			}
			n.AppendChild(&html.Node{Type: html.TextNode, Data: next})
		} else {
			setAttr(n, "value", next)
		}
		key := id
		if key == "" {
			key = describe(n)
		}
		p.writes[key] = append(p.writes[key], next)
		return nil
	})
	if err != nil {
		return err
	}
	p.fire(id, EventChange)
	return nil
}

func (p *Page) Toggle(ctx context.Context, ref driver.ElementRef) error {
	var id string
	err := p.withNode(ctx, ref, func(n *html.Node) error {
		id = htmlquery.SelectAttr(n, "id")
		if hasAttr(n, "checked") {
			removeAttr(n, "checked")
		} else {
			setAttr(n, "checked", "checked")
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.fire(id, EventClick)
	p.fire(id, EventChange)
	return nil
}

func (p *Page) SelectOption(ctx context.Context, ref driver.ElementRef, by driver.SelectBy, value string) error {
	var id string
	err := p.withNode(ctx, ref, func(n *html.Node) error {
		id = htmlquery.SelectAttr(n, "id")
		opts := options(n)
		target := -1

		switch by {
		case driver.SelectByIndex:
			i, err := strconv.Atoi(value)
			if err == nil && i >= 0 && i < len(opts) {
				target = i
			}
		case driver.SelectByVisibleText:
			for i, o := range opts {
				if textOf(o) == value {
					target = i
					break
				}
			}
		case driver.SelectByValue:
			for i, o := range opts {
				if optionValue(o) == value {
					target = i
					break
				}
			}
		case driver.SelectByPattern:
			re, err := regexp.Compile("^(?:" + value + ")$")
			if err != nil {
				return fmt.Errorf("invalid option pattern '%s': %w", value, err)
			}
			for i, o := range opts {
				if re.MatchString(textOf(o)) {
					target = i
					break
				}
			}
		}

		if target < 0 {
			return fmt.Errorf("%w: %s '%s'", faults.ErrNoSuchOption, by, value)
		}
		for i, o := range opts {
			if i == target {
				setAttr(o, "selected", "selected")
			} else {
				removeAttr(o, "selected")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.fire(id, EventChange)
	return nil
}

func (p *Page) Selection(ctx context.Context, ref driver.ElementRef) (driver.Selected, error) {
	var sel driver.Selected
	err := p.withNode(ctx, ref, func(n *html.Node) error {
		opts := options(n)
		sel.OptionCount = len(opts)
		sel.Enabled = !hasAttr(n, "disabled")
		sel.Index = selectedIndex(opts)
		if sel.Index >= 0 {
			sel.VisibleText = textOf(opts[sel.Index])
			sel.HTMLValue = optionValue(opts[sel.Index])
		}
		return nil
	})
	return sel, err
}

func (p *Page) ExecuteScript(ctx context.Context, script string, args ...any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fn, ok := p.scripts[script]
	if !ok {
		return false, fmt.Errorf("no handler registered for script (%d bytes)", len(script))
	}
	return fn(p.doc, args)
}

func (p *Page) ExecuteScriptOn(ctx context.Context, ref driver.ElementRef, script string, args ...any) (bool, error) {
	var ok bool
	err := p.withNode(ctx, ref, func(n *html.Node) error {
		fn, found := p.bound[script]
		if !found {
			return fmt.Errorf("no handler registered for element script (%d bytes)", len(script))
		}
		var err error
		ok, err = fn(p.doc, n, args)
		return err
	})
	return ok, err
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

// -- internals --

func (p *Page) withNode(ctx context.Context, ref driver.ElementRef, fn func(*html.Node) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, ok := ref.(*elementRef)
	if !ok || r == nil {
		return fmt.Errorf("reference %v does not belong to this document", ref)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.doc.attached(r.node) {
		return fmt.Errorf("%w: %s", faults.ErrStale, r.desc)
	}
	return fn(r.node)
}

func (p *Page) fire(id, event string) {
	if id == "" {
		return
	}
	p.mu.Lock()
	hooks := append([]Hook(nil), p.hooks[hookKey{id: id, event: event}]...)
	p.mu.Unlock()

	for _, h := range hooks {
		p.logger.Debug("Firing element hook.", zap.String("id", id), zap.String("event", event))
		h(p)
	}
}

func valueOf(n *html.Node) (string, bool) {
	switch {
	case isTag(n, "textarea"):
		return textOf(n), true
	case isTag(n, "select"):
		opts := options(n)
		if i := selectedIndex(opts); i >= 0 {
			return optionValue(opts[i]), true
		}
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == "value" {
			return a.Val, true
		}
	}
	if isTag(n, "input") {
		return "", true
	}
	return "", false
}

// quote renders s as an XPath string literal.
func quote(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
