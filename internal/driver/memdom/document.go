// internal/driver/memdom/document.go
package memdom

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document is the mutable tree behind a Page. Its methods assume the page lock is held;
// they are handed to mutation callbacks and script handlers, never used directly.
type Document struct {
	root *html.Node
	// inserted tracks nodes added by scripts. A refresh re-renders content without them.
	inserted map[*html.Node]bool
}

func newDocument(root *html.Node) *Document {
	return &Document{root: root, inserted: make(map[*html.Node]bool)}
}

// ByID returns the first element with the given id.
func (d *Document) ByID(id string) *html.Node {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && htmlquery.SelectAttr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// AppendChild creates a hidden <tag id=id> as the last child of the element parentID.
func (d *Document) AppendChild(parentID, tag, id string) bool {
	parent := d.ByID(parentID)
	if parent == nil {
		return false
	}
	d.appendTo(parent, tag, id)
	return true
}

func (d *Document) appendTo(parent *html.Node, tag, id string) {
	child := &html.Node{
		Type: html.ElementNode,
		Data: tag,
		Attr: []html.Attribute{{Key: "id", Val: id}, {Key: "style", Val: "display: none"}},
	}
	parent.AppendChild(child)
	d.inserted[child] = true
}

// Remove detaches the element with the given id. Removing a missing element is a no-op.
func (d *Document) Remove(id string) bool {
	n := d.ByID(id)
	if n == nil || n.Parent == nil {
		return false
	}
	n.Parent.RemoveChild(n)
	delete(d.inserted, n)
	return true
}

// Refresh replaces the element with a fresh copy of itself, as a server re-render
// would. References to the old element and its descendants go stale and any
// script-inserted nodes below it are gone.
func (d *Document) Refresh(id string) bool {
	n := d.ByID(id)
	if n == nil || n.Parent == nil {
		return false
	}
	fresh := d.clone(n)
	n.Parent.InsertBefore(fresh, n)
	n.Parent.RemoveChild(n)
	return true
}

// SetInnerHTML replaces the children of the element with parsed markup.
func (d *Document) SetInnerHTML(id, markup string) bool {
	n := d.ByID(id)
	if n == nil {
		return false
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return false
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return true
}

// SetAttr sets or overwrites an attribute on the element with the given id.
func (d *Document) SetAttr(id, key, val string) bool {
	n := d.ByID(id)
	if n == nil {
		return false
	}
	setAttr(n, key, val)
	return true
}

// RemoveAttr deletes an attribute from the element with the given id.
func (d *Document) RemoveAttr(id, key string) bool {
	n := d.ByID(id)
	if n == nil {
		return false
	}
	removeAttr(n, key)
	return true
}

// HTML renders the document.
func (d *Document) HTML() string {
	return htmlquery.OutputHTML(d.root, true)
}

func (d *Document) attached(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

func (d *Document) clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if d.inserted[child] {
			delete(d.inserted, child)
			continue
		}
		c.AppendChild(d.clone(child))
	}
	return c
}

// -- Node helpers --

func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		return true
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

func isTag(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && strings.EqualFold(n.Data, tag)
}

func options(sel *html.Node) []*html.Node {
	var out []*html.Node
	walk(sel, func(c *html.Node) bool {
		if isTag(c, "option") {
			out = append(out, c)
		}
		return true
	})
	return out
}

func selectedIndex(opts []*html.Node) int {
	for i, o := range opts {
		if hasAttr(o, "selected") {
			return i
		}
	}
	if len(opts) > 0 {
		return 0
	}
	return -1
}

func optionValue(o *html.Node) string {
	for _, a := range o.Attr {
		if a.Key == "value" {
			return a.Val
		}
	}
	return textOf(o)
}

func displayed(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if hasAttr(p, "hidden") {
			return false
		}
		if isTag(p, "input") && strings.EqualFold(htmlquery.SelectAttr(p, "type"), "hidden") {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(htmlquery.SelectAttr(p, "style")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}
