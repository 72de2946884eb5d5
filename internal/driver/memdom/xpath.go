// internal/driver/memdom/xpath.go
package memdom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// describe produces a stable XPath for a node, anchored on the nearest id. It is used
// as the human-readable form of an element reference.
func describe(node *html.Node) string {
	if node == nil {
		return ""
	}

	var path []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode || n.Data == "" {
			continue
		}
		tag := strings.ToLower(n.Data)

		if id := htmlquery.SelectAttr(n, "id"); id != "" {
			path = append(path, fmt.Sprintf(`//*[@id='%s']`, id))
			break
		}

		// 1-based position among same-tag siblings.
		index := 1
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
				index++
			}
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, index))
	}

	if len(path) == 0 {
		return "/"
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	xpath := strings.Join(path, "/")
	if !strings.HasPrefix(xpath, "//*[@id=") {
		xpath = "/" + xpath
	}
	return xpath
}

// cssToXPath translates the small CSS subset the in-memory document understands:
// "#id", ".class", "tag", "tag#id" and "tag.class".
func cssToXPath(sel string) (string, bool) {
	sel = strings.TrimSpace(sel)
	if sel == "" || strings.ContainsAny(sel, " >+~[]:,*") {
		return "", false
	}

	tag := "*"
	rest := sel
	if i := strings.IndexAny(sel, "#."); i > 0 {
		tag, rest = sel[:i], sel[i:]
	} else if i < 0 {
		return "//" + sel, true
	}

	switch rest[0] {
	case '#':
		return fmt.Sprintf("//%s[@id='%s']", tag, rest[1:]), true
	case '.':
		return fmt.Sprintf("//%s[contains(concat(' ', normalize-space(@class), ' '), ' %s ')]", tag, rest[1:]), true
	}
	return "", false
}
