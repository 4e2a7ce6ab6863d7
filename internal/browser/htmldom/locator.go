// File: internal/browser/htmldom/locator.go
package htmldom

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// locatorLocked returns an XPath that selects n. An element whose id is
// unique in the document is addressed by it; anything else gets an absolute
// path of positional steps. The live runtime builds the same form, so
// locators from both backends compare equal for the same markup.
func (d *Document) locatorLocked(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	tag := strings.ToLower(n.Data)
	if id := htmlquery.SelectAttr(n, "id"); id != "" && !strings.Contains(id, `"`) {
		if matches := htmlquery.Find(d.root, fmt.Sprintf(`//*[@id="%s"]`, id)); len(matches) == 1 {
			return fmt.Sprintf(`//%s[@id="%s"]`, tag, id)
		}
	}

	var steps []string
	for c := n; c != nil && c.Type == html.ElementNode; c = c.Parent {
		name := strings.ToLower(c.Data)
		pos := 1
		for s := c.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && strings.EqualFold(s.Data, name) {
				pos++
			}
		}
		steps = append(steps, name+"["+strconv.Itoa(pos)+"]")
	}
	slices.Reverse(steps)
	return "/" + strings.Join(steps, "/")
}

// FindXPath resolves an XPath produced by Locator back to an element.
func (d *Document) FindXPath(expr string) (*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := htmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	if n == nil {
		return nil, nil
	}
	return d.wrapLocked(n), nil
}
