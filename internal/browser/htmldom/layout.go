// File: internal/browser/htmldom/layout.go
package htmldom

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
)

// Intrinsic sizes for replaced and form elements, in px.
const (
	lineHeight     = 24.0
	charWidth      = 8.0
	inputWidth     = 200.0
	inputHeight    = 24.0
	textareaWidth  = 300.0
	textareaRowPx  = 20.0
	textareaRows   = 3
	buttonMinWidth = 64.0
)

// layoutResult holds the boxes and computed styles of one layout pass.
type layoutResult struct {
	rects  map[*html.Node]dom.Rect
	styles map[*html.Node]computed
}

// layoutEngine is a static block flow resolver. In flow elements stack
// vertically inside their parent; absolute and fixed elements are placed
// with left/top/right/bottom against their parent box or the viewport.
// Elements that are display:none, or have such an ancestor, get no box.
type layoutEngine struct {
	rules []styleRule
	vp    dom.Viewport
	res   layoutResult
}

func computeLayout(root *html.Node, rules []styleRule, vp dom.Viewport) layoutResult {
	le := &layoutEngine{
		rules: rules,
		vp:    vp,
		res: layoutResult{
			rects:  make(map[*html.Node]dom.Rect),
			styles: make(map[*html.Node]computed),
		},
	}
	le.layoutChildren(root, vp.Rect(), "visible")
	return le.res
}

// layoutChildren lays out the element children of parent inside box and
// returns the height consumed by in flow children.
func (le *layoutEngine) layoutChildren(parent *html.Node, box dom.Rect, visibility string) float64 {
	cursor := box.Y
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		cs := computeStyle(c, le.rules, visibility)
		le.res.styles[c] = cs
		if cs.display == "none" {
			le.recordHidden(c, cs.visibility)
			continue
		}

		switch cs.get("position") {
		case "absolute":
			le.layoutPositioned(c, cs, box)
		case "fixed":
			le.layoutPositioned(c, cs, le.vp.Rect())
		default:
			r := le.layoutInFlow(c, cs, box.X, cursor, box.Width)
			cursor += r.Height
		}
	}
	return cursor - box.Y
}

// recordHidden stores styles for a display:none subtree without boxes, so
// style queries on descendants still resolve.
func (le *layoutEngine) recordHidden(n *html.Node, visibility string) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		cs := computeStyle(c, le.rules, visibility)
		le.res.styles[c] = cs
		le.recordHidden(c, cs.visibility)
	}
}

func (le *layoutEngine) layoutInFlow(n *html.Node, cs computed, x, y, availWidth float64) dom.Rect {
	if n.Data == "html" || n.Data == "body" {
		r := le.vp.Rect()
		le.layoutChildren(n, r, cs.visibility)
		le.res.rects[n] = r
		return dom.Rect{}
	}

	width := le.width(n, cs, availWidth)
	r := dom.Rect{X: x, Y: y, Width: width}
	if cs.get("position") == "relative" {
		if dx, ok := resolveLength(cs.get("left"), availWidth, le.vp); ok {
			r.X += dx
		}
		if dy, ok := resolveLength(cs.get("top"), 0, le.vp); ok {
			r.Y += dy
		}
	}
	content := le.layoutChildren(n, r, cs.visibility)
	r.Height = le.height(n, cs, content)
	le.res.rects[n] = r

	// A relative offset does not move the flow position of later siblings.
	return dom.Rect{X: x, Y: y, Width: width, Height: r.Height}
}

func (le *layoutEngine) layoutPositioned(n *html.Node, cs computed, container dom.Rect) {
	width := le.width(n, cs, container.Width)
	r := dom.Rect{X: container.X, Y: container.Y, Width: width}

	left, hasLeft := resolveLength(cs.get("left"), container.Width, le.vp)
	right, hasRight := resolveLength(cs.get("right"), container.Width, le.vp)
	if hasLeft {
		r.X = container.X + left
	} else if hasRight {
		r.X = container.Right() - right - width
	}

	content := le.layoutChildren(n, dom.Rect{X: r.X, Y: r.Y, Width: width}, cs.visibility)
	r.Height = le.height(n, cs, content)

	top, hasTop := resolveLength(cs.get("top"), container.Height, le.vp)
	bottom, hasBottom := resolveLength(cs.get("bottom"), container.Height, le.vp)
	switch {
	case hasTop:
		r.Y = container.Y + top
	case hasBottom:
		r.Y = container.Bottom() - bottom - r.Height
	}
	if r.X != container.X || r.Y != container.Y {
		// Children were laid out at the provisional origin; shift them along.
		le.shift(n, r.X-container.X, r.Y-container.Y)
	}
	le.res.rects[n] = r
}

func (le *layoutEngine) shift(n *html.Node, dx, dy float64) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if le.res.styles[c].get("position") == "fixed" {
			continue
		}
		if r, ok := le.res.rects[c]; ok {
			r.X += dx
			r.Y += dy
			le.res.rects[c] = r
		}
		le.shift(c, dx, dy)
	}
}

func (le *layoutEngine) width(n *html.Node, cs computed, avail float64) float64 {
	if w, ok := resolveLength(cs.get("width"), avail, le.vp); ok {
		return max(w, 0)
	}
	switch n.Data {
	case "input":
		return inputWidth
	case "textarea":
		if cols, ok := intAttr(n, "cols"); ok {
			return float64(cols) * charWidth
		}
		return textareaWidth
	case "button":
		return max(buttonMinWidth, textWidth(n))
	}
	if strings.HasPrefix(cs.display, "inline") {
		return min(textWidth(n), avail)
	}
	return avail
}

func (le *layoutEngine) height(n *html.Node, cs computed, content float64) float64 {
	if h, ok := resolveLength(cs.get("height"), le.vp.Height, le.vp); ok {
		return max(h, 0)
	}
	switch n.Data {
	case "input", "button", "select":
		return inputHeight
	case "textarea":
		rows := textareaRows
		if r, ok := intAttr(n, "rows"); ok {
			rows = r
		}
		return float64(rows) * textareaRowPx
	}
	if content > 0 {
		return content
	}
	if hasOwnText(n) || isEditingHost(n) || n.Data == "br" {
		return lineHeight
	}
	return 0
}

func textWidth(n *html.Node) float64 {
	return float64(utf8.RuneCountInString(strings.TrimSpace(textContent(n)))) * charWidth
}

func hasOwnText(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
	}
	return false
}

func intAttr(n *html.Node, name string) (int, bool) {
	v, ok := attr(n, name)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || i <= 0 {
		return 0, false
	}
	return i, true
}
