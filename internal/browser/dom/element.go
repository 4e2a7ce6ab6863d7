// File: internal/browser/dom/element.go
package dom

import "math"

// Rect is a bounding client rectangle in CSS pixels, relative to the viewport.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }
func (r Rect) Area() float64   { return r.Width * r.Height }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Viewport is the visible area of the document.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect returns the viewport as a rectangle anchored at the origin.
func (v Viewport) Rect() Rect { return Rect{Width: v.Width, Height: v.Height} }

// HalfDiagonal is the distance from the viewport center to a corner.
func (v Viewport) HalfDiagonal() float64 {
	return math.Hypot(v.Width, v.Height) / 2
}

// Style is the subset of computed style the detector needs.
type Style struct {
	Display    string  `json:"display"`
	Visibility string  `json:"visibility"`
	Opacity    float64 `json:"opacity"`
}

// Element is a read-only view of a live DOM element. Implementations return
// the same Element value for the same underlying node, so elements may be
// compared with ==. Read failures surface as zero values, never panics.
type Element interface {
	// TagName is the lowercase local name.
	TagName() string
	Attr(name string) (string, bool)
	// Matches reports whether the element matches a CSS selector.
	Matches(selector string) bool
	// Closest returns the nearest inclusive ancestor matching selector, or nil.
	Closest(selector string) Element
	IsConnected() bool
	// IsContentEditable reports the inherited editing host state.
	IsContentEditable() bool
	BoundingRect() Rect
	ComputedStyle() Style
	// Value returns the form value and whether the element has one at all.
	Value() (string, bool)
	TextContent() string
	// Locator returns a stable XPath for diagnostics.
	Locator() string
}

// Node describes a subtree to build with Mutable.ReplaceChildren. A Node with
// an empty Tag is a text node.
type Node struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Children []Node
}

// Mutable is an Element that can be written to. Every mutator may fail, for
// instance when the node has been detached or the page went away.
type Mutable interface {
	Element

	SetValue(v string) error
	SetTextContent(text string) error
	// SelectionRange returns the text selection in UTF-16 code units. ok is
	// false when the element has no selection API (e.g. input type=email).
	SelectionRange() (start, end int, ok bool)
	SetSelectionRange(start, end int) error
	Focus() error
	// SelectAllContents selects the element's contents in the document selection.
	SelectAllContents() error
	// ExecInsertText runs the editing command "insertText". It reports false
	// when the command is unsupported or refused.
	ExecInsertText(text string) (bool, error)
	ReplaceChildren(nodes []Node) error
	Dispatch(ev Event) error
}

// Document is the query surface of a page.
type Document interface {
	QuerySelectorAll(selector string) []Element
	// ActiveElement returns the focused element, or nil.
	ActiveElement() Element
	Viewport() Viewport
	// OnFocusIn registers a focus listener and returns its unsubscribe handle.
	OnFocusIn(fn func(Element)) (unsubscribe func())
}
