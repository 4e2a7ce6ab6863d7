// File: internal/browser/htmldom/element.go
package htmldom

import (
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
)

// formState is the live value of a form control, initialised from markup.
type formState struct {
	value    string
	selStart int
	selEnd   int
}

// Element is a node of a Document. It implements dom.Mutable.
type Element struct {
	d *Document
	n *html.Node
}

var _ dom.Mutable = (*Element)(nil)

// Node exposes the underlying parse tree node.
func (e *Element) Node() *html.Node { return e.n }

func (e *Element) TagName() string { return strings.ToLower(e.n.Data) }

func (e *Element) Attr(name string) (string, bool) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return attr(e.n, name)
}

func (e *Element) Matches(selector string) bool {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	m := e.d.matcherLocked(selector)
	return m != nil && m.Match(e.n)
}

func (e *Element) Closest(selector string) dom.Element {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	m := e.d.matcherLocked(selector)
	if m == nil {
		return nil
	}
	for p := e.n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		if m.Match(p) {
			return e.d.wrapLocked(p)
		}
	}
	return nil
}

func (e *Element) IsConnected() bool {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.d.connectedLocked(e.n)
}

func (e *Element) IsContentEditable() bool {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return isContentEditable(e.n)
}

// BoundingRect returns the laid out box, or a zero rect for detached and
// undisplayed elements.
func (e *Element) BoundingRect() dom.Rect {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.d.connectedLocked(e.n) {
		return dom.Rect{}
	}
	return e.d.layoutLocked().rects[e.n]
}

func (e *Element) ComputedStyle() dom.Style {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.d.connectedLocked(e.n) {
		return dom.Style{Display: "none", Visibility: "visible", Opacity: 1}
	}
	if cs, ok := e.d.layoutLocked().styles[e.n]; ok {
		return cs.style()
	}
	// html and the document element are outside the styled tree.
	return dom.Style{Display: "block", Visibility: "visible", Opacity: 1}
}

func (e *Element) Value() (string, bool) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	fs := e.formLocked()
	if fs == nil {
		return "", false
	}
	return fs.value, true
}

func (e *Element) TextContent() string {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return textContent(e.n)
}

func (e *Element) Locator() string {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.d.locatorLocked(e.n)
}

// formLocked returns the control state, creating it from markup on first
// access. It is nil for elements without a value property.
func (e *Element) formLocked() *formState {
	if fs, ok := e.d.forms[e.n]; ok {
		return fs
	}
	var initial string
	switch e.TagName() {
	case "input":
		initial, _ = attr(e.n, "value")
	case "textarea":
		initial = textContent(e.n)
	default:
		return nil
	}
	end := dom.UTF16Len(initial)
	fs := &formState{value: initial, selStart: end, selEnd: end}
	e.d.forms[e.n] = fs
	return fs
}

// supportsSelection mirrors which controls expose selectionStart.
func (e *Element) supportsSelection() bool {
	switch e.TagName() {
	case "textarea":
		return true
	case "input":
		t, _ := attr(e.n, "type")
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "text", "search", "url", "tel", "password":
			return true
		}
	}
	return false
}

func (e *Element) SetValue(v string) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.d.connectedLocked(e.n) {
		return ErrDetached
	}
	fs := e.formLocked()
	if fs == nil {
		return ErrNoValue
	}
	fs.value = v
	fs.selStart = dom.UTF16Len(v)
	fs.selEnd = fs.selStart
	return nil
}

func (e *Element) SetTextContent(text string) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.d.connectedLocked(e.n) {
		return ErrDetached
	}
	removeChildren(e.n)
	if text != "" {
		e.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	e.d.invalidateLocked()
	return nil
}

func (e *Element) SelectionRange() (int, int, bool) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.supportsSelection() {
		return 0, 0, false
	}
	fs := e.formLocked()
	return fs.selStart, fs.selEnd, true
}

func (e *Element) SetSelectionRange(start, end int) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.supportsSelection() {
		return ErrNoSelection
	}
	fs := e.formLocked()
	n := dom.UTF16Len(fs.value)
	start = min(max(start, 0), n)
	end = min(max(end, start), n)
	fs.selStart, fs.selEnd = start, end
	return nil
}

// Focus makes e the active element and notifies focus listeners.
func (e *Element) Focus() error {
	e.d.mu.Lock()
	if !e.d.connectedLocked(e.n) {
		e.d.mu.Unlock()
		return ErrDetached
	}
	e.d.active = e.n
	subs := make([]func(dom.Element), 0, len(e.d.focusSubs))
	ids := make([]int, 0, len(e.d.focusSubs))
	for id := range e.d.focusSubs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, e.d.focusSubs[id])
	}
	e.d.mu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
	return nil
}

func (e *Element) SelectAllContents() error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.d.connectedLocked(e.n) {
		return ErrDetached
	}
	e.d.selection = e.n
	return nil
}

// ExecInsertText replaces the selected contents of an editing host. It
// reports false when the command is disabled, e is not editable, or the
// document selection is not inside e.
func (e *Element) ExecInsertText(text string) (bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.d.connectedLocked(e.n) {
		return false, ErrDetached
	}
	if !e.d.execCommand || !isContentEditable(e.n) || e.d.selection != e.n {
		return false, nil
	}
	removeChildren(e.n)
	e.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	e.d.invalidateLocked()
	return true, nil
}

func (e *Element) ReplaceChildren(nodes []dom.Node) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.d.connectedLocked(e.n) {
		return ErrDetached
	}
	removeChildren(e.n)
	for _, spec := range nodes {
		e.n.AppendChild(buildNode(spec))
	}
	e.d.invalidateLocked()
	e.d.logger.Debug("Replaced children", zap.String("target", e.d.locatorLocked(e.n)), zap.Int("count", len(nodes)))
	return nil
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}

func buildNode(spec dom.Node) *html.Node {
	if spec.Tag == "" {
		return &html.Node{Type: html.TextNode, Data: spec.Text}
	}
	tag := strings.ToLower(spec.Tag)
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	keys := make([]string, 0, len(spec.Attrs))
	for k := range spec.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		setAttr(n, k, spec.Attrs[k])
	}
	if spec.Text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: spec.Text})
	}
	for _, c := range spec.Children {
		n.AppendChild(buildNode(c))
	}
	return n
}
