// File: internal/browser/htmldom/document.go
package htmldom

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
)

var (
	ErrDetached    = errors.New("htmldom: element is not connected")
	ErrNoValue     = errors.New("htmldom: element has no value property")
	ErrNoSelection = errors.New("htmldom: element does not support selection")
)

// Default viewport, a common laptop size.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800
)

// Option configures a Document.
type Option func(*Document)

// WithViewport sets the viewport size used for layout.
func WithViewport(width, height float64) Option {
	return func(d *Document) { d.viewport = dom.Viewport{Width: width, Height: height} }
}

// WithExecCommand controls whether the "insertText" editing command is
// supported. It is supported by default.
func WithExecCommand(enabled bool) Option {
	return func(d *Document) { d.execCommand = enabled }
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *Document) { d.logger = logger }
}

// Document is an in-memory DOM built from HTML. It resolves author styles,
// lays out a static box tree, tracks focus, form state and selection, and
// dispatches synthetic events to registered listeners. It is safe for
// concurrent use; listeners are always invoked without the lock held.
type Document struct {
	mu sync.Mutex

	gq       *goquery.Document
	root     *html.Node
	rules    []styleRule
	viewport dom.Viewport
	logger   *zap.Logger

	execCommand bool
	elements    map[*html.Node]*Element
	forms       map[*html.Node]*formState
	selectors   map[string]cascadia.Matcher
	active      *html.Node
	selection   *html.Node

	version     int
	layout      layoutResult
	layoutValid bool

	nextID    int
	focusSubs map[int]func(dom.Element)
	listeners map[*html.Node]map[string]map[int]Listener
	events    []DispatchedEvent
}

// Parse builds a Document from an HTML stream.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	d := &Document{
		gq:          gq,
		root:        gq.Nodes[0],
		viewport:    dom.Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight},
		logger:      zap.NewNop(),
		execCommand: true,
		elements:    make(map[*html.Node]*Element),
		forms:       make(map[*html.Node]*formState),
		selectors:   make(map[string]cascadia.Matcher),
		focusSubs:   make(map[int]func(dom.Element)),
		listeners:   make(map[*html.Node]map[string]map[int]Listener),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.loadStylesheets()
	if el := gq.Find("[autofocus]").First(); len(el.Nodes) > 0 {
		d.active = el.Nodes[0]
	}
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

func (d *Document) loadStylesheets() {
	d.gq.Find("style").Each(func(_ int, s *goquery.Selection) {
		if media, ok := s.Attr("media"); ok && !strings.Contains(media, "all") && !strings.Contains(media, "screen") {
			return
		}
		for _, r := range parseStylesheet(s.Text()) {
			r.order = len(d.rules)
			d.rules = append(d.rules, r)
		}
	})
	d.logger.Debug("Loaded author styles", zap.Int("rules", len(d.rules)))
}

// QuerySelectorAll returns the elements matching selector in document order.
// An invalid selector matches nothing.
func (d *Document) QuerySelectorAll(selector string) []dom.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes := d.gq.Find(selector).Nodes
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrapLocked(n))
	}
	return out
}

// Query returns the first element matching selector, or nil.
func (d *Document) Query(selector string) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes := d.gq.Find(selector).Nodes
	if len(nodes) == 0 {
		return nil
	}
	return d.wrapLocked(nodes[0])
}

// ActiveElement returns the focused element, or nil when nothing has focus
// or the focused element has been removed.
func (d *Document) ActiveElement() dom.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil || !d.connectedLocked(d.active) {
		return nil
	}
	return d.wrapLocked(d.active)
}

func (d *Document) Viewport() dom.Viewport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport
}

// SetViewport resizes the viewport and invalidates layout.
func (d *Document) SetViewport(width, height float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewport = dom.Viewport{Width: width, Height: height}
	d.invalidateLocked()
}

// OnFocusIn registers fn for every focus change made through Focus.
func (d *Document) OnFocusIn(fn func(dom.Element)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.focusSubs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.focusSubs, id)
		})
	}
}

// FocusListeners returns the number of registered focus listeners.
func (d *Document) FocusListeners() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.focusSubs)
}

// Remove detaches el from the document, as a host page script would.
func (d *Document) Remove(el *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el.n.Parent != nil {
		el.n.Parent.RemoveChild(el.n)
	}
	d.invalidateLocked()
}

// InnerHTML renders the children of el.
func (d *Document) InnerHTML(el *Element) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	for c := el.n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			d.logger.Debug("Failed to render node", zap.Error(err))
		}
	}
	return b.String()
}

// Render writes the whole document as HTML. Form controls carry their
// current values: inputs as a value attribute, textareas as their content.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.snapshotLocked(d.root))
}

func (d *Document) snapshotLocked(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	if fs, ok := d.forms[n]; ok {
		switch n.Data {
		case "textarea":
			c.AppendChild(&html.Node{Type: html.TextNode, Data: fs.value})
			return c
		case "input":
			setAttr(c, "value", fs.value)
		}
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(d.snapshotLocked(ch))
	}
	return c
}

func (d *Document) wrapLocked(n *html.Node) *Element {
	if el, ok := d.elements[n]; ok {
		return el
	}
	el := &Element{d: d, n: n}
	d.elements[n] = el
	return el
}

func (d *Document) connectedLocked(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

func (d *Document) invalidateLocked() {
	d.version++
	d.layoutValid = false
}

func (d *Document) layoutLocked() layoutResult {
	if !d.layoutValid {
		d.layout = computeLayout(d.root, d.rules, d.viewport)
		d.layoutValid = true
	}
	return d.layout
}

// matcherLocked compiles and caches selector. Invalid selectors are cached
// as nil and match nothing.
func (d *Document) matcherLocked(selector string) cascadia.Matcher {
	if m, ok := d.selectors[selector]; ok {
		return m
	}
	var m cascadia.Matcher
	sel, err := cascadia.Compile(selector)
	if err != nil {
		d.logger.Debug("Invalid selector", zap.String("selector", selector), zap.Error(err))
	} else {
		m = sel
	}
	d.selectors[selector] = m
	return m
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
		case html.ElementNode:
			b.WriteString(textContent(c))
		}
	}
	return b.String()
}

// isEditingHost reports whether n's own contenteditable attribute enables editing.
func isEditingHost(n *html.Node) bool {
	v, ok := attr(n, "contenteditable")
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "true", "plaintext-only":
		return true
	}
	return false
}

// isContentEditable resolves contenteditable inheritance up the tree.
func isContentEditable(n *html.Node) bool {
	for p := n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		v, ok := attr(p, "contenteditable")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "true", "plaintext-only":
			return true
		case "false":
			return false
		}
	}
	return false
}
