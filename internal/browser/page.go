// File: internal/browser/page.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrDetached is returned by mutators of an element that left the document.
var ErrDetached = errors.New("browser: element detached")

const defaultCallTimeout = 5 * time.Second

// Evaluator runs a JavaScript expression in the page and decodes its JSON
// result into res.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, res interface{}) error
}

// Page is a dom.Document backed by a live browser tab. Every read goes to
// the page, so results always reflect the current DOM.
type Page struct {
	eval        Evaluator
	ctx         context.Context
	logger      *zap.Logger
	callTimeout time.Duration

	mu        sync.Mutex
	elements  map[int64]*Element
	focusSubs map[int]func(dom.Element)
	nextSub   int
}

var _ dom.Document = (*Page)(nil)

// NewPage wraps eval. ctx bounds every call made through dom.Document
// methods, which carry no context of their own.
func NewPage(ctx context.Context, eval Evaluator, logger *zap.Logger) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Page{
		eval:        eval,
		ctx:         ctx,
		logger:      logger.Named("page"),
		callTimeout: defaultCallTimeout,
		elements:    make(map[int64]*Element),
		focusSubs:   make(map[int]func(dom.Element)),
	}
}

// call invokes window.__sf.<method>(args...) and decodes the result.
func (p *Page) call(method string, res interface{}, args ...interface{}) error {
	encoded := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to encode argument %d of %s: %w", i, method, err)
		}
		encoded[i] = string(b)
	}
	expr := "window.__sf." + method + "(" + strings.Join(encoded, ", ") + ")"

	ctx, cancel := context.WithTimeout(p.ctx, p.callTimeout)
	defer cancel()
	if err := p.eval.Evaluate(ctx, expr, res); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// read performs a call whose failure degrades to the zero value.
func (p *Page) read(method string, res interface{}, args ...interface{}) bool {
	if err := p.call(method, res, args...); err != nil {
		p.logger.Debug("Page read failed", zap.String("method", method), zap.Error(err))
		return false
	}
	return true
}

type mutationResult struct {
	OK    bool                `json:"ok"`
	Value jsoniter.RawMessage `json:"value"`
	Error string              `json:"error"`
}

// mutate performs a write call and converts runtime failures to errors.
func (p *Page) mutate(method string, args ...interface{}) (mutationResult, error) {
	var r mutationResult
	if err := p.call(method, &r, args...); err != nil {
		return r, err
	}
	if !r.OK {
		if r.Error == "detached" {
			return r, ErrDetached
		}
		return r, fmt.Errorf("%s: %s", method, r.Error)
	}
	return r, nil
}

// element returns the canonical Element for a runtime handle; 0 is nil.
func (p *Page) element(id int64) *Element {
	if id == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[id]
	if !ok {
		el = &Element{p: p, id: id}
		p.elements[id] = el
	}
	return el
}

// node is element as a dom.Element, keeping handle 0 a nil interface.
func (p *Page) node(id int64) dom.Element {
	if el := p.element(id); el != nil {
		return el
	}
	return nil
}

func (p *Page) QuerySelectorAll(selector string) []dom.Element {
	var ids []int64
	if !p.read("query", &ids, selector) {
		return nil
	}
	out := make([]dom.Element, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.node(id))
	}
	return out
}

func (p *Page) ActiveElement() dom.Element {
	var id int64
	p.read("active", &id)
	return p.node(id)
}

func (p *Page) Viewport() dom.Viewport {
	var vp dom.Viewport
	p.read("viewport", &vp)
	return vp
}

// OnFocusIn registers fn for focus reports from the injected runtime.
func (p *Page) OnFocusIn(fn func(dom.Element)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.focusSubs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.focusSubs, id)
			p.mu.Unlock()
		})
	}
}

// handleFocus delivers a focus binding payload, the element handle as a
// decimal string, to the subscribers.
func (p *Page) handleFocus(payload string) {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil || id <= 0 {
		p.logger.Debug("Ignoring malformed focus payload", zap.String("payload", payload))
		return
	}
	el := p.element(id)

	p.mu.Lock()
	keys := make([]int, 0, len(p.focusSubs))
	for k := range p.focusSubs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	subs := make([]func(dom.Element), 0, len(keys))
	for _, k := range keys {
		subs = append(subs, p.focusSubs[k])
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(el)
	}
}

// Element is a handle to an element in a live page.
type Element struct {
	p  *Page
	id int64
}

var _ dom.Mutable = (*Element)(nil)

// ID is the runtime handle of the element.
func (e *Element) ID() int64 { return e.id }

func (e *Element) TagName() string {
	var tag string
	e.p.read("tag", &tag, e.id)
	return strings.ToLower(tag)
}

func (e *Element) Attr(name string) (string, bool) {
	var v *string
	if !e.p.read("attr", &v, e.id, name) || v == nil {
		return "", false
	}
	return *v, true
}

func (e *Element) Matches(selector string) bool {
	var ok bool
	e.p.read("matches", &ok, e.id, selector)
	return ok
}

func (e *Element) Closest(selector string) dom.Element {
	var id int64
	e.p.read("closest", &id, e.id, selector)
	return e.p.node(id)
}

func (e *Element) IsConnected() bool {
	var ok bool
	e.p.read("connected", &ok, e.id)
	return ok
}

func (e *Element) IsContentEditable() bool {
	var ok bool
	e.p.read("editable", &ok, e.id)
	return ok
}

func (e *Element) BoundingRect() dom.Rect {
	var r dom.Rect
	e.p.read("rect", &r, e.id)
	return r
}

func (e *Element) ComputedStyle() dom.Style {
	st := dom.Style{Display: "none", Visibility: "hidden"}
	e.p.read("style", &st, e.id)
	return st
}

func (e *Element) Value() (string, bool) {
	var r struct {
		OK    bool   `json:"ok"`
		Value string `json:"value"`
	}
	if !e.p.read("value", &r, e.id) {
		return "", false
	}
	return r.Value, r.OK
}

func (e *Element) TextContent() string {
	var s string
	e.p.read("text", &s, e.id)
	return s
}

func (e *Element) Locator() string {
	var s string
	e.p.read("locator", &s, e.id)
	return s
}

func (e *Element) SetValue(v string) error {
	_, err := e.p.mutate("setValue", e.id, v)
	return err
}

func (e *Element) SetTextContent(text string) error {
	_, err := e.p.mutate("setText", e.id, text)
	return err
}

func (e *Element) SelectionRange() (int, int, bool) {
	var r struct {
		OK    bool `json:"ok"`
		Start int  `json:"start"`
		End   int  `json:"end"`
	}
	if !e.p.read("selection", &r, e.id) || !r.OK {
		return 0, 0, false
	}
	return r.Start, r.End, true
}

func (e *Element) SetSelectionRange(start, end int) error {
	_, err := e.p.mutate("setSelection", e.id, start, end)
	return err
}

func (e *Element) Focus() error {
	_, err := e.p.mutate("focus", e.id)
	return err
}

func (e *Element) SelectAllContents() error {
	_, err := e.p.mutate("selectAll", e.id)
	return err
}

func (e *Element) ExecInsertText(text string) (bool, error) {
	r, err := e.p.mutate("execInsert", e.id, text)
	if err != nil {
		return false, err
	}
	var inserted bool
	if len(r.Value) > 0 {
		if err := json.Unmarshal(r.Value, &inserted); err != nil {
			return false, fmt.Errorf("execInsert: unexpected result %s", r.Value)
		}
	}
	return inserted, nil
}

// wireNode is the runtime's node description.
type wireNode struct {
	Tag      string            `json:"tag,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Text     string            `json:"text,omitempty"`
	Children []wireNode        `json:"children,omitempty"`
}

func toWire(nodes []dom.Node) []wireNode {
	out := make([]wireNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, wireNode{Tag: n.Tag, Attrs: n.Attrs, Text: n.Text, Children: toWire(n.Children)})
	}
	return out
}

func (e *Element) ReplaceChildren(nodes []dom.Node) error {
	_, err := e.p.mutate("replaceChildren", e.id, toWire(nodes))
	return err
}

func (e *Element) Dispatch(ev dom.Event) error {
	_, err := e.p.mutate("dispatch", e.id, ev)
	return err
}
