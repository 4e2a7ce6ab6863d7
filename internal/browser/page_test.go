// File: internal/browser/page_test.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
	"github.com/xkilldash9x/scriptfill/internal/insert"
)

// -- Mock Evaluator --

// mockEvaluator answers expressions with canned JSON.
type mockEvaluator struct {
	mock.Mock
}

func (m *mockEvaluator) Evaluate(ctx context.Context, expression string, res interface{}) error {
	args := m.Called(expression)
	if raw := args.String(0); raw != "" {
		if err := json.Unmarshal([]byte(raw), res); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func newMockPage(t *testing.T) (*Page, *mockEvaluator) {
	ev := new(mockEvaluator)
	t.Cleanup(func() { ev.AssertExpectations(t) })
	return NewPage(context.Background(), ev, zaptest.NewLogger(t)), ev
}

func TestPage_QueryReturnsCanonicalElements(t *testing.T) {
	p, ev := newMockPage(t)
	ev.On("Evaluate", `window.__sf.query("textarea, [contenteditable]")`).Return("[3, 7, 3]", nil).Once()

	els := p.QuerySelectorAll("textarea, [contenteditable]")
	require.Len(t, els, 3)
	assert.True(t, els[0] == els[2])
	assert.False(t, els[0] == els[1])
	assert.Equal(t, int64(7), els[1].(*Element).ID())
}

func TestPage_ReadsDegradeOnFailure(t *testing.T) {
	p, ev := newMockPage(t)
	ev.On("Evaluate", `window.__sf.active()`).Return("", errors.New("target closed")).Once()
	ev.On("Evaluate", `window.__sf.query("input")`).Return("", errors.New("target closed")).Once()

	assert.True(t, p.ActiveElement() == nil, "a missing element is a nil interface, not a typed nil")
	assert.Empty(t, p.QuerySelectorAll("input"))

	el := p.element(5)
	ev.On("Evaluate", `window.__sf.style(5)`).Return("", errors.New("target closed")).Once()
	ev.On("Evaluate", `window.__sf.attr(5, "placeholder")`).Return("", errors.New("target closed")).Once()
	assert.Equal(t, "none", el.ComputedStyle().Display)
	_, ok := el.Attr("placeholder")
	assert.False(t, ok)
}

func TestElement_Reads(t *testing.T) {
	p, ev := newMockPage(t)
	el := p.element(2)

	ev.On("Evaluate", `window.__sf.tag(2)`).Return(`"TEXTAREA"`, nil)
	ev.On("Evaluate", `window.__sf.attr(2, "placeholder")`).Return(`"Type a message"`, nil)
	ev.On("Evaluate", `window.__sf.attr(2, "disabled")`).Return(`null`, nil)
	ev.On("Evaluate", `window.__sf.closest(2, "form")`).Return(`9`, nil)
	ev.On("Evaluate", `window.__sf.closest(2, "nav")`).Return(`0`, nil)
	ev.On("Evaluate", `window.__sf.rect(2)`).Return(`{"x":10,"y":500,"width":300,"height":60}`, nil)
	ev.On("Evaluate", `window.__sf.style(2)`).Return(`{"display":"block","visibility":"visible","opacity":1}`, nil)
	ev.On("Evaluate", `window.__sf.value(2)`).Return(`{"ok":true,"value":"draft"}`, nil)
	ev.On("Evaluate", `window.__sf.selection(2)`).Return(`{"ok":true,"start":1,"end":3}`, nil)

	assert.Equal(t, "textarea", el.TagName())
	v, ok := el.Attr("placeholder")
	assert.True(t, ok)
	assert.Equal(t, "Type a message", v)
	_, ok = el.Attr("disabled")
	assert.False(t, ok)
	assert.True(t, el.Closest("form") == p.element(9))
	assert.Nil(t, el.Closest("nav"))
	assert.Equal(t, dom.Rect{X: 10, Y: 500, Width: 300, Height: 60}, el.BoundingRect())
	assert.Equal(t, dom.Style{Display: "block", Visibility: "visible", Opacity: 1}, el.ComputedStyle())
	val, ok := el.Value()
	assert.True(t, ok)
	assert.Equal(t, "draft", val)
	start, end, ok := el.SelectionRange()
	assert.Equal(t, []interface{}{1, 3, true}, []interface{}{start, end, ok})
}

func TestElement_Mutations(t *testing.T) {
	p, ev := newMockPage(t)
	el := p.element(4)

	ev.On("Evaluate", `window.__sf.setValue(4, "Xin chào")`).Return(`{"ok":true,"value":null}`, nil)
	ev.On("Evaluate", `window.__sf.focus(4)`).Return(`{"ok":false,"error":"detached"}`, nil)
	ev.On("Evaluate", `window.__sf.setSelection(4, 0, 2)`).Return(`{"ok":false,"error":"no selection API"}`, nil)
	ev.On("Evaluate", `window.__sf.execInsert(4, "hi")`).Return(`{"ok":true,"value":true}`, nil)

	assert.NoError(t, el.SetValue("Xin chào"))
	assert.ErrorIs(t, el.Focus(), ErrDetached)
	assert.ErrorContains(t, el.SetSelectionRange(0, 2), "no selection API")
	inserted, err := el.ExecInsertText("hi")
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestElement_WireEncoding(t *testing.T) {
	p, ev := newMockPage(t)
	el := p.element(6)

	var exprs []string
	ev.On("Evaluate", mock.AnythingOfType("string")).Run(func(args mock.Arguments) {
		exprs = append(exprs, args.String(0))
	}).Return(`{"ok":true,"value":null}`, nil)

	require.NoError(t, el.ReplaceChildren(insert.StructuredLines("Hello\n")))
	require.NoError(t, el.Dispatch(dom.NewEvent("input")))

	require.Len(t, exprs, 2)
	assert.Equal(t,
		`window.__sf.replaceChildren(6, [{"tag":"div","attrs":{"id":"input_line_0"},"children":[{"tag":"span","text":"Hello"}]},{"tag":"div","attrs":{"id":"input_line_1"},"children":[{"tag":"br"}]}])`,
		exprs[0])
	assert.Equal(t, `window.__sf.dispatch(6, {"type":"input","kind":"InputEvent","bubbles":true,"cancelable":true})`, exprs[1])
}

func TestPage_FocusSubscribers(t *testing.T) {
	p, _ := newMockPage(t)

	var mu sync.Mutex
	var got []dom.Element
	unsubscribe := p.OnFocusIn(func(el dom.Element) {
		mu.Lock()
		got = append(got, el)
		mu.Unlock()
	})

	p.handleFocus("12")
	p.handleFocus("not-a-number")
	p.handleFocus("0")
	unsubscribe()
	unsubscribe()
	p.handleFocus("13")

	require.Len(t, got, 1)
	assert.True(t, got[0] == p.element(12))
}

func TestRuntimeScript(t *testing.T) {
	assert.Contains(t, runtimeScript, "window.__sf = {")
	assert.Contains(t, runtimeScript, "addEventListener('focusin'")
	assert.Contains(t, runtimeScript, "{ capture: true, passive: true }")
	assert.Contains(t, runtimeScript, "window."+focusBinding+"(String(id))")
	assert.Contains(t, runtimeScript, "new WeakRef(el)")
}

// -- Fake runtime --

// fakeRuntime interprets the calls a Page makes against a single input
// element with id 1, enough to drive the inserter end to end.
type fakeRuntime struct {
	mu        sync.Mutex
	value     string
	start     int
	end       int
	connected bool
	events    []string
}

func (f *fakeRuntime) Evaluate(ctx context.Context, expression string, res interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	const prefix = "window.__sf."
	if !strings.HasPrefix(expression, prefix) {
		return fmt.Errorf("unexpected expression %q", expression)
	}
	open := strings.Index(expression, "(")
	method := expression[len(prefix):open]
	var args []jsoniter.RawMessage
	if err := json.Unmarshal([]byte("["+expression[open+1:len(expression)-1]+"]"), &args); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out interface{}
	ok := map[string]interface{}{"ok": true, "value": nil}
	switch method {
	case "tag":
		out = "input"
	case "attr", "closest":
		out = nil
		if method == "closest" {
			out = 0
		}
	case "matches", "editable":
		out = false
	case "connected":
		out = f.connected
	case "value":
		out = map[string]interface{}{"ok": true, "value": f.value}
	case "selection":
		out = map[string]interface{}{"ok": true, "start": f.start, "end": f.end}
	case "locator":
		out = "//input[1]"
	case "focus":
		out = ok
	case "setValue":
		_ = json.Unmarshal(args[1], &f.value)
		f.start, f.end = len(f.value), len(f.value)
		out = ok
	case "setSelection":
		_ = json.Unmarshal(args[1], &f.start)
		_ = json.Unmarshal(args[2], &f.end)
		out = ok
	case "dispatch":
		var ev dom.Event
		_ = json.Unmarshal(args[1], &ev)
		f.events = append(f.events, ev.Type)
		out = ok
	default:
		return fmt.Errorf("unexpected method %q", method)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, res)
}

func TestInserterAgainstLivePage(t *testing.T) {
	rt := &fakeRuntime{value: "Hello World", start: 5, end: 5, connected: true}
	p := NewPage(context.Background(), rt, zaptest.NewLogger(t))
	el := p.element(1)

	res := insert.New(zaptest.NewLogger(t), time.Millisecond).Insert(context.Background(), el, ",", insert.ModeAtCursor)
	require.True(t, res.OK, "%v", res.Err)
	assert.Equal(t, dom.EditValue, res.Strategy)
	assert.Equal(t, "Hello, World", rt.value)
	assert.Equal(t, []int{6, 6}, []int{rt.start, rt.end})
	assert.Equal(t, insert.NotificationSequence, rt.events)
}
