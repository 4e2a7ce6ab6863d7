// File: internal/insert/insert.go
package insert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
)

// Mode selects how value-based controls receive text.
type Mode string

const (
	// ModeReplace overwrites the current value.
	ModeReplace Mode = "replace"
	// ModeAtCursor splices the text into the current selection.
	ModeAtCursor Mode = "cursor"
)

// ParseMode parses a mode name; the empty string means ModeReplace.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeReplace:
		return ModeReplace, nil
	case ModeAtCursor, "at-cursor":
		return ModeAtCursor, nil
	}
	return "", fmt.Errorf("unknown insert mode %q", s)
}

// DefaultSettleDelay is how long structured editors get to process focus
// before their content is rebuilt.
const DefaultSettleDelay = 50 * time.Millisecond

// FailureNotice is shown to the user when insertion fails.
const FailureNotice = "Automatic insertion failed; please paste the script manually."

// NotificationSequence is dispatched on the target after every write, so
// that host frameworks observe the change. input precedes change.
var NotificationSequence = []string{"focus", "keydown", "keypress", "input", "keyup", "change", "blur"}

var (
	ErrNotMutable = errors.New("insert: element cannot be written to")
	ErrDetached   = errors.New("insert: element detached before write")
	ErrNilTarget  = errors.New("insert: no target element")
	errPanicked   = errors.New("insert: panic during insertion")
)

// Result reports the outcome of one insertion. A failed Result carries the
// cause, the user notice and the text to offer for manual copying.
type Result struct {
	OK       bool
	Strategy dom.EditModel
	Err      error
	Notice   string
	Fallback string
}

// Inserter writes text into editable elements.
type Inserter struct {
	logger      *zap.Logger
	settleDelay time.Duration
}

// New returns an Inserter. A negative settle delay selects the default.
func New(logger *zap.Logger, settleDelay time.Duration) *Inserter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settleDelay < 0 {
		settleDelay = DefaultSettleDelay
	}
	return &Inserter{logger: logger.Named("inserter"), settleDelay: settleDelay}
}

// Insert writes text into el using the strategy its edit model calls for,
// then dispatches NotificationSequence. It never panics and never returns
// an error directly; failures are reported in the Result.
func (in *Inserter) Insert(ctx context.Context, el dom.Element, text string, mode Mode) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = in.fail(res.Strategy, text, fmt.Errorf("%w: %v", errPanicked, r))
		}
	}()

	res.Strategy = dom.EditModelOf(el)
	if el == nil {
		return in.fail(res.Strategy, text, ErrNilTarget)
	}
	m, ok := el.(dom.Mutable)
	if !ok {
		return in.fail(res.Strategy, text, ErrNotMutable)
	}
	if err := ctx.Err(); err != nil {
		return in.fail(res.Strategy, text, err)
	}

	in.logger.Debug("Inserting content",
		zap.String("strategy", res.Strategy.String()),
		zap.String("target", el.Locator()),
		zap.Int("length", len(text)))

	if err := in.write(ctx, m, res.Strategy, text, mode); err != nil {
		return in.fail(res.Strategy, text, err)
	}
	if err := notify(m, text); err != nil {
		return in.fail(res.Strategy, text, fmt.Errorf("failed to dispatch change notifications: %w", err))
	}
	res.OK = true
	return res
}

func (in *Inserter) fail(strategy dom.EditModel, text string, err error) Result {
	in.logger.Warn("Insertion failed", zap.String("strategy", strategy.String()), zap.Error(err))
	return Result{Strategy: strategy, Err: err, Notice: FailureNotice, Fallback: text}
}

func (in *Inserter) write(ctx context.Context, m dom.Mutable, strategy dom.EditModel, text string, mode Mode) error {
	switch strategy {
	case dom.EditStructuredLines:
		return in.writeStructured(ctx, m, text)
	case dom.EditRichEditor:
		if err := m.Focus(); err != nil {
			return fmt.Errorf("failed to focus target: %w", err)
		}
		return in.writeRich(m, text)
	case dom.EditValue:
		if err := m.Focus(); err != nil {
			return fmt.Errorf("failed to focus target: %w", err)
		}
		return writeValue(m, text, mode)
	case dom.EditContentEditable:
		if err := m.Focus(); err != nil {
			return fmt.Errorf("failed to focus target: %w", err)
		}
		return m.SetTextContent(text)
	default:
		if _, ok := m.Value(); ok {
			return writeValue(m, text, mode)
		}
		return m.SetTextContent(text)
	}
}

// writeValue sets the value of an input or textarea and leaves the caret
// after the inserted text.
func writeValue(m dom.Mutable, text string, mode Mode) error {
	current, _ := m.Value()
	start, end, hasSelection := m.SelectionRange()

	next, caret := text, dom.UTF16Len(text)
	if mode == ModeAtCursor {
		if !hasSelection {
			start, end = dom.UTF16Len(current), dom.UTF16Len(current)
		}
		next, caret = dom.SpliceUTF16(current, start, end, text)
	}
	if err := m.SetValue(next); err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	if hasSelection {
		if err := m.SetSelectionRange(caret, caret); err != nil {
			return fmt.Errorf("failed to place caret: %w", err)
		}
	}
	return nil
}

// writeRich announces the edit with beforeinput, selects the existing
// content and replaces it through the editing command, falling back to a
// plain text replacement when the command is refused.
func (in *Inserter) writeRich(m dom.Mutable, text string) error {
	before := dom.NewEvent("beforeinput")
	before.InputType = "insertText"
	before.Data = text
	if err := m.Dispatch(before); err != nil {
		return fmt.Errorf("failed to dispatch beforeinput: %w", err)
	}
	if err := m.SelectAllContents(); err != nil {
		return fmt.Errorf("failed to select content: %w", err)
	}
	ok, err := m.ExecInsertText(text)
	if err != nil {
		in.logger.Debug("insertText command failed, replacing text content", zap.Error(err))
	}
	if ok && err == nil {
		return nil
	}
	return m.SetTextContent(text)
}

// writeStructured focuses the editor, lets the page settle, and rebuilds the
// line blocks. The write is abandoned if ctx ends or the editor is detached
// while waiting.
func (in *Inserter) writeStructured(ctx context.Context, m dom.Mutable, text string) error {
	if err := m.Focus(); err != nil {
		return fmt.Errorf("failed to focus target: %w", err)
	}
	if in.settleDelay > 0 {
		timer := time.NewTimer(in.settleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("deferred write cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
	if !m.IsConnected() {
		return ErrDetached
	}
	return m.ReplaceChildren(StructuredLines(text))
}

// StructuredLines renders text as one block per line: a span holding the
// text, or a line break placeholder for blank lines.
func StructuredLines(text string) []dom.Node {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	nodes := make([]dom.Node, 0, len(lines))
	for i, line := range lines {
		block := dom.Node{Tag: "div", Attrs: map[string]string{"id": fmt.Sprintf("input_line_%d", i)}}
		if strings.TrimSpace(line) == "" {
			block.Children = []dom.Node{{Tag: "br"}}
		} else {
			block.Children = []dom.Node{{Tag: "span", Text: line}}
		}
		nodes = append(nodes, block)
	}
	return nodes
}

func notify(m dom.Mutable, text string) error {
	for _, typ := range NotificationSequence {
		ev := dom.NewEvent(typ)
		if typ == "input" {
			ev.InputType = "insertText"
			ev.Data = text
		}
		if err := m.Dispatch(ev); err != nil {
			return fmt.Errorf("%s: %w", typ, err)
		}
	}
	return nil
}
