// File: internal/browser/dom/edit_model.go
package dom

import "strings"

// EditModel is how an editable element stores its content.
type EditModel int

const (
	// EditUnknown elements get the value-or-text fallback.
	EditUnknown EditModel = iota
	EditValue
	EditContentEditable
	EditRichEditor
	EditStructuredLines
)

func (m EditModel) String() string {
	switch m {
	case EditValue:
		return "value"
	case EditContentEditable:
		return "contenteditable"
	case EditRichEditor:
		return "rich-editor"
	case EditStructuredLines:
		return "structured-lines"
	default:
		return "fallback"
	}
}

// StructuredEditorSelector marks composers that keep one block per line and
// rebuild their model from those blocks.
const StructuredEditorSelector = "#richInput, .rich-input"

// RichEditorMarkers are framework markers of rich text editor content nodes.
var RichEditorMarkers = []string{
	`[data-lexical-editor="true"]`,
	".ProseMirror",
	".public-DraftEditor-content",
	".ql-editor",
	`[data-slate-editor="true"]`,
	".ck-editor__editable",
}

// RichEditorSelector joins RichEditorMarkers into a selector group.
var RichEditorSelector = strings.Join(RichEditorMarkers, ", ")

// IsStructuredEditor reports whether el is a structured multi-line composer.
func IsStructuredEditor(el Element) bool {
	return el != nil && el.Matches(StructuredEditorSelector)
}

// IsRichEditor reports whether el is a rich editor content node, either
// carrying the marker itself or being an editing host inside one.
func IsRichEditor(el Element) bool {
	if el == nil {
		return false
	}
	if el.Matches(RichEditorSelector) {
		return true
	}
	return el.IsContentEditable() && el.Closest(RichEditorSelector) != nil
}

// EditModelOf classifies how content should be written into el.
func EditModelOf(el Element) EditModel {
	if el == nil {
		return EditUnknown
	}
	switch {
	case IsStructuredEditor(el):
		return EditStructuredLines
	case IsRichEditor(el):
		return EditRichEditor
	}
	switch el.TagName() {
	case "input", "textarea":
		return EditValue
	}
	if el.IsContentEditable() {
		return EditContentEditable
	}
	return EditUnknown
}
