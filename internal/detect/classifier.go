// File: internal/detect/classifier.go
package detect

import (
	"strings"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
	"github.com/xkilldash9x/scriptfill/internal/textnorm"
)

// Reason names the rule that decided a verdict.
type Reason string

const (
	ReasonInvalid          Reason = "structurally-invalid"
	ReasonRichEditor       Reason = "rich-editor"
	ReasonSearch           Reason = "search-keyword"
	ReasonNavigation       Reason = "navigation-landmark"
	ReasonContact          Reason = "contact-field"
	ReasonChatContainer    Reason = "chat-container"
	ReasonMessageKeyword   Reason = "message-keyword"
	ReasonComposeContainer Reason = "compose-container"
	ReasonNoSignal         Reason = "no-positive-signal"
)

// Verdict is the outcome of classifying one element. It is computed fresh
// on every pass.
type Verdict struct {
	Valid       bool   `json:"valid"`
	MessageLike bool   `json:"message_like"`
	Reason      Reason `json:"reason"`
	// Strength is the positive signal weight of an inclusion.
	Strength int `json:"strength,omitempty"`
	// Match is the keyword or selector that fired, for diagnostics.
	Match string `json:"match,omitempty"`
}

// Excluded reports whether a rule actively rejected the element, as opposed
// to it simply lacking a positive signal. Actively rejected elements are
// never used as fallback targets either.
func (v Verdict) Excluded() bool {
	switch v.Reason {
	case ReasonInvalid, ReasonSearch, ReasonNavigation, ReasonContact:
		return true
	}
	return false
}

var textInputTypes = map[string]bool{
	"": true, "text": true, "search": true, "email": true, "url": true, "tel": true, "password": true,
}

// IsStructurallyValid reports whether el can receive typed text at all: it is
// enabled, writable, and a text-like input, a textarea, an editing host or
// an ARIA textbox.
func IsStructurallyValid(el dom.Element) bool {
	if el == nil {
		return false
	}
	if _, ok := el.Attr("disabled"); ok || attrIs(el, "aria-disabled", "true") {
		return false
	}
	if _, ok := el.Attr("readonly"); ok || attrIs(el, "aria-readonly", "true") {
		return false
	}

	switch el.TagName() {
	case "input":
		t, _ := el.Attr("type")
		return textInputTypes[strings.ToLower(strings.TrimSpace(t))]
	case "textarea":
		return true
	}
	if el.IsContentEditable() {
		return true
	}
	return attrIs(el, "role", "textbox")
}

// IsEditorLike reports whether el is an editing host, ARIA textbox or rich
// editor content node, as opposed to a native form control.
func IsEditorLike(el dom.Element) bool {
	return el.IsContentEditable() || attrIs(el, "role", "textbox") ||
		dom.IsRichEditor(el) || dom.IsStructuredEditor(el)
}

// Classifier applies the ordered message composer rules.
type Classifier struct {
	rules *Rules
}

func NewClassifier(rules *Rules) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

func (c *Classifier) Rules() *Rules { return c.rules }

// IsMessageLike reports whether el looks like a message composer.
func (c *Classifier) IsMessageLike(el dom.Element) bool {
	return c.Classify(el).MessageLike
}

// Classify runs structural validation and then the ordered rules. The first
// rule that fires decides. Navigation landmarks exclude everything inside
// them. Rich editor content nodes are included before the keyword
// exclusions, so a search-sounding editor still counts. Elements with no
// positive signal are excluded.
func (c *Classifier) Classify(el dom.Element) Verdict {
	if !IsStructurallyValid(el) {
		return Verdict{Reason: ReasonInvalid}
	}
	v := Verdict{Valid: true}
	include := func(r Reason, strength int, match string) Verdict {
		v.MessageLike, v.Reason, v.Strength, v.Match = true, r, strength, match
		return v
	}
	exclude := func(r Reason, match string) Verdict {
		v.Reason, v.Match = r, match
		return v
	}

	if el.Closest(c.rules.NavigationSelector) != nil {
		return exclude(ReasonNavigation, c.rules.NavigationSelector)
	}
	if dom.IsStructuredEditor(el) {
		return include(ReasonRichEditor, StrengthRichEditor, dom.StructuredEditorSelector)
	}
	if dom.IsRichEditor(el) {
		return include(ReasonRichEditor, StrengthRichEditor, dom.RichEditorSelector)
	}

	text := c.attributeText(el)
	if kw := c.SearchMatch(el); kw != "" {
		return exclude(ReasonSearch, kw)
	}
	editorLike := IsEditorLike(el)
	if !editorLike {
		if kw := textnorm.MatchFirst(text, c.rules.ContactKeywords); kw != "" {
			return exclude(ReasonContact, kw)
		}
		if hint := contactInputHint(el); hint != "" {
			return exclude(ReasonContact, hint)
		}
	}
	if el.Closest(c.rules.ChatContainerSelector) != nil {
		return include(ReasonChatContainer, StrengthChatContainer, c.rules.ChatContainerSelector)
	}
	if kw := textnorm.MatchFirst(text, c.rules.MessageKeywords); kw != "" {
		return include(ReasonMessageKeyword, StrengthMessageKeyword, kw)
	}
	if editorLike && el.Closest(c.rules.ComposeContainerSelector) != nil {
		return include(ReasonComposeContainer, StrengthComposeContainer, c.rules.ComposeContainerSelector)
	}
	return exclude(ReasonNoSignal, "")
}

// SearchMatch returns the search keyword found in el's inspected attributes,
// "type=search" or "role=searchbox" for those markers, or "".
func (c *Classifier) SearchMatch(el dom.Element) string {
	if el.TagName() == "input" && attrIs(el, "type", "search") {
		return "type=search"
	}
	if attrIs(el, "role", "searchbox") {
		return "role=searchbox"
	}
	return textnorm.MatchFirst(c.attributeText(el), c.rules.SearchKeywords)
}

// attributeText joins the inspected attribute values of el.
func (c *Classifier) attributeText(el dom.Element) string {
	var parts []string
	for _, name := range c.rules.InspectedAttributes {
		if v, ok := el.Attr(name); ok && strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " | ")
}

// contactInputHint reports input types and modes that denote phone, numeric
// or address entry.
func contactInputHint(el dom.Element) string {
	if el.TagName() == "input" {
		t, _ := el.Attr("type")
		switch t = strings.ToLower(strings.TrimSpace(t)); t {
		case "tel", "email", "number":
			return "type=" + t
		}
	}
	if mode, ok := el.Attr("inputmode"); ok {
		switch mode = strings.ToLower(strings.TrimSpace(mode)); mode {
		case "tel", "numeric", "decimal", "email":
			return "inputmode=" + mode
		}
	}
	if ac, ok := el.Attr("autocomplete"); ok {
		ac = strings.ToLower(ac)
		for _, token := range strings.Fields(ac) {
			if strings.HasPrefix(token, "tel") || token == "email" || token == "postal-code" {
				return "autocomplete=" + token
			}
		}
	}
	return ""
}

func attrIs(el dom.Element, name, want string) bool {
	v, ok := el.Attr(name)
	return ok && strings.EqualFold(strings.TrimSpace(v), want)
}
