// File: internal/detect/rules.go
package detect

import (
	"strings"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
)

// Positive signal strengths carried by message-like verdicts.
const (
	StrengthChatContainer    = 80
	StrengthMessageKeyword   = 60
	StrengthRichEditor       = 50
	StrengthComposeContainer = 30
)

// Rules is the single rule set shared by classification and scoring.
// Keyword lists are matched after normalization, so entries may be written
// with or without diacritics.
type Rules struct {
	// InspectedAttributes are read for keyword matching.
	InspectedAttributes []string
	SearchKeywords      []string
	MessageKeywords     []string
	ContactKeywords     []string

	// NavigationSelector matches landmarks whose descendants are never composers.
	NavigationSelector string
	// ChatContainerSelector matches known chat composer containers.
	ChatContainerSelector string
	// ComposeContainerSelector is the broader container set that includes
	// editor-like elements only.
	ComposeContainerSelector string
}

// DefaultRules returns the built-in multilingual rule set.
func DefaultRules() *Rules {
	return &Rules{
		InspectedAttributes: []string{
			"placeholder", "aria-label", "aria-placeholder", "data-placeholder",
			"title", "name", "id", "class", "data-testid", "autocomplete",
		},
		SearchKeywords: []string{
			"search", "tìm kiếm", "timkiem", "搜索", "搜尋", "查找", "検索", "검색",
			"buscar", "búsqueda", "recherche", "rechercher", "suche", "suchen",
			"поиск", "pesquisar", "procurar", "cerca", "zoeken",
		},
		MessageKeywords: []string{
			"message", "messaging", "chat", "reply", "compose", "type a", "write a",
			"tin nhắn", "nhắn tin", "soạn tin", "trả lời",
			"消息", "信息", "聊天", "回复", "メッセージ", "메시지",
			"mensaje", "mensagem", "nachricht", "сообщение", "répondre",
		},
		ContactKeywords: []string{
			"phone", "telephone", "mobile", "số điện thoại", "điện thoại", "sdt",
			"contact", "liên hệ", "email", "e-mail", "postal", "zip", "postcode", "otp",
			"电话", "手机", "電話", "teléfono", "telefone", "telefon", "телефон",
		},
		NavigationSelector: strings.Join([]string{
			"nav", "header", `[role="navigation"]`, `[role="banner"]`, `[role="search"]`,
			".navbar", ".topbar", ".top-bar", ".site-header", ".header",
		}, ", "),
		ChatContainerSelector: strings.Join([]string{
			"#chatInput", "#chat-input", ".chat-input", ".chat-input-container",
			".chat-box-input", ".chat-composer", ".message-input", ".msg-input",
			".composer", `[data-testid="conversation-compose-box-input"]`,
		}, ", "),
		ComposeContainerSelector: strings.Join([]string{
			`[class*="chat"]`, `[class*="message"]`, `[class*="compose"]`,
			`[class*="reply"]`, `[id*="chat"]`, `[id*="message"]`, `[id*="compose"]`,
		}, ", "),
	}
}

// WithExtraKeywords returns a copy of r with additional keywords appended.
func (r *Rules) WithExtraKeywords(search, message, contact []string) *Rules {
	c := *r
	c.SearchKeywords = append(append([]string(nil), r.SearchKeywords...), search...)
	c.MessageKeywords = append(append([]string(nil), r.MessageKeywords...), message...)
	c.ContactKeywords = append(append([]string(nil), r.ContactKeywords...), contact...)
	return &c
}

// CandidateSelectors is the fixed query list for input-like elements. Input
// types are narrowed by structural validation rather than by selector, since
// attribute selectors on type are case sensitive in some engines.
var CandidateSelectors = append([]string{
	"input",
	"textarea",
	"[contenteditable]",
	`[role="textbox"]`,
	dom.StructuredEditorSelector,
}, dom.RichEditorMarkers...)

// CandidateSelector joins CandidateSelectors into one selector group.
var CandidateSelector = strings.Join(CandidateSelectors, ", ")
