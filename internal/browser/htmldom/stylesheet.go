// File: internal/browser/htmldom/stylesheet.go
package htmldom

import (
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// declaration is a single "property: value" pair.
type declaration struct {
	property  string
	value     string
	important bool
}

// styleRule binds the declarations of a rule set to one compiled selector of
// its selector list. A rule "a, b { ... }" yields two styleRules.
type styleRule struct {
	selector    cascadia.Sel
	specificity cascadia.Specificity
	decls       []declaration
	order       int
}

// cssParser is a forgiving single pass parser. It understands rule sets and
// skips at-rules, comments and anything it cannot make sense of.
type cssParser struct {
	input string
	pos   int
}

// parseStylesheet extracts the rule sets of css. Selectors cascadia cannot
// compile are dropped individually.
func parseStylesheet(css string) []styleRule {
	p := &cssParser{input: css}
	var rules []styleRule
	for {
		p.consumeWhitespace()
		if p.eof() {
			break
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		if p.currentChar() == '@' {
			p.skipAtRule()
			continue
		}

		prelude := p.readPrelude()
		if p.eof() {
			break
		}
		decls := p.parseBlock()
		if len(decls) == 0 {
			continue
		}
		for _, text := range splitSelectorList(prelude) {
			sel, err := cascadia.Parse(text)
			if err != nil || sel.PseudoElement() != "" {
				continue
			}
			rules = append(rules, styleRule{selector: sel, specificity: sel.Specificity(), decls: decls})
		}
	}
	return rules
}

// parseInlineStyle parses the contents of a style attribute.
func parseInlineStyle(attr string) []declaration {
	p := &cssParser{input: attr}
	return p.parseDeclarations()
}

// readPrelude returns the raw selector text up to the opening brace.
func (p *cssParser) readPrelude() string {
	start := p.pos
	for !p.eof() {
		switch ch := p.currentChar(); ch {
		case '{':
			return strings.TrimSpace(p.input[start:p.pos])
		case '"', '\'':
			p.skipQuotedString(ch)
		default:
			p.pos++
		}
	}
	return ""
}

// parseBlock parses "{ declarations }".
func (p *cssParser) parseBlock() []declaration {
	if p.currentChar() != '{' {
		return nil
	}
	p.consumeChar()
	decls := p.parseDeclarations()
	if !p.eof() && p.currentChar() == '}' {
		p.consumeChar()
	}
	return decls
}

// parseDeclarations reads declarations until a closing brace or EOF.
func (p *cssParser) parseDeclarations() []declaration {
	var decls []declaration
	for {
		p.consumeWhitespace()
		if p.eof() || p.currentChar() == '}' {
			return decls
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		if p.currentChar() == ';' {
			p.consumeChar()
			continue
		}
		if d, ok := p.parseDeclaration(); ok {
			decls = append(decls, d)
		}
	}
}

func (p *cssParser) parseDeclaration() (declaration, bool) {
	if !isIdentChar(p.currentChar()) {
		p.skipTo(';', '}')
		return declaration{}, false
	}
	prop := strings.ToLower(p.parseIdentifier())
	p.consumeWhitespace()
	if p.eof() || p.currentChar() != ':' {
		p.skipTo(';', '}')
		return declaration{}, false
	}
	p.consumeChar()
	p.consumeWhitespace()

	val := p.parseValue()
	important := false
	if lower := strings.ToLower(val); strings.HasSuffix(lower, "!important") {
		important = true
		val = strings.TrimSpace(val[:len(val)-len("!important")])
	}
	if !p.eof() && p.currentChar() == ';' {
		p.consumeChar()
	}
	if val == "" {
		return declaration{}, false
	}
	return declaration{property: prop, value: val, important: important}, true
}

func (p *cssParser) parseValue() string {
	start := p.pos
	for !p.eof() {
		ch := p.currentChar()
		if ch == ';' || ch == '}' {
			break
		}
		if ch == '"' || ch == '\'' {
			p.skipQuotedString(ch)
			continue
		}
		if ch == '(' {
			p.consumeChar()
			p.skipBlock('(', ')')
			continue
		}
		p.pos++
	}
	return strings.TrimSpace(p.input[start:p.pos])
}

func (p *cssParser) parseIdentifier() string {
	start := p.pos
	for !p.eof() && isIdentChar(p.currentChar()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

// skipAtRule skips a statement at-rule ("@import ...;") or a block at-rule
// ("@media ... { ... }"), including nested blocks.
func (p *cssParser) skipAtRule() {
	p.skipTo(';', '{')
	if p.eof() {
		return
	}
	if p.consumeChar() == '{' {
		p.skipBlock('{', '}')
	}
}

func (p *cssParser) eof() bool { return p.pos >= len(p.input) }

func (p *cssParser) currentChar() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *cssParser) consumeChar() byte {
	ch := p.currentChar()
	if !p.eof() {
		p.pos++
	}
	return ch
}

func (p *cssParser) consumeWhitespace() {
	for !p.eof() && isSpace(p.currentChar()) {
		p.pos++
	}
}

func (p *cssParser) startsWith(s string) bool {
	return strings.HasPrefix(p.input[p.pos:], s)
}

func (p *cssParser) skipComment() {
	p.pos += 2
	if end := strings.Index(p.input[p.pos:], "*/"); end >= 0 {
		p.pos += end + 2
		return
	}
	p.pos = len(p.input)
}

func (p *cssParser) skipTo(targets ...byte) {
	for !p.eof() {
		if strings.IndexByte(string(targets), p.currentChar()) >= 0 {
			return
		}
		p.pos++
	}
}

// skipBlock consumes input until the close that balances an already consumed open.
func (p *cssParser) skipBlock(open, close byte) {
	depth := 1
	for !p.eof() {
		switch c := p.consumeChar(); c {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (p *cssParser) skipQuotedString(quote byte) {
	p.consumeChar()
	for !p.eof() {
		ch := p.consumeChar()
		if ch == '\\' {
			p.consumeChar()
		} else if ch == quote {
			return
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isIdentChar(c byte) bool {
	return c == '-' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c >= 0x80
}

// splitSelectorList splits a selector list on top level commas.
func splitSelectorList(s string) []string {
	var out []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// origin ranks where a declaration came from, lowest first.
type origin int

const (
	originAuthor origin = iota
	originInline
)

type matchedDecl struct {
	decl        declaration
	origin      origin
	specificity cascadia.Specificity
	order       int
}

// cascadePriority orders normal author, normal inline, then important.
func cascadePriority(m matchedDecl) int {
	if m.decl.important {
		return 3
	}
	if m.origin == originInline {
		return 2
	}
	return 1
}

// cascade resolves the specified values of n from the author rules and its
// inline style attribute.
func cascade(n *html.Node, rules []styleRule) map[string]string {
	var matched []matchedDecl
	for _, r := range rules {
		if !r.selector.Match(n) {
			continue
		}
		for _, d := range r.decls {
			matched = append(matched, matchedDecl{decl: d, origin: originAuthor, specificity: r.specificity, order: r.order})
		}
	}
	if style, ok := attr(n, "style"); ok {
		for _, d := range parseInlineStyle(style) {
			matched = append(matched, matchedDecl{decl: d, origin: originInline, order: len(rules)})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if pa, pb := cascadePriority(a), cascadePriority(b); pa != pb {
			return pa < pb
		}
		if a.origin != b.origin {
			return a.origin < b.origin
		}
		if a.specificity != b.specificity {
			return a.specificity.Less(b.specificity)
		}
		return a.order < b.order
	})

	styles := make(map[string]string, len(matched))
	for _, m := range matched {
		styles[m.decl.property] = m.decl.value
	}
	return styles
}
