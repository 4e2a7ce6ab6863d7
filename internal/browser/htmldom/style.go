// File: internal/browser/htmldom/style.go
package htmldom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
)

const baseFontSize = 16.0

// inlineTags render inline by default; everything else not listed in
// hiddenTags is treated as a block.
var inlineTags = map[string]string{
	"span": "inline", "a": "inline", "b": "inline", "i": "inline", "em": "inline",
	"strong": "inline", "label": "inline", "small": "inline", "img": "inline",
	"input": "inline-block", "textarea": "inline-block", "button": "inline-block",
	"select": "inline-block",
}

var hiddenTags = map[string]bool{
	"head": true, "script": true, "style": true, "template": true, "meta": true,
	"link": true, "title": true, "noscript": true, "base": true,
}

// defaultDisplay is the user agent display value of n.
func defaultDisplay(n *html.Node) string {
	tag := n.Data
	if hiddenTags[tag] {
		return "none"
	}
	if _, ok := attr(n, "hidden"); ok {
		return "none"
	}
	if tag == "input" {
		if t, _ := attr(n, "type"); strings.EqualFold(t, "hidden") {
			return "none"
		}
	}
	if d, ok := inlineTags[tag]; ok {
		return d
	}
	return "block"
}

// computed is the resolved style of one element.
type computed struct {
	props      map[string]string
	display    string
	visibility string
	opacity    float64
}

func (c computed) style() dom.Style {
	return dom.Style{Display: c.display, Visibility: c.visibility, Opacity: c.opacity}
}

func (c computed) get(prop string) string {
	return strings.TrimSpace(strings.ToLower(c.props[prop]))
}

// computeStyle resolves n's style. parentVisibility carries the inherited
// visibility value ("visible" at the root).
func computeStyle(n *html.Node, rules []styleRule, parentVisibility string) computed {
	props := cascade(n, rules)
	c := computed{props: props, display: defaultDisplay(n), visibility: parentVisibility, opacity: 1}

	if d := c.get("display"); d != "" && d != "inherit" && d != "initial" {
		c.display = d
	}
	switch v := c.get("visibility"); v {
	case "visible", "hidden", "collapse":
		c.visibility = v
	}
	if o := c.get("opacity"); o != "" {
		if strings.HasSuffix(o, "%") {
			if f, err := strconv.ParseFloat(strings.TrimSuffix(o, "%"), 64); err == nil {
				c.opacity = f / 100
			}
		} else if f, err := strconv.ParseFloat(o, 64); err == nil {
			c.opacity = f
		}
		c.opacity = min(max(c.opacity, 0), 1)
	}
	return c
}

// resolveLength converts a CSS length to pixels. reference is the containing
// dimension percentages resolve against. ok is false for "auto", empty
// values and anything unparseable.
func resolveLength(value string, reference float64, vp dom.Viewport) (float64, bool) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" || value == "auto" || value == "normal" {
		return 0, false
	}
	units := []struct {
		suffix string
		scale  float64
	}{
		{"%", reference / 100},
		{"px", 1},
		{"rem", baseFontSize},
		{"em", baseFontSize},
		{"vw", vp.Width / 100},
		{"vh", vp.Height / 100},
		{"vmin", min(vp.Width, vp.Height) / 100},
		{"vmax", max(vp.Width, vp.Height) / 100},
	}
	for _, u := range units {
		if !strings.HasSuffix(value, u.suffix) {
			continue
		}
		if f, err := strconv.ParseFloat(strings.TrimSuffix(value, u.suffix), 64); err == nil {
			return f * u.scale, true
		}
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f, true
	}
	return 0, false
}
