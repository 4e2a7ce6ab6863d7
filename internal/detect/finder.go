// File: internal/detect/finder.go
package detect

import (
	"strconv"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
)

// Finder collects input-like elements from a document.
type Finder struct {
	selector     string
	widgetRootID string
}

// NewFinder returns a Finder that skips anything inside the element with id
// widgetRootID. An empty id disables the exclusion.
func NewFinder(widgetRootID string) *Finder {
	return &Finder{selector: CandidateSelector, widgetRootID: widgetRootID}
}

// FindAll returns every input-like element once, in document order,
// excluding the widget's own subtree. It does not touch page state, so two
// calls without an intervening mutation return the same elements in the
// same order.
func (f *Finder) FindAll(doc dom.Document) []dom.Element {
	found := doc.QuerySelectorAll(f.selector)
	out := make([]dom.Element, 0, len(found))
	seen := make(map[dom.Element]struct{}, len(found))
	for _, el := range found {
		if _, dup := seen[el]; dup {
			continue
		}
		seen[el] = struct{}{}
		if f.InWidget(el) {
			continue
		}
		out = append(out, el)
	}
	return out
}

// InWidget reports whether el belongs to the widget subtree.
func (f *Finder) InWidget(el dom.Element) bool {
	if f.widgetRootID == "" || el == nil {
		return false
	}
	return el.Closest("[id="+strconv.Quote(f.widgetRootID)+"]") != nil
}
