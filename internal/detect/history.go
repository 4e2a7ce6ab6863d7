// File: internal/detect/history.go
package detect

import (
	"sync"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
)

// DefaultHistoryCapacity bounds the focus history.
const DefaultHistoryCapacity = 5

// History is a bounded most-recent-first list of elements that received
// focus. Stale entries are tolerated and skipped once they are detached.
// Focus notifications may arrive from listener goroutines, so it is safe
// for concurrent use.
type History struct {
	mu       sync.Mutex
	capacity int
	entries  []dom.Element
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity, entries: make([]dom.Element, 0, capacity)}
}

func (h *History) Capacity() int { return h.capacity }

// OnFocus records el if it is a structurally valid input, moving it to the
// front and dropping the oldest entries beyond capacity. It reports whether
// el was recorded.
func (h *History) OnFocus(el dom.Element) bool {
	if !IsStructurallyValid(el) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	next := make([]dom.Element, 0, h.capacity)
	next = append(next, el)
	for _, e := range h.entries {
		if e == el {
			continue
		}
		if len(next) == h.capacity {
			break
		}
		next = append(next, e)
	}
	h.entries = next
	return true
}

// Entries returns a snapshot, most recent first.
func (h *History) Entries() []dom.Element {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]dom.Element(nil), h.entries...)
}

// Last returns the most recently focused entry, or nil.
func (h *History) Last() dom.Element {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return nil
	}
	return h.entries[0]
}

// Best returns the most recent entry that is still connected and satisfies
// valid. Detached entries met during the scan are dropped.
func (h *History) Best(valid func(dom.Element) bool) dom.Element {
	var stale []dom.Element
	var best dom.Element
	for _, el := range h.Entries() {
		if !el.IsConnected() {
			stale = append(stale, el)
			continue
		}
		if valid == nil || valid(el) {
			best = el
			break
		}
	}
	if len(stale) > 0 {
		h.prune(stale)
	}
	return best
}

func (h *History) prune(stale []dom.Element) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.entries[:0]
	for _, e := range h.entries {
		drop := false
		for _, s := range stale {
			if e == s {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, e)
		}
	}
	h.entries = kept
}

// Reset empties the history.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = h.entries[:0]
}
