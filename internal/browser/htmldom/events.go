// File: internal/browser/htmldom/events.go
package htmldom

import (
	"sort"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
)

// Listener observes a dispatched event. current is the element the listener
// was registered on; target is where the event was dispatched.
type Listener func(ev dom.Event, target, current dom.Element)

// DispatchedEvent is an entry of the document's event log.
type DispatchedEvent struct {
	Target *Element
	Event  dom.Event
}

// AddEventListener registers fn for events of type typ reaching el, either
// dispatched on it or bubbling from a descendant.
func (d *Document) AddEventListener(el *Element, typ string, fn Listener) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	byType, ok := d.listeners[el.n]
	if !ok {
		byType = make(map[string]map[int]Listener)
		d.listeners[el.n] = byType
	}
	if byType[typ] == nil {
		byType[typ] = make(map[int]Listener)
	}
	id := d.nextID
	d.nextID++
	byType[typ][id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners[el.n][typ], id)
	}
}

// Events returns a copy of the event log in dispatch order.
func (d *Document) Events() []DispatchedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DispatchedEvent(nil), d.events...)
}

// EventTypes returns the types of the events dispatched on el, in order.
func (d *Document) EventTypes(el *Element) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, ev := range d.events {
		if ev.Target == el {
			out = append(out, ev.Event.Type)
		}
	}
	return out
}

// Dispatch logs ev and delivers it to listeners on e and, when the event
// bubbles, on each ancestor.
func (e *Element) Dispatch(ev dom.Event) error {
	type call struct {
		fn      Listener
		current dom.Element
	}

	e.d.mu.Lock()
	if !e.d.connectedLocked(e.n) {
		e.d.mu.Unlock()
		return ErrDetached
	}
	e.d.events = append(e.d.events, DispatchedEvent{Target: e, Event: ev})
	var calls []call
	for p := e.n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		if byID := e.d.listeners[p][ev.Type]; len(byID) > 0 {
			ids := make([]int, 0, len(byID))
			for id := range byID {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			cur := e.d.wrapLocked(p)
			for _, id := range ids {
				calls = append(calls, call{fn: byID[id], current: cur})
			}
		}
		if !ev.Bubbles {
			break
		}
	}
	e.d.mu.Unlock()

	for _, c := range calls {
		c.fn(ev, e, c.current)
	}
	return nil
}
