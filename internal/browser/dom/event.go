// File: internal/browser/dom/event.go
package dom

// EventKind is the DOM interface used to construct a synthetic event.
type EventKind string

const (
	KindEvent         EventKind = "Event"
	KindFocusEvent    EventKind = "FocusEvent"
	KindKeyboardEvent EventKind = "KeyboardEvent"
	KindInputEvent    EventKind = "InputEvent"
)

// Event is the init dictionary of a synthetic DOM event.
type Event struct {
	Type       string    `json:"type"`
	Kind       EventKind `json:"kind"`
	Bubbles    bool      `json:"bubbles"`
	Cancelable bool      `json:"cancelable"`
	InputType  string    `json:"inputType,omitempty"`
	Data       string    `json:"data,omitempty"`
}

// NewEvent returns a bubbling, cancelable event of the given type, choosing
// the constructor a browser would use for it.
func NewEvent(typ string) Event {
	ev := Event{Type: typ, Kind: KindEvent, Bubbles: true, Cancelable: true}
	switch typ {
	case "focus", "blur", "focusin", "focusout":
		ev.Kind = KindFocusEvent
	case "keydown", "keypress", "keyup":
		ev.Kind = KindKeyboardEvent
	case "input", "beforeinput":
		ev.Kind = KindInputEvent
	}
	return ev
}
