// File: internal/page/events.go
package page

import (
	"golang.org/x/net/html"
)

// EventType names a synthetic event the engine can dispatch.
type EventType string

const (
	EventPointerDown EventType = "pointerdown"
	EventPointerUp   EventType = "pointerup"
	EventMouseDown   EventType = "mousedown"
	EventMouseUp     EventType = "mouseup"
	EventClick       EventType = "click"
	EventDblClick    EventType = "dblclick"
	EventKeyDown     EventType = "keydown"
	EventKeyPress    EventType = "keypress"
	EventKeyUp       EventType = "keyup"
	EventInput       EventType = "input"
	EventChange      EventType = "change"
	EventFocus       EventType = "focus"
	EventBlur        EventType = "blur"
	EventMouseEnter  EventType = "mouseenter"
	EventMouseLeave  EventType = "mouseleave"
	EventSubmit      EventType = "submit"
	EventScroll      EventType = "scroll"
)

// Event is what listeners receive. Key carries the character for key events.
type Event struct {
	Type   EventType
	Target *html.Node
	Key    string
}

// Handler is a registered event callback. Handlers run synchronously on the
// dispatching goroutine and may mutate the document.
type Handler func(Event)

// AddEventListener registers a handler for an event type on a node.
func (d *Document) AddEventListener(node *html.Node, typ EventType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.listeners[node]
	if !ok {
		m = make(map[EventType][]Handler)
		d.listeners[node] = m
	}
	m[typ] = append(m[typ], h)
}

// Dispatch delivers an event to the target's handlers and then bubbles it up
// the ancestor chain, like host-page event propagation. Handlers are invoked
// outside the document lock so they can mutate the tree re-entrantly.
func (d *Document) Dispatch(ev Event) {
	var chain []Handler

	d.mu.Lock()
	for n := ev.Target; n != nil; n = n.Parent {
		if m, ok := d.listeners[n]; ok {
			chain = append(chain, m[ev.Type]...)
		}
	}
	d.mu.Unlock()

	for _, h := range chain {
		h(ev)
	}
}
