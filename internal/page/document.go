// File: internal/page/document.go
package page

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// MutationKind classifies one document mutation record.
type MutationKind int

const (
	// NodeAdded means a subtree was attached under Node.
	NodeAdded MutationKind = iota
	// NodeRemoved means the subtree rooted at Node was detached.
	NodeRemoved
	// AttributeChanged means a single attribute (or input state) on Node changed.
	AttributeChanged
	// VisibilityChanged means Node entered or left the viewport; the tree and
	// attributes are untouched.
	VisibilityChanged
)

// Mutation is one change record delivered to observers. Records reference live
// nodes; consumers must re-check attachment before trusting them.
type Mutation struct {
	Kind      MutationKind
	Node      *html.Node
	Attribute string
}

// Document wraps a parsed HTML tree and stands in for the host page: it owns
// the tree, input state (values, checked, focus, scroll), a simple block-flow
// layout for geometry and visibility, synchronous event dispatch, and mutation
// notification for observers. All mutating entry points are serialized through
// one mutex; event handlers run outside the lock so they can mutate the
// document re-entrantly, exactly like host-page handlers would.
type Document struct {
	mu   sync.Mutex
	root *html.Node

	viewportW float64
	viewportH float64
	scrollX   float64
	scrollY   float64

	layout map[*html.Node]box

	values  map[*html.Node]string
	checked map[*html.Node]bool
	focused *html.Node
	hovered *html.Node

	listeners map[*html.Node]map[EventType][]Handler

	subs    []chan Mutation
	dropped int
}

// Option configures a Document at construction.
type Option func(*Document)

// WithViewport overrides the default 1280x720 viewport.
func WithViewport(w, h float64) Option {
	return func(d *Document) {
		d.viewportW = w
		d.viewportH = h
	}
}

// NewDocument wraps an already-parsed tree.
func NewDocument(root *html.Node, opts ...Option) *Document {
	d := &Document{
		root:      root,
		viewportW: 1280,
		viewportH: 720,
		layout:    make(map[*html.Node]box),
		values:    make(map[*html.Node]string),
		checked:   make(map[*html.Node]bool),
		listeners: make(map[*html.Node]map[EventType][]Handler),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.mu.Lock()
	d.seedInputState(root)
	d.relayout()
	d.mu.Unlock()
	return d
}

// Parse reads HTML and wraps it in a Document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return NewDocument(root, opts...), nil
}

// ParseString is a convenience wrapper for tests and the CLI.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

// Root returns the document root.
func (d *Document) Root() *html.Node {
	return d.root
}

// Observe registers a mutation channel with the given buffer. The returned
// cancel function detaches it. Records are delivered best-effort: a full
// channel drops the record rather than blocking a mutator.
func (d *Document) Observe(buffer int) (<-chan Mutation, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Mutation, buffer)

	d.mu.Lock()
	d.subs = append(d.subs, ch)
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, sub := range d.subs {
			if sub == ch {
				d.subs = append(d.subs[:i], d.subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

// DroppedMutations reports how many records overflowed observer channels.
func (d *Document) DroppedMutations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// notify must be called with d.mu held.
func (d *Document) notify(m Mutation) {
	for _, sub := range d.subs {
		select {
		case sub <- m:
		default:
			d.dropped++
		}
	}
}

// -- Tree queries --

// Attached reports whether the node is still reachable from the root.
func (d *Document) Attached(node *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attachedLocked(node)
}

func (d *Document) attachedLocked(node *html.Node) bool {
	for n := node; n != nil; n = n.Parent {
		if n == d.root {
			return true
		}
	}
	return false
}

// ForEachElement walks the tree in document order, invoking fn for every
// element node. Returning false stops the walk.
func (d *Document) ForEachElement(fn func(*html.Node) bool) {
	d.mu.Lock()
	root := d.root
	d.mu.Unlock()
	walkElements(root, fn)
}

func walkElements(n *html.Node, fn func(*html.Node) bool) bool {
	if n == nil {
		return true
	}
	if n.Type == html.ElementNode {
		if !fn(n) {
			return false
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walkElements(c, fn) {
			return false
		}
	}
	return true
}

// Attr returns the value of an attribute on a node.
func Attr(node *html.Node, key string) (string, bool) {
	for _, a := range node.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// EnclosingForm walks up from a node to the nearest <form> ancestor.
func (d *Document) EnclosingForm(node *html.Node) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	for n := node; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "form") {
			return n
		}
	}
	return nil
}

// -- Structural mutation --

// AppendChild attaches a subtree under parent and notifies observers.
func (d *Document) AppendChild(parent, child *html.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.attachedLocked(parent) {
		return fmt.Errorf("append target is not attached to the document")
	}
	parent.AppendChild(child)
	d.seedInputState(child)
	d.relayout()
	d.notify(Mutation{Kind: NodeAdded, Node: child})
	return nil
}

// RemoveNode detaches a subtree and notifies observers. Listener and input
// state for the removed nodes is dropped.
func (d *Document) RemoveNode(node *html.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if node.Parent == nil {
		return fmt.Errorf("node is already detached")
	}
	node.Parent.RemoveChild(node)
	walkElements(node, func(n *html.Node) bool {
		delete(d.values, n)
		delete(d.checked, n)
		delete(d.listeners, n)
		delete(d.layout, n)
		if d.focused == n {
			d.focused = nil
		}
		if d.hovered == n {
			d.hovered = nil
		}
		return true
	})
	d.relayout()
	d.notify(Mutation{Kind: NodeRemoved, Node: node})
	return nil
}

// SetAttribute sets or replaces an attribute and notifies observers.
func (d *Document) SetAttribute(node *html.Node, key, val string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range node.Attr {
		if node.Attr[i].Key == key {
			node.Attr[i].Val = val
			d.relayout()
			d.notify(Mutation{Kind: AttributeChanged, Node: node, Attribute: key})
			return
		}
	}
	node.Attr = append(node.Attr, html.Attribute{Key: key, Val: val})
	d.relayout()
	d.notify(Mutation{Kind: AttributeChanged, Node: node, Attribute: key})
}

// RemoveAttribute deletes an attribute if present.
func (d *Document) RemoveAttribute(node *html.Node, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range node.Attr {
		if node.Attr[i].Key == key {
			node.Attr = append(node.Attr[:i], node.Attr[i+1:]...)
			d.relayout()
			d.notify(Mutation{Kind: AttributeChanged, Node: node, Attribute: key})
			return
		}
	}
}

// -- Input state --

// seedInputState primes value/checked maps from the markup so Verify reads see
// author-supplied defaults. Must be called with d.mu held.
func (d *Document) seedInputState(n *html.Node) {
	walkElements(n, func(el *html.Node) bool {
		tag := strings.ToLower(el.Data)
		switch tag {
		case "input":
			if v, ok := Attr(el, "value"); ok {
				d.values[el] = v
			}
			if _, ok := Attr(el, "checked"); ok {
				d.checked[el] = true
			}
		case "textarea":
			// Initial value is the text content.
			var sb strings.Builder
			for c := el.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			if sb.Len() > 0 {
				d.values[el] = sb.String()
			}
		case "select":
			if v, ok := Attr(el, "value"); ok {
				d.values[el] = v
			}
		}
		return true
	})
}

// Value returns the current value of an input-like node.
func (d *Document) Value(node *html.Node) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.values[node]
}

// SetValue updates a node's value. Observers see it as an attribute-style
// change so the cache refreshes its text snapshot.
func (d *Document) SetValue(node *html.Node, val string) {
	d.mu.Lock()
	d.values[node] = val
	d.notify(Mutation{Kind: AttributeChanged, Node: node, Attribute: "value"})
	d.mu.Unlock()
}

// Checked reports the checked state of a checkbox or radio.
func (d *Document) Checked(node *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checked[node]
}

// SetChecked flips a checkbox/radio. Radios clear their group siblings.
func (d *Document) SetChecked(node *html.Node, on bool) {
	d.mu.Lock()
	if on {
		if t, _ := Attr(node, "type"); strings.EqualFold(t, "radio") {
			if name, ok := Attr(node, "name"); ok && name != "" {
				walkElements(d.root, func(el *html.Node) bool {
					if el != node && strings.EqualFold(el.Data, "input") {
						if n2, _ := Attr(el, "name"); n2 == name {
							d.checked[el] = false
						}
					}
					return true
				})
			}
		}
	}
	d.checked[node] = on
	d.notify(Mutation{Kind: AttributeChanged, Node: node, Attribute: "checked"})
	d.mu.Unlock()
}

// Focused returns the node holding focus, if any.
func (d *Document) Focused() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focused
}

// SetFocus records the focused node. Event sequencing (blur on the old node,
// focus on the new) is the action engine's job; this only tracks state.
func (d *Document) SetFocus(node *html.Node) {
	d.mu.Lock()
	d.focused = node
	d.mu.Unlock()
}

// SetHovered records the hovered node and returns the previously hovered one
// so the caller can dispatch the leave/enter pair.
func (d *Document) SetHovered(node *html.Node) *html.Node {
	d.mu.Lock()
	prev := d.hovered
	d.hovered = node
	d.mu.Unlock()
	return prev
}
