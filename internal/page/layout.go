// File: internal/page/layout.go
package page

import (
	"strings"

	"golang.org/x/net/html"
)

// box is a node's position and size in document coordinates (y grows down,
// independent of scroll). The zero box means "not rendered".
type box struct {
	x, y, w, h float64
	rendered   bool
}

// Default flow metrics. The layout is a deliberately coarse block stacker: one
// row per rendered element, full viewport width. It is enough to give every
// node stable, distinct geometry and to make scroll/viewport intersection
// meaningful, which is all the engine needs from geometry.
const (
	rowHeight = 24.0
	rowGap    = 4.0
)

// relayout recomputes boxes and emits VisibilityChanged records for nodes whose
// in-viewport status flipped. Must be called with d.mu held.
func (d *Document) relayout() {
	old := d.layout
	next := make(map[*html.Node]box, len(old))

	y := 0.0
	walkLayout(d.root, false, func(n *html.Node, hidden bool) {
		if hidden {
			next[n] = box{}
			return
		}
		next[n] = box{x: 0, y: y, w: d.viewportW, h: rowHeight, rendered: true}
		y += rowHeight + rowGap
	})

	d.layout = next

	for n, nb := range next {
		ob, had := old[n]
		if !had {
			continue
		}
		if d.inViewport(ob) != d.inViewport(nb) {
			d.notify(Mutation{Kind: VisibilityChanged, Node: n})
		}
	}
}

// walkLayout visits every element with an inherited hidden flag.
func walkLayout(n *html.Node, hidden bool, fn func(*html.Node, bool)) {
	if n == nil {
		return
	}
	if n.Type == html.ElementNode {
		h := hidden || nodeHidden(n)
		fn(n, h)
		hidden = h
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkLayout(c, hidden, fn)
	}
}

// nodeHidden applies the style rules the engine honors: display:none and
// visibility:hidden in inline style, the hidden attribute, and hidden inputs.
func nodeHidden(n *html.Node) bool {
	if _, ok := Attr(n, "hidden"); ok {
		return true
	}
	if style, ok := Attr(n, "style"); ok {
		s := strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(s, "display:none") || strings.Contains(s, "visibility:hidden") {
			return true
		}
	}
	if strings.EqualFold(n.Data, "input") {
		if t, _ := Attr(n, "type"); strings.EqualFold(t, "hidden") {
			return true
		}
	}
	switch strings.ToLower(n.Data) {
	case "head", "script", "style", "template", "noscript":
		return true
	}
	return false
}

func (d *Document) inViewport(b box) bool {
	if !b.rendered {
		return false
	}
	return b.y+b.h > d.scrollY && b.y < d.scrollY+d.viewportH &&
		b.x+b.w > d.scrollX && b.x < d.scrollX+d.viewportW
}

// Geometry returns a node's viewport-relative position and size, plus whether
// the node is rendered at all.
func (d *Document) Geometry(node *html.Node) (x, y, w, h float64, rendered bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.layout[node]
	if !ok || !b.rendered {
		return 0, 0, 0, 0, false
	}
	return b.x - d.scrollX, b.y - d.scrollY, b.w, b.h, true
}

// IsRendered reports whether layout produced a box for the node (i.e. it is
// attached and not inside a hidden subtree).
func (d *Document) IsRendered(node *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.layout[node]
	return ok && b.rendered
}

// InViewport reports whether the node's box intersects the current viewport.
func (d *Document) InViewport(node *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.layout[node]
	return ok && d.inViewport(b)
}

// ScrollTo moves the viewport and emits VisibilityChanged for every node whose
// intersection state flipped.
func (d *Document) ScrollTo(x, y float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	oldX, oldY := d.scrollX, d.scrollY
	if oldX == x && oldY == y {
		return
	}

	flips := make([]*html.Node, 0, 8)
	for n, b := range d.layout {
		before := d.inViewport(b)
		d.scrollX, d.scrollY = x, y
		after := d.inViewport(b)
		d.scrollX, d.scrollY = oldX, oldY
		if before != after {
			flips = append(flips, n)
		}
	}

	d.scrollX, d.scrollY = x, y
	for _, n := range flips {
		d.notify(Mutation{Kind: VisibilityChanged, Node: n})
	}
}

// ScrollBy adjusts the viewport by a relative offset.
func (d *Document) ScrollBy(dx, dy float64) {
	d.mu.Lock()
	x, y := d.scrollX+dx, d.scrollY+dy
	d.mu.Unlock()
	d.ScrollTo(x, y)
}

// ScrollIntoView centers the node vertically in the viewport.
func (d *Document) ScrollIntoView(node *html.Node) {
	d.mu.Lock()
	b, ok := d.layout[node]
	vh := d.viewportH
	d.mu.Unlock()
	if !ok || !b.rendered {
		return
	}
	target := b.y + b.h/2 - vh/2
	if target < 0 {
		target = 0
	}
	d.ScrollTo(0, target)
}

// ScrollOffset returns the current scroll position.
func (d *Document) ScrollOffset() (x, y float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrollX, d.scrollY
}
