// File: internal/action/sequences.go
package action

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagesense/api/schemas"
	"github.com/xkilldash9x/pagesense/internal/page"
)

// dispatch routes the verb to its interaction sequence. Each sequence is the
// minimal event train a real user interaction produces, so host-page handlers
// react the same way they would to the genuine article.
func (e *Executor) dispatch(ctx context.Context, verb schemas.ActionVerb, node *html.Node, opts schemas.ActionOptions) *schemas.ActionError {
	// The node may have been torn out between readiness and now.
	if !e.doc.Attached(node) {
		return schemas.NewActionError(schemas.ErrNodeDetached, "node detached before the %s sequence started", verb)
	}
	if nodeDisabled(node) {
		return schemas.NewActionError(schemas.ErrNodeNotInteractable, "node is disabled")
	}

	switch verb {
	case schemas.ActionClick:
		return e.click(ctx, node)
	case schemas.ActionType:
		return e.typeText(ctx, node, opts)
	case schemas.ActionScroll:
		return e.scroll(node, opts)
	case schemas.ActionFocus:
		e.focus(node)
		return nil
	case schemas.ActionBlur:
		e.blur(node)
		return nil
	case schemas.ActionHover:
		e.hover(node)
		return nil
	case schemas.ActionSubmit:
		return e.submit(node)
	case schemas.ActionSelect:
		return e.selectOption(node, opts)
	case schemas.ActionToggle:
		return e.toggle(node)
	}
	return schemas.NewActionError(schemas.ErrUnsupportedAction, "no sequence for verb %q", verb)
}

// click runs the pointer train with a short hold between press and release,
// then applies the element's default activation behavior.
func (e *Executor) click(ctx context.Context, node *html.Node) *schemas.ActionError {
	e.hover(node)
	e.doc.Dispatch(page.Event{Type: page.EventPointerDown, Target: node})
	e.doc.Dispatch(page.Event{Type: page.EventMouseDown, Target: node})
	e.focus(node)

	if err := sleepCtx(ctx, e.cfg.ClickHold); err != nil {
		return schemas.NewActionError(schemas.ErrActionTimeout, "click hold interrupted: %v", err)
	}

	e.doc.Dispatch(page.Event{Type: page.EventPointerUp, Target: node})
	e.doc.Dispatch(page.Event{Type: page.EventMouseUp, Target: node})
	e.doc.Dispatch(page.Event{Type: page.EventClick, Target: node})

	// Default activation behavior, as the host document would apply it.
	if isCheckable(node) {
		e.applyToggle(node)
	} else if isSubmitter(node) {
		if form := e.doc.EnclosingForm(node); form != nil {
			e.doc.Dispatch(page.Event{Type: page.EventSubmit, Target: form})
		}
	}
	return nil
}

// typeText focuses the target, clears it unless appending, and feeds the text
// through per-character key/input events with the configured pacing, ending
// with a change notification.
func (e *Executor) typeText(ctx context.Context, node *html.Node, opts schemas.ActionOptions) *schemas.ActionError {
	if !isTypeTarget(node) {
		return schemas.NewActionError(schemas.ErrNodeNotInteractable, "node <%s> does not accept typed text", node.Data)
	}
	if _, ok := page.Attr(node, "readonly"); ok {
		return schemas.NewActionError(schemas.ErrNodeNotInteractable, "node is readonly")
	}

	e.focus(node)

	if !opts.Append {
		if e.doc.Value(node) != "" {
			e.doc.SetValue(node, "")
			e.doc.Dispatch(page.Event{Type: page.EventInput, Target: node})
		}
	}

	for _, r := range opts.Text {
		key := string(r)
		e.doc.Dispatch(page.Event{Type: page.EventKeyDown, Target: node, Key: key})
		e.doc.Dispatch(page.Event{Type: page.EventKeyPress, Target: node, Key: key})
		e.doc.SetValue(node, e.doc.Value(node)+key)
		e.doc.Dispatch(page.Event{Type: page.EventInput, Target: node, Key: key})
		e.doc.Dispatch(page.Event{Type: page.EventKeyUp, Target: node, Key: key})

		if err := sleepCtx(ctx, e.cfg.KeyDelay); err != nil {
			return schemas.NewActionError(schemas.ErrActionTimeout, "typing interrupted after partial input: %v", err)
		}
	}

	e.doc.Dispatch(page.Event{Type: page.EventChange, Target: node})
	return nil
}

func (e *Executor) scroll(node *html.Node, opts schemas.ActionOptions) *schemas.ActionError {
	e.doc.ScrollBy(opts.ScrollX, opts.ScrollY)
	e.doc.Dispatch(page.Event{Type: page.EventScroll, Target: node})
	return nil
}

// focus moves focus with the blur-then-focus pair a real focus shift fires.
func (e *Executor) focus(node *html.Node) {
	prev := e.doc.Focused()
	if prev == node {
		return
	}
	if prev != nil {
		e.doc.Dispatch(page.Event{Type: page.EventBlur, Target: prev})
	}
	e.doc.SetFocus(node)
	e.doc.Dispatch(page.Event{Type: page.EventFocus, Target: node})
}

func (e *Executor) blur(node *html.Node) {
	if e.doc.Focused() == node {
		e.doc.SetFocus(nil)
	}
	e.doc.Dispatch(page.Event{Type: page.EventBlur, Target: node})
}

// hover fires the leave/enter pair against the previously hovered node.
func (e *Executor) hover(node *html.Node) {
	prev := e.doc.SetHovered(node)
	if prev == node {
		return
	}
	if prev != nil {
		e.doc.Dispatch(page.Event{Type: page.EventMouseLeave, Target: prev})
	}
	e.doc.Dispatch(page.Event{Type: page.EventMouseEnter, Target: node})
}

func (e *Executor) submit(node *html.Node) *schemas.ActionError {
	form := node
	if !strings.EqualFold(node.Data, "form") {
		form = e.doc.EnclosingForm(node)
	}
	if form == nil {
		return schemas.NewActionError(schemas.ErrUnsupportedAction, "node has no enclosing form to submit")
	}
	e.doc.Dispatch(page.Event{Type: page.EventSubmit, Target: form})
	return nil
}

// selectOption picks an option by value or visible text and fires change.
func (e *Executor) selectOption(node *html.Node, opts schemas.ActionOptions) *schemas.ActionError {
	if !strings.EqualFold(node.Data, "select") {
		return schemas.NewActionError(schemas.ErrUnsupportedAction, "select action requires a <select>, got <%s>", node.Data)
	}
	want := strings.TrimSpace(opts.Text)
	if want == "" {
		return schemas.NewActionError(schemas.ErrInvalidTargetSpec, "select action requires options.text")
	}

	var value string
	found := false
	walk(node, func(opt *html.Node) {
		if found || !strings.EqualFold(opt.Data, "option") {
			return
		}
		if _, disabled := page.Attr(opt, "disabled"); disabled {
			return
		}
		v, _ := page.Attr(opt, "value")
		text := strings.TrimSpace(optionText(opt))
		if v == want || strings.EqualFold(text, want) {
			if v == "" {
				v = text
			}
			value = v
			found = true
		}
	})
	if !found {
		return schemas.NewActionError(schemas.ErrNodeNotFound, "no enabled option matching %q", want)
	}

	e.focus(node)
	e.doc.SetValue(node, value)
	e.doc.Dispatch(page.Event{Type: page.EventInput, Target: node})
	e.doc.Dispatch(page.Event{Type: page.EventChange, Target: node})
	return nil
}

func (e *Executor) toggle(node *html.Node) *schemas.ActionError {
	if !isCheckable(node) {
		return schemas.NewActionError(schemas.ErrUnsupportedAction, "toggle requires a checkbox or radio input")
	}
	e.doc.Dispatch(page.Event{Type: page.EventClick, Target: node})
	e.applyToggle(node)
	return nil
}

// applyToggle flips checkbox state (radios only ever turn on) and notifies.
func (e *Executor) applyToggle(node *html.Node) {
	t, _ := page.Attr(node, "type")
	if strings.EqualFold(t, "radio") {
		e.doc.SetChecked(node, true)
	} else {
		e.doc.SetChecked(node, !e.doc.Checked(node))
	}
	e.doc.Dispatch(page.Event{Type: page.EventChange, Target: node})
}

func isSubmitter(node *html.Node) bool {
	tag := strings.ToLower(node.Data)
	if tag == "button" {
		t, ok := page.Attr(node, "type")
		return !ok || strings.EqualFold(t, "submit")
	}
	if tag == "input" {
		t, _ := page.Attr(node, "type")
		return strings.EqualFold(t, "submit") || strings.EqualFold(t, "image")
	}
	return false
}

func isTypeTarget(node *html.Node) bool {
	tag := strings.ToLower(node.Data)
	switch tag {
	case "textarea":
		return true
	case "input":
		t, _ := page.Attr(node, "type")
		switch strings.ToLower(t) {
		case "hidden", "submit", "button", "reset", "image", "checkbox", "radio", "range", "file", "color":
			return false
		default:
			return true
		}
	}
	if v, ok := page.Attr(node, "contenteditable"); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		return v == "true" || v == ""
	}
	return false
}

func optionText(opt *html.Node) string {
	var sb strings.Builder
	for c := opt.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func walk(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			fn(c)
		}
		walk(c, fn)
	}
}
