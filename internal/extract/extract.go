// File: internal/extract/extract.go
package extract

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagesense/api/schemas"
	"github.com/xkilldash9x/pagesense/internal/page"
)

// maxTextLength bounds every extracted text fragment and attribute value.
const maxTextLength = 80

// attributeAllowList is the fixed set of attribute names a descriptor may
// carry. Everything else stays behind on the node.
var attributeAllowList = []string{
	"id", "name", "type", "role", "class", "href", "placeholder", "title",
	"aria-label", "value", "data-testid", "data-test", "data-qa",
	"data-action", "data-toggle", "for", "action", "method", "contenteditable",
}

// Extractor computes normalized, serializable descriptions of document nodes.
// It is stateless apart from the document it reads geometry from; Extract has
// no side effects and never panics.
type Extractor struct {
	doc *page.Document
}

// New creates an extractor bound to a document.
func New(doc *page.Document) *Extractor {
	return &Extractor{doc: doc}
}

// Extract computes a descriptor snapshot for one node. Internal failures
// degrade to default values rather than aborting; the returned descriptor
// always has an ID and at least the structural path locator.
func (e *Extractor) Extract(node *html.Node) (desc *schemas.NodeDescriptor) {
	now := time.Now()
	// A malformed node must never take the caller down with it.
	defer func() {
		if r := recover(); r != nil {
			desc = &schemas.NodeDescriptor{
				ID:        FingerprintNode(node),
				Tag:       strings.ToLower(node.Data),
				Role:      schemas.RoleGeneric,
				Locators:  []schemas.Locator{{Kind: schemas.LocatorPath, Value: StructuralPath(node), Confidence: 0.5}},
				FirstSeen: now,
				LastSeen:  now,
			}
		}
	}()

	attrs := collectAttributes(node)
	tag := strings.ToLower(node.Data)

	x, y, w, h, rendered := e.doc.Geometry(node)
	visible := rendered && e.doc.InViewport(node)

	desc = &schemas.NodeDescriptor{
		ID:           FingerprintNode(node),
		Tag:          tag,
		Role:         InferRole(node),
		Text:         e.labelText(node, attrs),
		Attributes:   attrs,
		Geometry:     schemas.Geometry{X: x, Y: y, Width: w, Height: h},
		Visible:      visible,
		Interactable: rendered && !isDisabled(node, attrs),
		Locators:     GenerateLocators(node),
		FirstSeen:    now,
		LastSeen:     now,
	}
	return desc
}

// labelText applies the fixed precedence for a node's best available label:
// aria-label > title > placeholder > current value (never for password fields)
// > aggregated text content. Every candidate is truncated.
func (e *Extractor) labelText(node *html.Node, attrs map[string]string) string {
	if v := strings.TrimSpace(attrs["aria-label"]); v != "" {
		return truncate(v)
	}
	if v := strings.TrimSpace(attrs["title"]); v != "" {
		return truncate(v)
	}
	if v := strings.TrimSpace(attrs["placeholder"]); v != "" {
		return truncate(v)
	}
	if !strings.EqualFold(attrs["type"], "password") {
		if v := strings.TrimSpace(e.doc.Value(node)); v != "" {
			return truncate(v)
		}
	}
	return truncate(innerText(node))
}

// innerText aggregates descendant text nodes.
func innerText(node *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func collectAttributes(node *html.Node) map[string]string {
	attrs := make(map[string]string, len(attributeAllowList))
	for _, key := range attributeAllowList {
		if v, ok := page.Attr(node, key); ok {
			if key == "value" {
				if t, _ := page.Attr(node, "type"); strings.EqualFold(t, "password") {
					continue
				}
			}
			attrs[key] = truncate(v)
		}
	}
	return attrs
}

func isDisabled(node *html.Node, attrs map[string]string) bool {
	if _, ok := page.Attr(node, "disabled"); ok {
		return true
	}
	if v, ok := page.Attr(node, "aria-disabled"); ok && v == "true" {
		return true
	}
	// Readonly only blocks text entry targets; a readonly checkbox is still
	// clickable per the HTML spec, but the engine treats readonly text inputs
	// as non-interactable because typing is their only interaction.
	if isTextEntry(node) {
		if _, ok := page.Attr(node, "readonly"); ok {
			return true
		}
	}
	return false
}

// isTextEntry distinguishes typing targets from click targets, mirroring the
// input-type split the action engine uses.
func isTextEntry(node *html.Node) bool {
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
			// text, password, email, search, tel, url, number, date, etc.
			return true
		}
	}
	if v, ok := page.Attr(node, "contenteditable"); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		return v == "true" || v == ""
	}
	return false
}

func truncate(s string) string {
	if len(s) <= maxTextLength {
		return s
	}
	// Cut on a rune boundary; a split multibyte rune would corrupt every
	// serialization downstream.
	cut := maxTextLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
