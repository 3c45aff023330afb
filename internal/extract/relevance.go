// File: internal/extract/relevance.go
package extract

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagesense/api/schemas"
	"github.com/xkilldash9x/pagesense/internal/page"
)

// naturallyInteractiveTags are indexable without further evidence.
var naturallyInteractiveTags = map[string]bool{
	"a": true, "button": true, "input": true, "textarea": true,
	"select": true, "option": true, "summary": true, "details": true,
	"label": true,
}

// structuralTags never enter the index, whatever attributes they carry as a
// side effect of styling frameworks. Indexing them pollutes every token bucket
// with noise and defeats ranking.
var structuralTags = map[string]bool{
	"html": true, "body": true, "head": true, "div": false, // div may qualify via role etc.
	"span": false,
	"section": true, "article": true, "main": true, "aside": true,
	"header": true, "footer": true, "nav": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "ul": true, "ol": true, "li": true, "table": true,
	"thead": true, "tbody": true, "tr": true, "td": true, "th": true,
	"svg": true, "path": true, "g": true, "rect": true, "circle": true,
	"line": true, "polygon": true, "polyline": true, "ellipse": true, "use": true,
	"script": true, "style": true, "meta": true, "link": true, "title": true,
	"br": true, "hr": true, "img": true, "picture": true, "source": true,
	"template": true, "noscript": true, "iframe": true, "form": true,
	"fieldset": true, "legend": true, "figure": true, "figcaption": true,
}

// interactiveRoles are the explicit ARIA roles that mark a node interactive.
var interactiveRoles = map[string]bool{
	"button": true, "link": true, "tab": true, "menuitem": true,
	"checkbox": true, "radio": true, "switch": true, "slider": true,
	"combobox": true, "listbox": true, "option": true, "searchbox": true,
	"textbox": true,
}

// interactiveClassHints is the small set of class-name fragments accepted as
// interactivity evidence on otherwise structural tags.
var interactiveClassHints = []string{"btn", "button", "clickable", "link", "toggle", "dropdown"}

// IsRelevant is the canonical indexability gate: a node enters the cache only
// if it is a naturally interactive tag or carries explicit evidence of being
// interactive. Purely structural and presentational tags are excluded even
// when a broad selector matches them.
func IsRelevant(node *html.Node) bool {
	if node == nil || node.Type != html.ElementNode {
		return false
	}
	tag := strings.ToLower(node.Data)

	if naturallyInteractiveTags[tag] {
		// Hidden inputs carry state, not interaction.
		if tag == "input" {
			if t, _ := page.Attr(node, "type"); strings.EqualFold(t, "hidden") {
				return false
			}
		}
		return true
	}

	if excluded, known := structuralTags[tag]; known && excluded {
		return false
	}

	if role, ok := page.Attr(node, "role"); ok && interactiveRoles[strings.ToLower(role)] {
		return true
	}
	if ti, ok := page.Attr(node, "tabindex"); ok && ti != "" && ti != "-1" {
		return true
	}
	if _, ok := page.Attr(node, "onclick"); ok {
		return true
	}
	if name, ok := page.Attr(node, "name"); ok && name != "" {
		return true
	}
	if _, ok := page.Attr(node, "data-action"); ok {
		return true
	}
	if _, ok := page.Attr(node, "data-toggle"); ok {
		return true
	}
	if v, ok := page.Attr(node, "contenteditable"); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "true" || v == "" {
			return true
		}
	}
	if cls, ok := page.Attr(node, "class"); ok {
		lower := strings.ToLower(cls)
		for _, hint := range interactiveClassHints {
			if strings.Contains(lower, hint) {
				return true
			}
		}
	}
	return false
}

// InferRole maps a node to the engine's semantic role vocabulary, preferring
// an explicit role attribute over tag semantics.
func InferRole(node *html.Node) schemas.Role {
	if role, ok := page.Attr(node, "role"); ok {
		switch strings.ToLower(role) {
		case "button":
			return schemas.RoleButton
		case "link":
			return schemas.RoleLink
		case "tab":
			return schemas.RoleTab
		case "menuitem":
			return schemas.RoleMenuItem
		case "checkbox", "switch":
			return schemas.RoleCheckbox
		case "radio":
			return schemas.RoleRadio
		case "slider":
			return schemas.RoleSlider
		case "option":
			return schemas.RoleOption
		case "textbox", "searchbox":
			return schemas.RoleInput
		case "combobox", "listbox":
			return schemas.RoleSelect
		}
	}

	switch strings.ToLower(node.Data) {
	case "button":
		return schemas.RoleButton
	case "a":
		if href, ok := page.Attr(node, "href"); ok && href != "" {
			return schemas.RoleLink
		}
		return schemas.RoleGeneric
	case "textarea":
		return schemas.RoleTextarea
	case "select":
		return schemas.RoleSelect
	case "option":
		return schemas.RoleOption
	case "input":
		t, _ := page.Attr(node, "type")
		switch strings.ToLower(t) {
		case "checkbox":
			return schemas.RoleCheckbox
		case "radio":
			return schemas.RoleRadio
		case "range":
			return schemas.RoleSlider
		case "submit", "button", "image", "reset":
			return schemas.RoleButton
		default:
			return schemas.RoleInput
		}
	case "summary", "details":
		return schemas.RoleButton
	}

	if isTextEntry(node) {
		return schemas.RoleTextarea
	}
	return schemas.RoleGeneric
}

// NaturallyClickable reports whether a text-based locator makes sense for the
// tag; only tags whose text is their label qualify.
func NaturallyClickable(node *html.Node) bool {
	switch strings.ToLower(node.Data) {
	case "a", "button", "summary", "label", "option":
		return true
	case "input":
		t, _ := page.Attr(node, "type")
		switch strings.ToLower(t) {
		case "submit", "button", "reset":
			return true
		}
	}
	return false
}
