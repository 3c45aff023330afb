// File: internal/nodecache/tokens.go
package nodecache

import (
	"strings"
	"unicode"

	"github.com/xkilldash9x/pagesense/api/schemas"
)

// indexedAttributes are the descriptor attributes whose values feed the token
// index alongside the label text.
var indexedAttributes = []string{
	"id", "name", "placeholder", "aria-label", "title", "value", "data-testid",
}

// Tokenize lowercases and splits text into word tokens. Single-character
// fragments are dropped; they match everything and rank nothing.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// descriptorTokens collects the deduplicated token set a descriptor is indexed
// under: its label text plus the indexed attribute values and its tag.
func descriptorTokens(desc *schemas.NodeDescriptor) map[string]struct{} {
	set := make(map[string]struct{})
	add := func(text string) {
		for _, tok := range Tokenize(text) {
			set[tok] = struct{}{}
		}
	}
	add(desc.Text)
	add(desc.Tag)
	for _, key := range indexedAttributes {
		if v, ok := desc.Attributes[key]; ok {
			add(v)
		}
	}
	return set
}

// locatorKeys collects the index keys for a descriptor's locators.
func locatorKeys(desc *schemas.NodeDescriptor) map[string]struct{} {
	set := make(map[string]struct{}, len(desc.Locators))
	for _, loc := range desc.Locators {
		set[locatorKey(loc.Kind, loc.Value)] = struct{}{}
	}
	return set
}

func locatorKey(kind schemas.LocatorKind, value string) string {
	return string(kind) + ":" + value
}
