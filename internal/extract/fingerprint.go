// File: internal/extract/fingerprint.go
package extract

import (
	"hash"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagesense/internal/page"
)

// hasherPool keeps FNV hasher instances ready; fingerprinting runs on every
// extraction, so reusing hashers avoids a pile of small allocations.
var hasherPool = sync.Pool{
	New: func() interface{} { return fnv.New64a() },
}

// identityAttributes are the ancestry-independent attributes that participate
// in a node's identity. Volatile state (geometry, value, checked) never does.
var identityAttributes = []string{
	"id", "name", "type", "role", "aria-label", "placeholder", "title",
	"href", "action", "data-testid",
}

// identityTextSample bounds how much text feeds the fingerprint. Enough to
// tell "Save" from "Cancel", short enough that trailing copy edits don't churn
// identity.
const identityTextSample = 24

// FingerprintNode derives the stable identity string for a node: tag, stable
// classes, identity attributes, a short text sample and the structural path.
// The same physical node always hashes to the same ID; distinct nodes differ
// at least in their path.
func FingerprintNode(node *html.Node) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(node.Data))

	if id, ok := page.Attr(node, "id"); ok && id != "" {
		sb.WriteString("#" + id)
	}

	if cls := stableClasses(node); len(cls) > 0 {
		sb.WriteString("." + strings.Join(cls, "."))
	}

	for _, key := range identityAttributes {
		if v, ok := page.Attr(node, key); ok && v != "" {
			v = strings.TrimSpace(v)
			if len(v) > 128 {
				v = v[:128]
			}
			sb.WriteString("[" + key + "=" + v + "]")
		}
	}

	if text := innerText(node); text != "" {
		if len(text) > identityTextSample {
			text = text[:identityTextSample]
		}
		sb.WriteString("{" + text + "}")
	}

	sb.WriteString("@" + StructuralPath(node))

	hasher := hasherPool.Get().(hash.Hash64)
	defer func() {
		hasher.Reset()
		hasherPool.Put(hasher)
	}()
	_, _ = hasher.Write([]byte(sb.String()))
	return strconv.FormatUint(hasher.Sum64(), 16)
}

// stableClasses filters out class names that look machine-generated or purely
// presentational, sorts the rest, and caps the count so CSS-in-JS frameworks
// don't flood identity with churn.
func stableClasses(node *html.Node) []string {
	cls, ok := page.Attr(node, "class")
	if !ok || cls == "" {
		return nil
	}
	classes := strings.Fields(cls)
	sort.Strings(classes)

	stable := make([]string, 0, len(classes))
	for _, c := range classes {
		if isUtilityClass(c) {
			continue
		}
		stable = append(stable, c)
	}
	if len(stable) > 4 {
		stable = stable[:4]
	}
	return stable
}

// utilityClassPrefixes flags common atomic-CSS and generated class families.
var utilityClassPrefixes = []string{
	"css-", "sc-", "mui-", "chakra-",
	"p-", "px-", "py-", "pt-", "pb-", "pl-", "pr-",
	"m-", "mx-", "my-", "mt-", "mb-", "ml-", "mr-",
	"w-", "h-", "text-", "bg-", "border-", "rounded", "shadow",
	"flex", "grid", "gap-", "col-", "row-", "items-", "justify-",
}

func isUtilityClass(c string) bool {
	lower := strings.ToLower(c)
	if strings.ContainsAny(lower, ":[]") {
		return true
	}
	// Short hash-looking names with digits (e.g. "a3x9f") are generated.
	if len(lower) <= 6 && strings.ContainsAny(lower, "0123456789") {
		return true
	}
	for _, p := range utilityClassPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
