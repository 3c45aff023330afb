// File: internal/extract/path.go
package extract

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagesense/internal/page"
)

// StructuralPath generates a robust XPath expression for a node. An ancestor
// with an id becomes the anchor, which keeps paths short and stable against
// edits elsewhere in the tree.
func StructuralPath(node *html.Node) string {
	if node == nil {
		return ""
	}

	var path []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)
		if tag == "" {
			continue
		}

		if id, ok := page.Attr(n, "id"); ok && id != "" {
			path = append(path, fmt.Sprintf(`//*[@id='%s']`, id))
			break
		}

		// 1-based index among same-tag siblings.
		index := 1
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.EqualFold(prev.Data, tag) {
				index++
			}
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, index))
	}

	if len(path) == 0 {
		return "/"
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	xpath := strings.Join(path, "/")
	if !strings.HasPrefix(xpath, "//*[@id=") {
		xpath = "/" + xpath
	}
	return xpath
}

// RelaxedPath drops the positional indexes from a structural path, producing a
// looser variant the locator resolver can fall back to when the exact path no
// longer matches after a re-render.
func RelaxedPath(xpath string) string {
	// Strip only numeric predicates like div[3]; attribute predicates such as
	// [@id='x'] survive untouched.
	out := xpath
	for i := 0; i < len(out); i++ {
		if out[i] != '[' {
			continue
		}
		j := i + 1
		for j < len(out) && out[j] >= '0' && out[j] <= '9' {
			j++
		}
		if j > i+1 && j < len(out) && out[j] == ']' {
			out = out[:i] + out[j+1:]
			i--
		}
	}
	return out
}
