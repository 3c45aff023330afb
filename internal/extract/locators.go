// File: internal/extract/locators.go
package extract

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagesense/api/schemas"
	"github.com/xkilldash9x/pagesense/internal/page"
)

// testDataAttributes in priority order; the first present wins.
var testDataAttributes = []string{"data-testid", "data-test", "data-qa"}

// GenerateLocators emits candidate ways to re-find the node, ordered from the
// a priori most reliable (stable identifier) down to visible text. The
// structural path is always present as the guaranteed fallback.
func GenerateLocators(node *html.Node) []schemas.Locator {
	locators := make([]schemas.Locator, 0, 6)

	if id, ok := page.Attr(node, "id"); ok && id != "" {
		locators = append(locators, schemas.Locator{
			Kind: schemas.LocatorID, Value: id, Confidence: 0.95,
		})
	}

	for _, attr := range testDataAttributes {
		if v, ok := page.Attr(node, attr); ok && v != "" {
			locators = append(locators, schemas.Locator{
				Kind: schemas.LocatorData, Value: fmt.Sprintf("%s=%s", attr, v), Confidence: 0.9,
			})
			break
		}
	}

	if name, ok := page.Attr(node, "name"); ok && name != "" {
		locators = append(locators, schemas.Locator{
			Kind: schemas.LocatorName, Value: name, Confidence: 0.8,
		})
	}

	if sel := classSelector(node); sel != "" {
		locators = append(locators, schemas.Locator{
			Kind: schemas.LocatorClass, Value: sel, Confidence: 0.6,
		})
	}

	locators = append(locators, schemas.Locator{
		Kind: schemas.LocatorPath, Value: StructuralPath(node), Confidence: 0.5,
	})

	if NaturallyClickable(node) {
		if text := innerText(node); text != "" {
			locators = append(locators, schemas.Locator{
				Kind: schemas.LocatorText, Value: truncate(text), Confidence: 0.4,
			})
		}
	}

	return locators
}

// classSelector builds a short CSS selector from the node's stable classes.
// Utility and generated classes are excluded; at most two classes keep the
// selector short enough to survive styling churn.
func classSelector(node *html.Node) string {
	stable := stableClasses(node)
	if len(stable) == 0 {
		return ""
	}
	if len(stable) > 2 {
		stable = stable[:2]
	}
	return strings.ToLower(node.Data) + "." + strings.Join(stable, ".")
}
