// File: internal/locator/strategies.go
package locator

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagesense/api/schemas"
	"github.com/xkilldash9x/pagesense/internal/extract"
	"github.com/xkilldash9x/pagesense/internal/page"
)

// candidate is one node a strategy produced, with the strategy's a priori
// confidence in it.
type candidate struct {
	node       *html.Node
	confidence float64
}

// Strategy confidence table. Exact matches supplied by the caller score high;
// auto-generated relaxed variants score lower so an exact hit always wins.
const (
	confIDExact     = 0.95
	confData        = 0.90
	confPathExact   = 0.90
	confName        = 0.85
	confTextExact   = 0.80
	confClass       = 0.75
	confIDRelaxed   = 0.70
	confPathRelaxed = 0.60
	confTextPartial = 0.55
	confIntent      = 0.50
)

// execute runs a single strategy against the live tree and returns candidates
// in document order. Unknown kinds and unparsable selectors yield nothing; a
// bad strategy in the chain must not poison the rest.
func (r *Resolver) execute(strat schemas.Strategy, relaxed bool) []candidate {
	switch strat.Kind {
	case schemas.LocatorID:
		return r.byAttribute("id", strat.Value, relaxed, pick(relaxed, confIDRelaxed, confIDExact))
	case schemas.LocatorData:
		attr, val, ok := strings.Cut(strat.Value, "=")
		if !ok {
			return nil
		}
		return r.byAttribute(attr, val, relaxed, confData)
	case schemas.LocatorName:
		return r.byAttribute("name", strat.Value, relaxed, confName)
	case schemas.LocatorClass:
		return r.byCSS(strat.Value, confClass)
	case schemas.LocatorPath:
		return r.byXPath(strat.Value, pick(relaxed, confPathRelaxed, confPathExact))
	case schemas.LocatorText:
		return r.byText(strat.Value, relaxed)
	case schemas.LocatorIntent:
		return r.byIntent(strat.Value)
	default:
		return nil
	}
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}

func (r *Resolver) byAttribute(attr, value string, relaxed bool, conf float64) []candidate {
	var out []candidate
	r.doc.ForEachElement(func(n *html.Node) bool {
		v, ok := page.Attr(n, attr)
		if !ok {
			return true
		}
		if v == value || (relaxed && strings.EqualFold(v, value)) {
			out = append(out, candidate{node: n, confidence: conf})
		}
		return true
	})
	return out
}

func (r *Resolver) byCSS(selector string, conf float64) []candidate {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		r.logger.Debug("Unparsable CSS selector in strategy, skipping")
		return nil
	}
	nodes := sel.MatchAll(r.doc.Root())
	out := make([]candidate, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, candidate{node: n, confidence: conf})
	}
	return out
}

func (r *Resolver) byXPath(xpath string, conf float64) []candidate {
	nodes, err := htmlquery.QueryAll(r.doc.Root(), xpath)
	if err != nil {
		r.logger.Debug("Unparsable XPath in strategy, skipping")
		return nil
	}
	out := make([]candidate, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, candidate{node: n, confidence: conf})
	}
	return out
}

// byText matches the aggregated text of naturally clickable elements: exact
// trimmed equality normally, case-insensitive containment when relaxed.
func (r *Resolver) byText(text string, relaxed bool) []candidate {
	want := strings.TrimSpace(text)
	wantLower := strings.ToLower(want)
	var out []candidate
	r.doc.ForEachElement(func(n *html.Node) bool {
		if !extract.NaturallyClickable(n) {
			return true
		}
		got := strings.TrimSpace(htmlquery.InnerText(n))
		if got == want {
			out = append(out, candidate{node: n, confidence: confTextExact})
		} else if relaxed && strings.Contains(strings.ToLower(got), wantLower) {
			out = append(out, candidate{node: n, confidence: confTextPartial})
		}
		return true
	})
	return out
}

// byIntent is the last-resort fuzzy strategy: resolve the value as an intent
// and map the ranked ids back to live nodes through the cache.
func (r *Resolver) byIntent(text string) []candidate {
	matches := r.intent.Resolve(text)
	out := make([]candidate, 0, len(matches))
	for _, m := range matches {
		entry, ok := r.cache.Resolve(m.Descriptor.ID)
		if !ok || entry.Node == nil {
			continue
		}
		out = append(out, candidate{node: entry.Node, confidence: confIntent})
	}
	return out
}

// chainItem is one step of the resolution chain; relaxed marks the
// auto-generated loosened variants.
type chainItem struct {
	strat   schemas.Strategy
	relaxed bool
}

// autoFallbacks derives relaxed variants appropriate to the primary strategy's
// kind. They run after the caller's explicit fallbacks.
func autoFallbacks(primary schemas.Strategy) []chainItem {
	switch primary.Kind {
	case schemas.LocatorPath:
		relaxed := extract.RelaxedPath(primary.Value)
		if relaxed != primary.Value {
			return []chainItem{{strat: schemas.Strategy{Kind: schemas.LocatorPath, Value: relaxed}, relaxed: true}}
		}
	case schemas.LocatorText, schemas.LocatorID:
		return []chainItem{{strat: primary, relaxed: true}}
	}
	return nil
}
