// File: internal/locator/resolver.go
package locator

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagesense/api/schemas"
	"github.com/xkilldash9x/pagesense/internal/config"
	"github.com/xkilldash9x/pagesense/internal/extract"
	"github.com/xkilldash9x/pagesense/internal/intent"
	"github.com/xkilldash9x/pagesense/internal/nodecache"
	"github.com/xkilldash9x/pagesense/internal/page"
)

// Result is a successful resolution: the live node, a fresh descriptor for it
// and the confidence of the strategy that found it.
type Result struct {
	Node       *html.Node
	Desc       *schemas.NodeDescriptor
	Confidence float64
}

// Resolver attempts a TargetSpec's strategies in priority order against the
// live document, with bounded retries and linearly increasing backoff.
type Resolver struct {
	logger    *zap.Logger
	cfg       config.LocatorConfig
	doc       *page.Document
	cache     *nodecache.Cache
	intent    *intent.Resolver
	extractor *extract.Extractor
}

// New creates a target locator resolver.
func New(cfg config.LocatorConfig, doc *page.Document, cache *nodecache.Cache, intentResolver *intent.Resolver, logger *zap.Logger) *Resolver {
	return &Resolver{
		logger:    logger.With(zap.String("component", "locator_resolver")),
		cfg:       cfg,
		doc:       doc,
		cache:     cache,
		intent:    intentResolver,
		extractor: extract.New(doc),
	}
}

// Resolve walks the spec's strategy chain. The first candidate clearing the
// high-confidence threshold returns immediately; otherwise the best candidate
// seen across all strategies wins once the chain is exhausted. A miss is a nil
// Result, not an error; "not found" is an expected outcome.
func (r *Resolver) Resolve(ctx context.Context, spec *schemas.TargetSpec) (*Result, error) {
	if !spec.Valid() {
		return nil, schemas.NewActionError(schemas.ErrInvalidTargetSpec, "target spec has no usable primary strategy")
	}

	timeout := r.cfg.Timeout
	if spec.TimeoutMs > 0 {
		timeout = time.Duration(spec.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	retries := r.cfg.Retries
	if spec.Retries > 0 {
		retries = spec.Retries
	}
	if retries < 1 {
		retries = 1
	}

	chain := r.buildChain(spec)

	var best *Result
	for round := 1; round <= retries; round++ {
		if err := ctx.Err(); err != nil {
			break
		}

		for _, item := range chain {
			for _, cand := range r.execute(item.strat, item.relaxed) {
				res, ok := r.accept(cand, spec)
				if !ok {
					continue
				}
				if res.Confidence >= r.cfg.HighConfidence {
					r.logger.Debug("High-confidence match",
						zap.String("kind", string(item.strat.Kind)),
						zap.Float64("confidence", res.Confidence))
					return res, nil
				}
				if best == nil || res.Confidence > best.Confidence {
					best = res
				}
			}
		}

		if round < retries {
			// Linear backoff before the next attempt-round; a re-render may
			// need a moment to land.
			if err := sleepCtx(ctx, time.Duration(round)*r.cfg.RetryBackoff); err != nil {
				break
			}
		}
	}

	if best != nil && !spec.Strict {
		return best, nil
	}
	r.logger.Debug("Target resolution exhausted all strategies without a match")
	return nil, nil
}

// buildChain assembles the ordered strategy list: primary, explicit fallbacks,
// auto-generated relaxed variants (non-strict only) and finally the fuzzy
// intent fallback unless disabled.
func (r *Resolver) buildChain(spec *schemas.TargetSpec) []chainItem {
	chain := []chainItem{{strat: spec.Primary}}
	for _, fb := range spec.Fallbacks {
		chain = append(chain, chainItem{strat: fb})
	}
	if !spec.Strict {
		chain = append(chain, autoFallbacks(spec.Primary)...)
		if !spec.DisableIntentFallback && spec.Primary.Kind != schemas.LocatorIntent {
			chain = append(chain, chainItem{strat: schemas.Strategy{
				Kind:  schemas.LocatorIntent,
				Value: intentTextFor(spec.Primary),
			}})
		}
	}
	return chain
}

// intentTextFor turns a structured strategy value into something usable as a
// fuzzy intent. Selector punctuation becomes whitespace.
func intentTextFor(strat schemas.Strategy) string {
	value := strat.Value
	if _, v, ok := strings.Cut(value, "="); ok && strat.Kind == schemas.LocatorData {
		value = v
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '#', '.', '/', '[', ']', '@', '\'', '"', '=', '-', '_':
			return ' '
		}
		return r
	}, value)
}

// accept applies the spec's validation constraints and materializes a Result.
func (r *Resolver) accept(cand candidate, spec *schemas.TargetSpec) (*Result, bool) {
	if cand.node == nil || !r.doc.Attached(cand.node) {
		return nil, false
	}
	desc := r.extractor.Extract(cand.node)

	v := spec.Validate
	if v.RequireVisible && !desc.Visible {
		return nil, false
	}
	if v.RequireInteractable && !desc.Interactable {
		return nil, false
	}
	if v.TextContains != "" &&
		!strings.Contains(strings.ToLower(desc.Text), strings.ToLower(v.TextContains)) {
		return nil, false
	}
	return &Result{Node: cand.node, Desc: desc, Confidence: cand.confidence}, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
