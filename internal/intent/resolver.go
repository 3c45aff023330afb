// File: internal/intent/resolver.go
package intent

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesense/api/schemas"
	"github.com/xkilldash9x/pagesense/internal/config"
	"github.com/xkilldash9x/pagesense/internal/nodecache"
)

// Resolver turns a free-text intent into ranked candidate nodes by expanding
// the intent through the synonym table and scoring the cache's indexes.
type Resolver struct {
	logger *zap.Logger
	cfg    config.IntentConfig
	cache  *nodecache.Cache
}

// New creates an intent resolver over a cache.
func New(cfg config.IntentConfig, cache *nodecache.Cache, logger *zap.Logger) *Resolver {
	return &Resolver{
		logger: logger.With(zap.String("component", "intent_resolver")),
		cfg:    cfg,
		cache:  cache,
	}
}

// Resolve ranks indexed nodes against the intent text. Candidates that are not
// currently visible and interactable are discarded. An empty or unmatchable
// intent falls back to the most-recently-seen usable entries: a partial,
// ranked-by-recency list is strictly more useful to a caller than nothing.
func (r *Resolver) Resolve(intentText string) []schemas.Match {
	tokens, roles := r.expand(intentText)
	if len(tokens) == 0 && len(roles) == 0 {
		r.logger.Debug("Empty or structurally invalid intent, using recency fallback")
		return r.recencyFallback()
	}

	candidates := r.cache.Query(tokens, roles)

	matches := make([]schemas.Match, 0, len(candidates))
	for _, cand := range candidates {
		if !cand.Desc.Visible || !cand.Desc.Interactable {
			continue
		}
		matches = append(matches, schemas.Match{Descriptor: cand.Desc, Score: cand.Score})
	}

	if len(matches) == 0 {
		r.logger.Debug("Intent matched nothing indexed, using recency fallback",
			zap.String("intent", intentText))
		return r.recencyFallback()
	}

	if len(matches) > r.cfg.MaxResults {
		matches = matches[:r.cfg.MaxResults]
	}
	return matches
}

// expand tokenizes the intent, maps action verbs to role biases, strips
// fillers, and widens the remaining tokens through the synonym table.
func (r *Resolver) expand(intentText string) ([]string, []schemas.Role) {
	raw := nodecache.Tokenize(intentText)

	seenTokens := make(map[string]struct{})
	var tokens []string
	var roles []schemas.Role
	seenRoles := make(map[schemas.Role]struct{})

	addToken := func(tok string) {
		if _, ok := seenTokens[tok]; ok {
			return
		}
		seenTokens[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	for _, tok := range raw {
		if biased, ok := verbRoles[tok]; ok {
			for _, role := range biased {
				if _, dup := seenRoles[role]; !dup {
					seenRoles[role] = struct{}{}
					roles = append(roles, role)
				}
			}
			// The verb itself still participates as a token; "search" is both
			// a verb and a thing pages label elements with.
			if !fillerTokens[tok] {
				addToken(tok)
				for _, syn := range synonymTable[tok] {
					addToken(syn)
				}
			}
			continue
		}
		if fillerTokens[tok] {
			continue
		}
		addToken(tok)
		for _, syn := range synonymTable[tok] {
			addToken(syn)
		}
	}
	return tokens, roles
}

func (r *Resolver) recencyFallback() []schemas.Match {
	recent := r.cache.RecentVisible(r.cfg.RecencyFallback)
	matches := make([]schemas.Match, 0, len(recent))
	for _, desc := range recent {
		matches = append(matches, schemas.Match{Descriptor: desc, Score: 0})
	}
	return matches
}

// Tokens exposes the expanded token set for a given intent; the locator
// resolver uses it for its last-resort fuzzy strategy.
func (r *Resolver) Tokens(intentText string) []string {
	tokens, _ := r.expand(intentText)
	return tokens
}
