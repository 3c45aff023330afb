// File: internal/nodecache/query.go
package nodecache

import (
	"sort"
	"strings"
	"time"

	"github.com/agext/levenshtein"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesense/api/schemas"
)

// Scoring weights. Exact index hits dominate, substring containment is worth
// less, and a levenshtein similarity above the configured threshold is worth
// the least. A role hit is a flat bonus on top of text evidence.
const (
	weightExact     = 1.0
	weightSubstring = 0.6
	weightFuzzy     = 0.4
	roleBonus       = 0.5
)

// Candidate is one scored query result.
type Candidate struct {
	Desc  *schemas.NodeDescriptor
	Score float64
}

// Query scores all indexed nodes against the token and role sets and returns
// candidates sorted by descending score, capped to the configured result size.
// Returned descriptors are clones; callers cannot corrupt cache state.
func (c *Cache) Query(tokens []string, roles []schemas.Role) []Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()

	scores := make(map[string]float64)

	for _, tok := range tokens {
		// Exact bucket hits first.
		if bucket, ok := c.tokenIndex[tok]; ok {
			for id := range bucket {
				scores[id] += weightExact
			}
		}
		// Substring and fuzzy passes walk the index vocabulary, not the
		// entries, so cost scales with distinct tokens.
		for indexed, bucket := range c.tokenIndex {
			if indexed == tok {
				continue
			}
			if strings.Contains(indexed, tok) || strings.Contains(tok, indexed) {
				for id := range bucket {
					scores[id] += weightSubstring
				}
				continue
			}
			if sim := levenshtein.Similarity(indexed, tok, nil); sim >= c.cfg.SimilarityThreshold {
				for id := range bucket {
					scores[id] += weightFuzzy * sim
				}
			}
		}
	}

	for _, role := range roles {
		if bucket, ok := c.roleIndex[role]; ok {
			for id := range bucket {
				scores[id] += roleBonus
			}
		}
	}

	candidates := make([]Candidate, 0, len(scores))
	for id, score := range scores {
		e, ok := c.entries.Peek(id)
		if !ok {
			// Index and entries are mutated atomically; a miss here would mean
			// the invariant broke, so surface it loudly in debug logs.
			c.logger.Debug("Index referenced missing entry", zap.String("id", id))
			continue
		}
		candidates = append(candidates, Candidate{Desc: e.Desc, Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Desc.ID < candidates[j].Desc.ID
	})

	limit := c.cfg.MaxQueryResults
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	// Touch survivors and clone them out.
	now := time.Now()
	for i := range candidates {
		if e, ok := c.entries.Get(candidates[i].Desc.ID); ok {
			e.lastAccess = now
			e.accessCount++
			candidates[i].Desc = e.Desc.Clone()
		}
	}
	return candidates
}
