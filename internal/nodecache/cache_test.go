package nodecache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesense/api/schemas"
	"github.com/xkilldash9x/pagesense/internal/config"
)

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		MaxEntries:          8,
		MaxQueryResults:     10,
		MaxAge:              5 * time.Minute,
		SweepInterval:       30 * time.Second,
		SimilarityThreshold: 0.72,
	}
}

func newTestCache(t *testing.T, cfg config.CacheConfig) *Cache {
	t.Helper()
	c, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return c
}

func desc(id, text string, role schemas.Role) *schemas.NodeDescriptor {
	return &schemas.NodeDescriptor{
		ID:           id,
		Tag:          "button",
		Role:         role,
		Text:         text,
		Visible:      true,
		Interactable: true,
		Locators: []schemas.Locator{
			{Kind: schemas.LocatorID, Value: id, Confidence: 0.95},
		},
	}
}

func TestUpsertInsertAndMerge(t *testing.T) {
	c := newTestCache(t, testCacheConfig())

	c.Upsert(desc("n1", "Sign in", schemas.RoleButton), nil)
	e, ok := c.Resolve("n1")
	require.True(t, ok)
	assert.Equal(t, 0, e.Desc.UpdateCount)
	firstSeen := e.Desc.FirstSeen

	c.Upsert(desc("n1", "Log in", schemas.RoleButton), nil)
	e, ok = c.Resolve("n1")
	require.True(t, ok)
	assert.Equal(t, 1, e.Desc.UpdateCount, "merge advances the update counter")
	assert.Equal(t, firstSeen, e.Desc.FirstSeen, "merge preserves firstSeen")
	assert.Equal(t, "Log in", e.Desc.Text)
	assert.Equal(t, 1, c.Len())
}

func TestUpsertRejectsEmptyID(t *testing.T) {
	c := newTestCache(t, testCacheConfig())
	c.Upsert(&schemas.NodeDescriptor{Text: "x"}, nil)
	c.Upsert(nil, nil)
	assert.Zero(t, c.Len())
}

func TestMergeUpdatesIndexes(t *testing.T) {
	c := newTestCache(t, testCacheConfig())

	c.Upsert(desc("n1", "Sign in", schemas.RoleButton), nil)
	got := c.Query([]string{"sign"}, nil)
	require.Len(t, got, 1)

	// After the text changes, the old token stops matching exactly and the new
	// one starts.
	c.Upsert(desc("n1", "Continue", schemas.RoleButton), nil)
	got = c.Query([]string{"continue"}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0].Desc.ID)
}

func TestEvictionKeepsIndexesConsistent(t *testing.T) {
	cfg := testCacheConfig()
	cfg.MaxEntries = 3
	c := newTestCache(t, cfg)

	for i := 0; i < 5; i++ {
		c.Upsert(desc(fmt.Sprintf("n%d", i), fmt.Sprintf("label%d", i), schemas.RoleButton), nil)
	}
	assert.Equal(t, 3, c.Len())

	// The evicted entries' tokens must be gone from the index: querying them
	// yields nothing rather than dangling ids.
	got := c.Query([]string{"label0"}, nil)
	for _, cand := range got {
		assert.NotEqual(t, "n0", cand.Desc.ID)
		assert.NotEqual(t, "n1", cand.Desc.ID)
	}
	assert.False(t, c.Contains("n0"))
	assert.True(t, c.Contains("n4"))
}

func TestEvictionRespectsAccessRecency(t *testing.T) {
	cfg := testCacheConfig()
	cfg.MaxEntries = 3
	c := newTestCache(t, cfg)

	c.Upsert(desc("n0", "zero", schemas.RoleButton), nil)
	c.Upsert(desc("n1", "one", schemas.RoleButton), nil)
	c.Upsert(desc("n2", "two", schemas.RoleButton), nil)

	// Touch the oldest entry; n1 becomes the true LRU victim.
	_, ok := c.Resolve("n0")
	require.True(t, ok)

	c.Upsert(desc("n3", "three", schemas.RoleButton), nil)

	assert.True(t, c.Contains("n0"), "a recently accessed entry must survive eviction")
	assert.False(t, c.Contains("n1"), "the least recently accessed entry is the victim")
	assert.True(t, c.Contains("n2"))
	assert.True(t, c.Contains("n3"))
	assert.Empty(t, c.Query([]string{"one"}, nil), "the victim's tokens leave the index with it")
}

func TestRemoveUnindexes(t *testing.T) {
	c := newTestCache(t, testCacheConfig())
	c.Upsert(desc("n1", "Delete me", schemas.RoleButton), nil)

	require.True(t, c.Remove("n1"))
	assert.False(t, c.Remove("n1"))
	assert.Empty(t, c.Query([]string{"delete"}, nil))
	assert.Empty(t, c.ResolveLocator(schemas.LocatorID, "n1"))
}

func TestResolveLocator(t *testing.T) {
	c := newTestCache(t, testCacheConfig())
	d := desc("n1", "Save", schemas.RoleButton)
	d.Locators = append(d.Locators, schemas.Locator{Kind: schemas.LocatorText, Value: "Save", Confidence: 0.4})
	c.Upsert(d, nil)

	assert.Equal(t, []string{"n1"}, c.ResolveLocator(schemas.LocatorText, "Save"))
	assert.Empty(t, c.ResolveLocator(schemas.LocatorText, "Other"))
}

func TestSweepDropsStaleEntries(t *testing.T) {
	c := newTestCache(t, testCacheConfig())
	c.Upsert(desc("old", "Old", schemas.RoleButton), nil)
	c.Upsert(desc("new", "New", schemas.RoleButton), nil)

	// Backdate one entry.
	e, ok := c.Resolve("old")
	require.True(t, ok)
	e.Desc.LastSeen = time.Now().Add(-time.Hour)

	removed := c.Sweep(5 * time.Minute)
	assert.Equal(t, 1, removed)
	assert.False(t, c.Contains("old"))
	assert.True(t, c.Contains("new"))
}

func TestSetVisibility(t *testing.T) {
	c := newTestCache(t, testCacheConfig())
	c.Upsert(desc("n1", "Save", schemas.RoleButton), nil)

	require.True(t, c.SetVisibility("n1", false))
	e, _ := c.Resolve("n1")
	assert.False(t, e.Desc.Visible)
	assert.False(t, c.SetVisibility("ghost", true))
}

func TestRecentVisibleOrdersAndClones(t *testing.T) {
	c := newTestCache(t, testCacheConfig())
	c.Upsert(desc("a", "First", schemas.RoleButton), nil)
	c.Upsert(desc("b", "Second", schemas.RoleButton), nil)
	hidden := desc("c", "Hidden", schemas.RoleButton)
	hidden.Visible = false
	c.Upsert(hidden, nil)

	// Make "a" the most recently seen.
	e, _ := c.Resolve("a")
	e.Desc.LastSeen = time.Now().Add(time.Minute)

	got := c.RecentVisible(5)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	// Mutating the returned clone must not touch cache state.
	got[0].Text = "mutated"
	e, _ = c.Resolve("a")
	assert.NotEqual(t, "mutated", e.Desc.Text)
}

func TestStats(t *testing.T) {
	c := newTestCache(t, testCacheConfig())
	c.Upsert(desc("n1", "Save changes", schemas.RoleButton), nil)

	stats := c.Stats()
	assert.Equal(t, 1, stats.CacheSize)
	assert.Greater(t, stats.IndexSizes["token"], 0)
	assert.Equal(t, 1, stats.IndexSizes["role"])
	assert.Greater(t, stats.MemoryEstimate, 0)
}

func TestQueryRanking(t *testing.T) {
	c := newTestCache(t, testCacheConfig())
	c.Upsert(desc("exact", "submit order", schemas.RoleButton), nil)
	c.Upsert(desc("substr", "submitting", schemas.RoleButton), nil)
	c.Upsert(desc("fuzzy", "submot", schemas.RoleButton), nil)
	c.Upsert(desc("unrelated", "weather", schemas.RoleLink), nil)

	got := c.Query([]string{"submit"}, nil)
	require.NotEmpty(t, got)
	assert.Equal(t, "exact", got[0].Desc.ID, "exact token hit outranks everything")

	ids := make(map[string]float64)
	for _, cand := range got {
		ids[cand.Desc.ID] = cand.Score
	}
	assert.Greater(t, ids["exact"], ids["substr"])
	assert.NotContains(t, ids, "unrelated")
}

func TestQueryRoleBonus(t *testing.T) {
	c := newTestCache(t, testCacheConfig())
	c.Upsert(desc("btn", "save", schemas.RoleButton), nil)
	c.Upsert(desc("lnk", "save", schemas.RoleLink), nil)

	got := c.Query([]string{"save"}, []schemas.Role{schemas.RoleButton})
	require.Len(t, got, 2)
	assert.Equal(t, "btn", got[0].Desc.ID, "role bonus breaks the tie")
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestQueryCapsResults(t *testing.T) {
	cfg := testCacheConfig()
	cfg.MaxQueryResults = 3
	cfg.MaxEntries = 32
	c := newTestCache(t, cfg)

	for i := 0; i < 10; i++ {
		c.Upsert(desc(fmt.Sprintf("n%d", i), "save", schemas.RoleButton), nil)
	}
	got := c.Query([]string{"save"}, nil)
	assert.Len(t, got, 3)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Sign-In Now!", []string{"sign", "in", "now"}},
		{"a b c", nil},
		{"first_name", []string{"first", "name"}},
		{"", nil},
	}
	for _, tc := range tests {
		got := Tokenize(tc.in)
		if tc.want == nil {
			assert.Empty(t, got)
		} else {
			assert.Equal(t, tc.want, got)
		}
	}
}
