package observer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagesense/internal/config"
	"github.com/xkilldash9x/pagesense/internal/nodecache"
	"github.com/xkilldash9x/pagesense/internal/page"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfigs() (config.ObserverConfig, config.CacheConfig) {
	return config.ObserverConfig{
			BatchWindow: 5 * time.Millisecond,
			QueueSize:   256,
		}, config.CacheConfig{
			MaxEntries:          64,
			MaxQueryResults:     10,
			MaxAge:              time.Minute,
			SweepInterval:       50 * time.Millisecond,
			SimilarityThreshold: 0.72,
		}
}

func setup(t *testing.T, src string) (*page.Document, *nodecache.Cache, *Observer) {
	t.Helper()
	doc, err := page.ParseString(src)
	require.NoError(t, err)

	obsCfg, cacheCfg := testConfigs()
	cache, err := nodecache.New(cacheCfg, zap.NewNop())
	require.NoError(t, err)
	return doc, cache, New(obsCfg, cacheCfg, doc, cache, zap.NewNop())
}

func byID(t *testing.T, doc *page.Document, id string) *html.Node {
	t.Helper()
	var found *html.Node
	doc.ForEachElement(func(n *html.Node) bool {
		if v, ok := page.Attr(n, "id"); ok && v == id {
			found = n
			return false
		}
		return true
	})
	require.NotNil(t, found, "no element with id %q", id)
	return found
}

// waitFor polls a condition until it holds or the deadline passes. Mutation
// application is asynchronous behind the batch window.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", msg)
}

func TestStartSeedsCacheSynchronously(t *testing.T) {
	doc, cache, obs := setup(t, `<html><body>
		<button id="a">Save</button>
		<a id="b" href="/x">Home</a>
		<p id="c">prose</p>
	</body></html>`)
	_ = doc

	ctx := context.Background()
	obs.Start(ctx)
	defer obs.Stop()

	// Seeding happens before Start returns: interactive nodes only.
	assert.Equal(t, 2, cache.Len())
}

func TestStartIsIdempotent(t *testing.T) {
	_, _, obs := setup(t, `<html><body><button id="a">x</button></body></html>`)
	obs.Start(context.Background())
	obs.Start(context.Background())
	obs.Stop()
	obs.Stop()
}

func TestAddedSubtreeIsIndexed(t *testing.T) {
	doc, cache, obs := setup(t, `<html><body><div id="root"></div></body></html>`)
	obs.Start(context.Background())
	defer obs.Stop()
	require.Zero(t, cache.Len())

	sub := &html.Node{Type: html.ElementNode, Data: "div"}
	btn := &html.Node{
		Type: html.ElementNode, Data: "button",
		Attr: []html.Attribute{{Key: "id", Val: "added"}},
	}
	btn.AppendChild(&html.Node{Type: html.TextNode, Data: "Click me"})
	sub.AppendChild(btn)
	require.NoError(t, doc.AppendChild(byID(t, doc, "root"), sub))

	waitFor(t, func() bool { return cache.Len() == 1 }, "added button indexed")
	got := cache.Query([]string{"click"}, nil)
	require.Len(t, got, 1)
}

func TestRemovedSubtreeIsForgotten(t *testing.T) {
	doc, cache, obs := setup(t, `<html><body>
		<div id="panel"><button id="inner">Go</button></div>
		<button id="outside">Stay</button>
	</body></html>`)
	obs.Start(context.Background())
	defer obs.Stop()
	require.Equal(t, 2, cache.Len())

	require.NoError(t, doc.RemoveNode(byID(t, doc, "panel")))
	waitFor(t, func() bool { return cache.Len() == 1 }, "removed button forgotten")

	got := cache.Query([]string{"stay"}, nil)
	require.Len(t, got, 1)
}

func TestAttributeChangeRefreshesEntry(t *testing.T) {
	doc, cache, obs := setup(t, `<html><body><button id="b" aria-label="Old label">x</button></body></html>`)
	obs.Start(context.Background())
	defer obs.Stop()

	doc.SetAttribute(byID(t, doc, "b"), "aria-label", "Fresh label")
	waitFor(t, func() bool {
		got := cache.Query([]string{"fresh"}, nil)
		return len(got) == 1
	}, "attribute change re-extracts the descriptor")
}

func TestAttributeChangeCanDisqualify(t *testing.T) {
	doc, cache, obs := setup(t, `<html><body><div id="d" role="button">x</div></body></html>`)
	obs.Start(context.Background())
	defer obs.Stop()
	require.Equal(t, 1, cache.Len())

	doc.RemoveAttribute(byID(t, doc, "d"), "role")
	waitFor(t, func() bool { return cache.Len() == 0 }, "node losing its role leaves the cache")
}

func TestVisibilityFlipUpdatesFlagOnly(t *testing.T) {
	// Enough rows that the last one starts off-screen.
	src := `<html><body>`
	for i := 0; i < 60; i++ {
		src += `<button>row</button>`
	}
	src += `<button id="last">Target</button></body></html>`

	doc, cache, obs := setup(t, src)
	obs.Start(context.Background())
	defer obs.Stop()

	last := byID(t, doc, "last")
	require.False(t, doc.InViewport(last))

	var targetID string
	for _, id := range cache.IDs() {
		e, ok := cache.Resolve(id)
		if ok && e.Node == last {
			targetID = id
		}
	}
	require.NotEmpty(t, targetID)
	e, _ := cache.Resolve(targetID)
	require.False(t, e.Desc.Visible)
	updates := e.Desc.UpdateCount

	doc.ScrollIntoView(last)
	waitFor(t, func() bool {
		e, ok := cache.Resolve(targetID)
		return ok && e.Desc.Visible
	}, "visibility flag flips after scroll")

	e, _ = cache.Resolve(targetID)
	assert.Equal(t, updates, e.Desc.UpdateCount, "a visibility flip is not a re-extraction")
}

func TestStopHaltsProcessing(t *testing.T) {
	doc, cache, obs := setup(t, `<html><body><div id="root"></div></body></html>`)
	obs.Start(context.Background())
	obs.Stop()

	btn := &html.Node{
		Type: html.ElementNode, Data: "button",
		Attr: []html.Attribute{{Key: "id", Val: "late"}},
	}
	require.NoError(t, doc.AppendChild(byID(t, doc, "root"), btn))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, cache.Len(), "mutations after Stop are not applied")
}

func TestRescanPicksUpMissedNodes(t *testing.T) {
	doc, cache, obs := setup(t, `<html><body><div id="root"></div></body></html>`)
	obs.Start(context.Background())
	obs.Stop()

	btn := &html.Node{
		Type: html.ElementNode, Data: "button",
		Attr: []html.Attribute{{Key: "id", Val: "late"}},
	}
	require.NoError(t, doc.AppendChild(byID(t, doc, "root"), btn))

	obs.Rescan()
	assert.Equal(t, 1, cache.Len())
}
