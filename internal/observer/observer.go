// File: internal/observer/observer.go
package observer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagesense/internal/config"
	"github.com/xkilldash9x/pagesense/internal/extract"
	"github.com/xkilldash9x/pagesense/internal/nodecache"
	"github.com/xkilldash9x/pagesense/internal/page"
)

// Observer watches the live document for structural and attribute mutations
// and viewport-visibility transitions, and drives cache add/update/remove.
// One goroutine owns all cache mutations: mutation records are batched within
// a short window and a batch is applied in full before the next one starts,
// so a query issued after a flush always sees that flush's updates.
type Observer struct {
	logger    *zap.Logger
	cfg       config.ObserverConfig
	sweepCfg  config.CacheConfig
	doc       *page.Document
	cache     *nodecache.Cache
	extractor *extract.Extractor

	mu      sync.Mutex
	indexed map[*html.Node]string // node -> cache id, for detach handling
	cancel  context.CancelFunc
	unsub   func()
	done    chan struct{}
	running bool
}

// New wires an observer to a document and cache.
func New(cfg config.ObserverConfig, cacheCfg config.CacheConfig, doc *page.Document, cache *nodecache.Cache, logger *zap.Logger) *Observer {
	return &Observer{
		logger:    logger.With(zap.String("component", "change_observer")),
		cfg:       cfg,
		sweepCfg:  cacheCfg,
		doc:       doc,
		cache:     cache,
		extractor: extract.New(doc),
		indexed:   make(map[*html.Node]string),
	}
}

// Start seeds the cache with one full synchronous scan, then subscribes to
// mutation records and processes them on a single goroutine until Stop or
// context cancellation. Calling Start twice is a no-op.
func (o *Observer) Start(ctx context.Context) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return
	}
	o.running = true

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})

	mutations, unsub := o.doc.Observe(o.cfg.QueueSize)
	o.unsub = unsub
	o.mu.Unlock()

	o.Rescan()
	o.logger.Debug("Initial scan complete", zap.Int("cache_size", o.cache.Len()))

	go o.run(runCtx, mutations)
}

// Stop halts processing and unsubscribes. Pending batched mutations are
// dropped; a later Start rescans from scratch.
func (o *Observer) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	cancel, unsub, done := o.cancel, o.unsub, o.done
	o.mu.Unlock()

	cancel()
	<-done
	unsub()
}

// Rescan performs a full synchronous scan of the current tree, upserting every
// relevant node. Used at start and by the engine's forced refresh.
func (o *Observer) Rescan() {
	o.doc.ForEachElement(func(n *html.Node) bool {
		if extract.IsRelevant(n) {
			o.indexNode(n)
		}
		return true
	})
}

// run is the single mutation-applying goroutine. Records are collected until
// the batch window elapses, then the whole batch is applied synchronously.
func (o *Observer) run(ctx context.Context, mutations <-chan page.Mutation) {
	defer close(o.done)

	sweepInterval := o.sweepCfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	sweeper := time.NewTicker(sweepInterval)
	defer sweeper.Stop()

	var (
		batch      []page.Mutation
		flushTimer *time.Timer
		flushC     <-chan time.Time
	)
	stopTimer := func() {
		if flushTimer != nil {
			flushTimer.Stop()
			flushTimer = nil
			flushC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return

		case m := <-mutations:
			batch = append(batch, m)
			if flushTimer == nil {
				flushTimer = time.NewTimer(o.cfg.BatchWindow)
				flushC = flushTimer.C
			}

		case <-flushC:
			stopTimer()
			o.applyBatch(batch)
			batch = nil

		case <-sweeper.C:
			o.cache.Sweep(o.sweepCfg.MaxAge)
			o.pruneDetached()
		}
	}
}

// applyBatch applies one mutation batch to the cache. Bursty re-renders fold
// into a single pass here instead of thrashing the indexes.
func (o *Observer) applyBatch(batch []page.Mutation) {
	if len(batch) == 0 {
		return
	}
	o.logger.Debug("Applying mutation batch", zap.Int("size", len(batch)))

	for _, m := range batch {
		switch m.Kind {
		case page.NodeAdded:
			// Scan the added subtree with the same relevance gate as the
			// initial scan.
			walkSubtree(m.Node, func(n *html.Node) {
				if extract.IsRelevant(n) && o.doc.Attached(n) {
					o.indexNode(n)
				}
			})

		case page.NodeRemoved:
			o.removeDetachedUnder(m.Node)

		case page.AttributeChanged:
			o.handleAttributeChange(m.Node)

		case page.VisibilityChanged:
			o.mu.Lock()
			id, ok := o.indexed[m.Node]
			o.mu.Unlock()
			if ok {
				o.cache.SetVisibility(id, o.doc.InViewport(m.Node))
			}
		}
	}
}

// indexNode extracts a descriptor and upserts it, tracking the node→id link.
func (o *Observer) indexNode(n *html.Node) {
	desc := o.extractor.Extract(n)
	if desc == nil || desc.ID == "" {
		o.logger.Debug("Skipping node with no extractable identity")
		return
	}
	o.cache.Upsert(desc, n)
	o.mu.Lock()
	o.indexed[n] = desc.ID
	o.mu.Unlock()
}

// handleAttributeChange upserts a cached node in place, or (re)evaluates
// relevance for nodes whose attributes now qualify or disqualify them.
func (o *Observer) handleAttributeChange(n *html.Node) {
	attached := o.doc.Attached(n)

	o.mu.Lock()
	id, known := o.indexed[n]
	o.mu.Unlock()

	if !attached {
		if known {
			o.forget(n, id)
		}
		return
	}

	if extract.IsRelevant(n) {
		// Targeted upsert, not a rescan.
		o.indexNode(n)
		return
	}
	if known {
		o.forget(n, id)
	}
}

// removeDetachedUnder removes cache entries for every indexed node inside the
// removed subtree that is genuinely no longer attached.
func (o *Observer) removeDetachedUnder(root *html.Node) {
	walkSubtree(root, func(n *html.Node) {
		o.mu.Lock()
		id, ok := o.indexed[n]
		o.mu.Unlock()
		if ok && !o.doc.Attached(n) {
			o.forget(n, id)
		}
	})
}

// pruneDetached is the periodic safety net for entries whose backing node
// vanished without a removal record (e.g. dropped on a full observer queue).
func (o *Observer) pruneDetached() {
	o.mu.Lock()
	type pair struct {
		n  *html.Node
		id string
	}
	stale := make([]pair, 0)
	for n, id := range o.indexed {
		if !o.cache.Contains(id) {
			// Evicted or swept behind our back; drop the link.
			stale = append(stale, pair{n, id})
			continue
		}
		if !o.doc.Attached(n) {
			stale = append(stale, pair{n, id})
		}
	}
	o.mu.Unlock()

	for _, p := range stale {
		o.forget(p.n, p.id)
	}
}

func (o *Observer) forget(n *html.Node, id string) {
	o.cache.Remove(id)
	o.mu.Lock()
	delete(o.indexed, n)
	o.mu.Unlock()
}

func walkSubtree(n *html.Node, fn func(*html.Node)) {
	if n == nil {
		return
	}
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkSubtree(c, fn)
	}
}
