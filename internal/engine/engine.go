// File: internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/singleflight"

	"github.com/xkilldash9x/pagesense/api/schemas"
	"github.com/xkilldash9x/pagesense/internal/action"
	"github.com/xkilldash9x/pagesense/internal/config"
	"github.com/xkilldash9x/pagesense/internal/intent"
	"github.com/xkilldash9x/pagesense/internal/locator"
	"github.com/xkilldash9x/pagesense/internal/nodecache"
	"github.com/xkilldash9x/pagesense/internal/observer"
	"github.com/xkilldash9x/pagesense/internal/page"
)

// Engine is an explicitly constructed instance owning its cache, observer,
// resolvers and executor. One engine serves one document; there is no ambient
// global state anywhere in the core, and callers hold the reference.
type Engine struct {
	id     string
	logger *zap.Logger
	cfg    *config.Config

	doc      *page.Document
	cache    *nodecache.Cache
	observer *observer.Observer
	intents  *intent.Resolver
	locators *locator.Resolver
	executor *action.Executor

	refreshGroup singleflight.Group

	mu      sync.Mutex
	started bool
}

// New wires an engine over a live document. The configuration is resolved and
// validated once here; components receive their immutable slices of it.
func New(cfg *config.Config, doc *page.Document, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("engine requires a document")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.NewString()
	logger = logger.With(zap.String("engine_id", id))

	cache, err := nodecache.New(cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create node cache: %w", err)
	}

	intents := intent.New(cfg.Intent, cache, logger)
	return &Engine{
		id:       id,
		logger:   logger.With(zap.String("component", "engine")),
		cfg:      cfg,
		doc:      doc,
		cache:    cache,
		observer: observer.New(cfg.Observer, cfg.Cache, doc, cache, logger),
		intents:  intents,
		locators: locator.New(cfg.Locator, doc, cache, intents, logger),
		executor: action.New(cfg.Action, doc, logger),
	}, nil
}

// ID returns the engine instance id.
func (e *Engine) ID() string { return e.id }

// Init starts observation with a seeding scan. It is idempotent: the host may
// deliver the engine more than once and every delivery calls Init.
func (e *Engine) Init(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		e.logger.Debug("Init called on a running engine, ignoring")
		return
	}
	e.started = true
	e.observer.Start(ctx)
	e.logger.Info("Engine initialized", zap.Int("seeded_entries", e.cache.Len()))
}

// Close stops observation. The cache is left intact for inspection; a later
// Init rescans from the live tree.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return
	}
	e.started = false
	e.observer.Stop()
	e.logger.Info("Engine stopped")
}

// FindByIntent resolves a free-text intent to ranked candidate descriptors.
func (e *Engine) FindByIntent(ctx context.Context, text string) []schemas.Match {
	if ctx.Err() != nil {
		return nil
	}
	return e.intents.Resolve(text)
}

// ResolveTarget attempts a target spec against the live document. A nil
// descriptor with a nil error means not found, which is a normal negative
// outcome rather than a failure.
func (e *Engine) ResolveTarget(ctx context.Context, spec *schemas.TargetSpec) (*schemas.NodeDescriptor, *schemas.ActionError) {
	res, err := e.locators.Resolve(ctx, spec)
	if err != nil {
		if aerr, ok := err.(*schemas.ActionError); ok {
			return nil, aerr
		}
		return nil, schemas.NewActionError(schemas.ErrInvalidTargetSpec, "%v", err)
	}
	if res == nil {
		return nil, nil
	}
	// Make the node addressable by id for a follow-up ExecuteAction.
	e.cache.Upsert(res.Desc.Clone(), res.Node)
	return res.Desc, nil
}

// ExecuteAction performs a verb against a node addressed by cache id or by a
// target spec. Every failure arrives as a structured result, never a panic.
func (e *Engine) ExecuteAction(ctx context.Context, verb schemas.ActionVerb, nodeID string, spec *schemas.TargetSpec, opts schemas.ActionOptions) schemas.ActionResult {
	node, id, aerr := e.materialize(ctx, nodeID, spec)
	if aerr != nil {
		return schemas.ActionResult{Action: verb, NodeID: nodeID, Error: aerr}
	}
	return e.executor.Execute(ctx, verb, node, id, opts)
}

// materialize turns a boundary node reference (cache id or target spec) into a
// live node handle.
func (e *Engine) materialize(ctx context.Context, nodeID string, spec *schemas.TargetSpec) (*html.Node, string, *schemas.ActionError) {
	if nodeID != "" {
		entry, ok := e.cache.Resolve(nodeID)
		if !ok {
			return nil, nodeID, schemas.NewActionError(schemas.ErrNodeNotFound, "no cached node with id %s", nodeID)
		}
		if entry.Node == nil || !e.doc.Attached(entry.Node) {
			return nil, nodeID, schemas.NewActionError(schemas.ErrNodeDetached, "cached node %s is no longer attached", nodeID)
		}
		return entry.Node, nodeID, nil
	}

	desc, aerr := e.ResolveTarget(ctx, spec)
	if aerr != nil {
		return nil, "", aerr
	}
	if desc == nil {
		return nil, "", schemas.NewActionError(schemas.ErrNodeNotFound, "target spec matched no node")
	}
	entry, ok := e.cache.Resolve(desc.ID)
	if !ok || entry.Node == nil {
		return nil, desc.ID, schemas.NewActionError(schemas.ErrNodeDetached, "resolved node %s vanished before execution", desc.ID)
	}
	return entry.Node, desc.ID, nil
}

// Stats reports cache and index sizes plus a rough memory estimate.
func (e *Engine) Stats() schemas.EngineStats {
	return e.cache.Stats()
}

// Refresh forces a full synchronous rescan of the document. Concurrent callers
// share one scan.
func (e *Engine) Refresh(ctx context.Context) {
	_, _, _ = e.refreshGroup.Do("rescan", func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.observer.Rescan()
		e.logger.Debug("Forced rescan complete", zap.Int("cache_size", e.cache.Len()))
		return nil, nil
	})
}

// Cleanup forces a stale-entry sweep and reports how many entries dropped.
func (e *Engine) Cleanup() int {
	return e.cache.Sweep(e.cfg.Cache.MaxAge)
}
