// File: internal/action/executor.go
package action

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagesense/api/schemas"
	"github.com/xkilldash9x/pagesense/internal/config"
	"github.com/xkilldash9x/pagesense/internal/page"
)

// Executor drives the per-invocation state machine:
// Validate → AwaitReady → BringIntoView → Execute → Verify → {Success|Failed}.
// Every outcome is reported as a structured ActionResult; no step leaves the
// node in a silent partially-mutated state.
type Executor struct {
	logger *zap.Logger
	cfg    config.ActionConfig
	doc    *page.Document
}

// New creates an action executor over a document.
func New(cfg config.ActionConfig, doc *page.Document, logger *zap.Logger) *Executor {
	return &Executor{
		logger: logger.With(zap.String("component", "action_executor")),
		cfg:    cfg,
		doc:    doc,
	}
}

// phaseRunner accumulates per-phase timing so failures can be placed inside
// the state machine.
type phaseRunner struct {
	timing []schemas.PhaseTiming
}

func (p *phaseRunner) run(name string, fn func() *schemas.ActionError) *schemas.ActionError {
	start := time.Now()
	err := fn()
	p.timing = append(p.timing, schemas.PhaseTiming{Phase: name, Duration: time.Since(start)})
	return err
}

// Execute performs one action on a resolved node. Panics from any step are
// converted into a typed error with timing preserved.
func (e *Executor) Execute(ctx context.Context, verb schemas.ActionVerb, node *html.Node, nodeID string, opts schemas.ActionOptions) (result schemas.ActionResult) {
	start := time.Now()
	runner := &phaseRunner{}

	result = schemas.ActionResult{Action: verb, NodeID: nodeID}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Action execution panicked", zap.Any("panic", r), zap.String("verb", string(verb)))
			result.Success = false
			result.Error = schemas.NewActionError(schemas.ErrUnsupportedAction, "action %s panicked: %v", verb, r)
		}
		result.Timing = runner.timing
		result.Total = time.Since(start)
	}()

	timeout := e.cfg.Timeout
	if opts.TimeoutMs > 0 {
		timeout = time.Duration(opts.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fail := func(err *schemas.ActionError) schemas.ActionResult {
		e.logger.Debug("Action failed",
			zap.String("verb", string(verb)),
			zap.String("kind", string(err.Kind)),
			zap.String("message", err.Message))
		result.Success = false
		result.Error = err
		return result
	}

	if err := runner.run("validate", func() *schemas.ActionError {
		return e.validate(verb, node)
	}); err != nil {
		return fail(err)
	}

	if err := runner.run("await_ready", func() *schemas.ActionError {
		return e.awaitReady(ctx, node)
	}); err != nil {
		return fail(err)
	}

	if err := runner.run("bring_into_view", func() *schemas.ActionError {
		return e.bringIntoView(ctx, node)
	}); err != nil {
		return fail(err)
	}

	if err := runner.run("execute", func() *schemas.ActionError {
		return e.dispatch(ctx, verb, node, opts)
	}); err != nil {
		return fail(err)
	}

	if e.cfg.VerifySnapshot {
		_ = runner.run("verify", func() *schemas.ActionError {
			result.Snapshot = e.snapshot(node)
			return nil
		})
	}

	result.Success = true
	return result
}

// validate rejects nodes no longer attached and verbs the engine doesn't know.
func (e *Executor) validate(verb schemas.ActionVerb, node *html.Node) *schemas.ActionError {
	switch verb {
	case schemas.ActionClick, schemas.ActionType, schemas.ActionScroll,
		schemas.ActionFocus, schemas.ActionBlur, schemas.ActionHover,
		schemas.ActionSubmit, schemas.ActionSelect, schemas.ActionToggle:
	default:
		return schemas.NewActionError(schemas.ErrUnsupportedAction, "unknown action verb %q", verb)
	}
	if node == nil || !e.doc.Attached(node) {
		return schemas.NewActionError(schemas.ErrNodeDetached, "target node is no longer attached to the document")
	}
	return nil
}

// awaitReady polls rendered/enabled state until the node is actionable or the
// context deadline hits.
func (e *Executor) awaitReady(ctx context.Context, node *html.Node) *schemas.ActionError {
	for {
		if !e.doc.Attached(node) {
			return schemas.NewActionError(schemas.ErrNodeDetached, "node detached while waiting for readiness")
		}
		if e.doc.IsRendered(node) && !nodeDisabled(node) {
			return nil
		}
		timer := time.NewTimer(e.cfg.ReadyPoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return schemas.NewActionError(schemas.ErrActionTimeout, "node never became ready: %v", ctx.Err())
		case <-timer.C:
		}
	}
}

// bringIntoView centers the node and waits a fixed settle delay so any
// scroll-triggered handlers have run before the interaction starts.
func (e *Executor) bringIntoView(ctx context.Context, node *html.Node) *schemas.ActionError {
	if !e.doc.InViewport(node) {
		e.doc.ScrollIntoView(node)
	}
	if err := sleepCtx(ctx, e.cfg.SettleDelay); err != nil {
		return schemas.NewActionError(schemas.ErrActionTimeout, "settle wait interrupted: %v", err)
	}
	return nil
}

func (e *Executor) snapshot(node *html.Node) *schemas.ElementSnapshot {
	return &schemas.ElementSnapshot{
		Value:   e.doc.Value(node),
		Checked: e.doc.Checked(node),
		Focused: e.doc.Focused() == node,
	}
}

func nodeDisabled(node *html.Node) bool {
	if _, ok := page.Attr(node, "disabled"); ok {
		return true
	}
	if v, ok := page.Attr(node, "aria-disabled"); ok && v == "true" {
		return true
	}
	return false
}

func isCheckable(node *html.Node) bool {
	if !strings.EqualFold(node.Data, "input") {
		return false
	}
	t, _ := page.Attr(node, "type")
	switch strings.ToLower(t) {
	case "checkbox", "radio":
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
