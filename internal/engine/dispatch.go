// File: internal/engine/dispatch.go
package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesense/api/schemas"
)

// Dispatch is the serialized boundary: it accepts a raw request envelope,
// validates it, routes to the matching operation, and always returns a
// serialized response. Malformed input yields an error envelope, never a panic
// and never silence.
func (e *Engine) Dispatch(ctx context.Context, raw []byte) []byte {
	req, verr := schemas.UnmarshalRequest(raw)
	if verr != nil {
		e.logger.Debug("Rejected malformed request envelope", zap.String("kind", string(verr.Kind)))
		return schemas.MarshalResponse(schemas.Response{OK: false, Error: verr})
	}

	corrID := req.CorrelationID
	if corrID == "" {
		corrID = uuid.NewString()
	}

	switch req.Type {
	case schemas.RequestFindIntent:
		return e.reply(corrID, e.FindByIntent(ctx, req.Intent))

	case schemas.RequestResolveTarget:
		desc, aerr := e.ResolveTarget(ctx, req.Target)
		if aerr != nil {
			return e.replyError(corrID, aerr)
		}
		return e.reply(corrID, desc)

	case schemas.RequestExecuteAction:
		result := e.ExecuteAction(ctx, req.Action.Verb, req.Action.NodeID, req.Action.Target, req.Action.Options)
		return e.reply(corrID, result)

	case schemas.RequestStats:
		return e.reply(corrID, e.Stats())

	case schemas.RequestRefresh:
		e.Refresh(ctx)
		return e.reply(corrID, map[string]int{"cacheSize": e.cache.Len()})

	case schemas.RequestCleanup:
		return e.reply(corrID, map[string]int{"removed": e.Cleanup()})
	}

	// Unreachable: Validate rejects unknown types.
	return e.replyError(corrID, schemas.NewActionError(schemas.ErrInvalidTargetSpec, "unhandled request type %q", req.Type))
}

func (e *Engine) reply(corrID string, payload interface{}) []byte {
	data, err := schemas.MarshalData(payload)
	if err != nil {
		return e.replyError(corrID, schemas.NewActionError(schemas.ErrSerializationFailure, "payload serialization failed: %v", err))
	}
	return schemas.MarshalResponse(schemas.Response{OK: true, CorrelationID: corrID, Data: data})
}

func (e *Engine) replyError(corrID string, aerr *schemas.ActionError) []byte {
	return schemas.MarshalResponse(schemas.Response{OK: false, CorrelationID: corrID, Error: aerr})
}
