package schemas

import (
	jsoniter "github.com/json-iterator/go"
)

// -- Boundary Envelope Schemas --
//
// Requests arrive from the transport layer as a tagged union: the Type field is
// the discriminant and exactly one payload field is expected to be set. The
// envelope is validated before anything reaches the core, replacing the
// duck-typed message shapes the engine historically accepted.

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RequestType discriminates the request union.
type RequestType string

const (
	RequestFindIntent    RequestType = "find_intent"
	RequestResolveTarget RequestType = "resolve_target"
	RequestExecuteAction RequestType = "execute_action"
	RequestStats         RequestType = "stats"
	RequestRefresh       RequestType = "refresh"
	RequestCleanup       RequestType = "cleanup"
)

// ExecuteActionPayload is the execute_action request body. Nodes cross the
// boundary as stable ids, never as handles.
type ExecuteActionPayload struct {
	Verb    ActionVerb    `json:"verb"`
	NodeID  string        `json:"nodeId,omitempty"`
	Target  *TargetSpec   `json:"target,omitempty"`
	Options ActionOptions `json:"options"`
}

// Request is the envelope for all engine-bound messages. CorrelationID is
// caller-supplied (a uuid) so asynchronous replies can be matched up.
type Request struct {
	Type          RequestType           `json:"type"`
	CorrelationID string                `json:"correlationId"`
	Intent        string                `json:"intent,omitempty"`
	Target        *TargetSpec           `json:"target,omitempty"`
	Action        *ExecuteActionPayload `json:"action,omitempty"`
}

// Validate checks the discriminant and that the matching payload is present.
func (r *Request) Validate() *ActionError {
	switch r.Type {
	case RequestFindIntent:
		// An empty intent is legal: resolution degrades to the recency fallback.
	case RequestResolveTarget:
		if !r.Target.Valid() {
			return NewActionError(ErrInvalidTargetSpec, "resolve_target request missing a usable primary strategy")
		}
	case RequestExecuteAction:
		if r.Action == nil || r.Action.Verb == "" {
			return NewActionError(ErrInvalidTargetSpec, "execute_action request missing verb")
		}
		if r.Action.NodeID == "" && !r.Action.Target.Valid() {
			return NewActionError(ErrInvalidTargetSpec, "execute_action request needs a nodeId or a target spec")
		}
	case RequestStats, RequestRefresh, RequestCleanup:
		// No payload.
	default:
		return NewActionError(ErrInvalidTargetSpec, "unknown request type %q", r.Type)
	}
	return nil
}

// Response is the reply envelope. Exactly one of Data or Error is set.
type Response struct {
	OK            bool                `json:"ok"`
	CorrelationID string              `json:"correlationId"`
	Data          jsoniter.RawMessage `json:"data,omitempty"`
	Error         *ActionError        `json:"error,omitempty"`
}

// EngineStats is the stats response body.
type EngineStats struct {
	CacheSize      int            `json:"cacheSize"`
	IndexSizes     map[string]int `json:"indexSizes"`
	MemoryEstimate int            `json:"memoryEstimateBytes"`
}

// MarshalResponse serializes a response, degrading to a minimal error envelope
// if the payload itself cannot be serialized. The transport always gets bytes.
func MarshalResponse(resp Response) []byte {
	out, err := json.Marshal(resp)
	if err == nil {
		return out
	}
	fallback := Response{
		OK:            false,
		CorrelationID: resp.CorrelationID,
		Error:         NewActionError(ErrSerializationFailure, "response could not be serialized: %v", err),
	}
	out, err = json.Marshal(fallback)
	if err != nil {
		// Static envelope, cannot fail.
		return []byte(`{"ok":false,"error":{"kind":"SerializationFailure","message":"response could not be serialized"}}`)
	}
	return out
}

// UnmarshalRequest parses a raw request envelope.
func UnmarshalRequest(raw []byte) (*Request, *ActionError) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, NewActionError(ErrSerializationFailure, "malformed request envelope: %v", err)
	}
	if verr := req.Validate(); verr != nil {
		return nil, verr
	}
	return &req, nil
}

// MarshalData serializes a payload for embedding into a Response.
func MarshalData(v interface{}) (jsoniter.RawMessage, error) {
	return json.Marshal(v)
}

// Unmarshal decodes boundary payloads with the same configuration the engine
// encodes them with.
func Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
