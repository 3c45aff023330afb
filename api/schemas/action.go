package schemas

import (
	"fmt"
	"time"
)

// -- Action Schemas --

// ActionVerb names one of the interaction procedures the execution engine knows
// how to drive.
type ActionVerb string

const (
	ActionClick  ActionVerb = "click"
	ActionType   ActionVerb = "type"
	ActionScroll ActionVerb = "scroll"
	ActionFocus  ActionVerb = "focus"
	ActionBlur   ActionVerb = "blur"
	ActionHover  ActionVerb = "hover"
	ActionSubmit ActionVerb = "submit"
	ActionSelect ActionVerb = "select"
	ActionToggle ActionVerb = "toggle"
)

// ErrorKind classifies an action or resolution failure.
type ErrorKind string

const (
	ErrNodeNotFound         ErrorKind = "NodeNotFound"
	ErrNodeNotInteractable  ErrorKind = "NodeNotInteractable"
	ErrNodeDetached         ErrorKind = "NodeDetached"
	ErrActionTimeout        ErrorKind = "ActionTimeout"
	ErrUnsupportedAction    ErrorKind = "UnsupportedAction"
	ErrInvalidTargetSpec    ErrorKind = "InvalidTargetSpec"
	ErrSerializationFailure ErrorKind = "SerializationFailure"
)

// ActionError is the typed failure every execution surfaces instead of a panic
// or a silent partial state.
type ActionError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewActionError builds a typed error with a formatted message.
func NewActionError(kind ErrorKind, format string, args ...interface{}) *ActionError {
	return &ActionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ActionOptions carries the per-invocation knobs a caller may set.
type ActionOptions struct {
	// Text is the payload for type and select actions.
	Text string `json:"text,omitempty"`
	// Append leaves the current value in place before typing. The default is to
	// clear first, so repeated type actions do not concatenate.
	Append bool `json:"append,omitempty"`
	// ScrollX/ScrollY are offsets for the scroll action.
	ScrollX float64 `json:"scrollX,omitempty"`
	ScrollY float64 `json:"scrollY,omitempty"`
	// TimeoutMs bounds the whole invocation. Zero means the configured default.
	TimeoutMs int `json:"timeoutMs,omitempty"`
}

// PhaseTiming records how long each state-machine phase ran, so a caller can
// tell where a failed action spent its budget. Durations serialize as
// nanoseconds, the encoding/json representation of time.Duration.
type PhaseTiming struct {
	Phase    string        `json:"phase"`
	Duration time.Duration `json:"duration"`
}

// ElementSnapshot is the post-action state Verify reads back.
type ElementSnapshot struct {
	Value   string `json:"value,omitempty"`
	Checked bool   `json:"checked,omitempty"`
	Focused bool   `json:"focused,omitempty"`
}

// ActionResult is produced once per action invocation.
type ActionResult struct {
	Success  bool             `json:"success"`
	Action   ActionVerb       `json:"action"`
	NodeID   string           `json:"nodeId,omitempty"`
	Snapshot *ElementSnapshot `json:"snapshot,omitempty"`
	Error    *ActionError     `json:"error,omitempty"`
	Timing   []PhaseTiming    `json:"timing"`
	Total    time.Duration    `json:"total"`
}
