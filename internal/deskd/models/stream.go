package models

// Snapshot is the view of an app pushed over the stream channel
type Snapshot struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Icon             string    `json:"icon"`
	Status           AppStatus `json:"status"`
	ErrorMessage     *string   `json:"errorMessage,omitempty"`
	GenerationTimeMs *int64    `json:"generationTimeMs,omitempty"`
}

// Equal compares two snapshots field by field.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.ID == o.ID &&
		s.Name == o.Name &&
		s.Icon == o.Icon &&
		s.Status == o.Status &&
		equalStringPtr(s.ErrorMessage, o.ErrorMessage) &&
		equalInt64Ptr(s.GenerationTimeMs, o.GenerationTimeMs)
}

// Stream event names
const (
	EventSnapshot = "snapshot"
	EventError    = "error"
	EventThinking = "thinking"
	EventHTML     = "html"
	EventTool     = "tool"
)

// SSEFailure is the SSE event name of EventError payloads. EventSource
// reserves "error" for its own connection failures.
const SSEFailure = "failure"

// StreamEvent is one server-push payload. Exactly one of the payload fields
// is set, matching Type.
type StreamEvent struct {
	Type     string    `json:"type"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Code     string    `json:"code,omitempty"`
	Error    string    `json:"error,omitempty"`
	Text     string    `json:"text,omitempty"`
	AppID    string    `json:"appId,omitempty"`
	Tool     *ToolCall `json:"tool,omitempty"`
}

// Terminal reports whether no further events follow this one.
func (e StreamEvent) Terminal() bool {
	if e.Type == EventError {
		return true
	}
	return e.Type == EventSnapshot && e.Snapshot != nil && e.Snapshot.Status.IsTerminal()
}

// SSEName is the event name the payload is sent under
func (e StreamEvent) SSEName() string {
	if e.Type == EventError {
		return SSEFailure
	}
	return e.Type
}

// ToolCall describes a tool the generator is currently executing.
type ToolCall struct {
	Name   string `json:"name"`
	Detail string `json:"detail,omitempty"`
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
