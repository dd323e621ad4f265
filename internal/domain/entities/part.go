package entities

// Part types carried inside an assistant or tool message.
const (
	PartTypeText           = "text"
	PartTypeReasoning      = "reasoning"
	PartTypeToolInvocation = "tool-invocation"
	PartTypeStepBoundary   = "step-boundary"
)

// ToolState is the lifecycle state of a single tool invocation.
type ToolState string

const (
	ToolStateInputStreaming  ToolState = "input-streaming"
	ToolStateInputAvailable  ToolState = "input-available"
	ToolStateOutputAvailable ToolState = "output-available"
	ToolStateOutputError     ToolState = "output-error"
)

// Legacy wire encodings still emitted by older streams. They are folded into
// the canonical states at the decode boundary and never appear in core logic.
const (
	legacyStatePartialCall = "partial-call"
	legacyStateCall        = "call"
	legacyStateResult      = "result"
)

// NormalizeToolState maps a raw wire state onto the canonical state set.
// Returns false for states the protocol does not define.
func NormalizeToolState(raw string) (ToolState, bool) {
	switch raw {
	case string(ToolStateInputStreaming), legacyStatePartialCall:
		return ToolStateInputStreaming, true
	case string(ToolStateInputAvailable), legacyStateCall:
		return ToolStateInputAvailable, true
	case string(ToolStateOutputAvailable), legacyStateResult:
		return ToolStateOutputAvailable, true
	case string(ToolStateOutputError):
		return ToolStateOutputError, true
	}
	return "", false
}

// Priority places states on a total order: terminal states outrank
// input-available, which outranks input-streaming.
func (s ToolState) Priority() int {
	switch s {
	case ToolStateInputStreaming:
		return 0
	case ToolStateInputAvailable:
		return 1
	case ToolStateOutputAvailable, ToolStateOutputError:
		return 2
	}
	return -1
}

// Terminal reports whether no further updates are expected for this call.
func (s ToolState) Terminal() bool {
	return s == ToolStateOutputAvailable || s == ToolStateOutputError
}

// Supersedes reports whether an update in state s may replace an existing
// entry in state other. Equal rank favors the later arrival.
func (s ToolState) Supersedes(other ToolState) bool {
	return s.Priority() >= other.Priority()
}

// ReasoningDetail is one structured block of a reasoning part. Renderers that
// expect detail blocks read these; the flattened Text stays on the part.
type ReasoningDetail struct {
	Type string `json:"type" bson:"type"`
	Text string `json:"text" bson:"text"`
}

// MessagePart is one fragment of an assistant or tool turn. Type selects
// which fields are meaningful.
type MessagePart struct {
	Type       string            `json:"type" bson:"type"`
	Text       string            `json:"text,omitempty" bson:"text,omitempty"`
	Details    []ReasoningDetail `json:"details,omitempty" bson:"details,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty" bson:"tool_call_id,omitempty"`
	ToolName   string            `json:"tool_name,omitempty" bson:"tool_name,omitempty"`
	State      ToolState         `json:"state,omitempty" bson:"state,omitempty"`
	Args       map[string]any    `json:"args,omitempty" bson:"args,omitempty"`
	Result     string            `json:"result,omitempty" bson:"result,omitempty"`
	ErrorText  string            `json:"error_text,omitempty" bson:"error_text,omitempty"`
}

func NewTextPart(text string) MessagePart {
	return MessagePart{Type: PartTypeText, Text: text}
}

// NewReasoningPart wraps raw reasoning text with a one-element detail list so
// renderers that expect structured blocks and ones that only read Text both work.
func NewReasoningPart(text string) MessagePart {
	return MessagePart{
		Type:    PartTypeReasoning,
		Text:    text,
		Details: []ReasoningDetail{{Type: PartTypeText, Text: text}},
	}
}

func NewStepBoundaryPart() MessagePart {
	return MessagePart{Type: PartTypeStepBoundary}
}

func NewToolInvocationPart(toolCallID, toolName string, state ToolState) MessagePart {
	return MessagePart{
		Type:       PartTypeToolInvocation,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		State:      state,
	}
}

// IsNarrative reports whether the part belongs to the narrative section of a
// finalized message (everything except tool invocations).
func (p MessagePart) IsNarrative() bool {
	return p.Type != PartTypeToolInvocation
}
