package integrations

import (
	"encoding/json"

	"github.com/parleychat/parley/internal/domain/entities"
	"github.com/parleychat/parley/internal/domain/errs"
)

// Two wire shapes exist for message parts. The current shape carries the part
// fields flat with a canonical state string; the legacy shape nests tool data
// under a state object and uses the old status names. Both are normalized
// into entities.MessagePart here, before any core logic runs; the merge and
// aggregation code never branches on wire shape.

type wirePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// current tool encoding
	ToolCallID string         `json:"toolCallId,omitempty"`
	ToolName   string         `json:"toolName,omitempty"`
	State      string         `json:"state,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	Result     string         `json:"result,omitempty"`
	ErrorText  string         `json:"errorText,omitempty"`

	// legacy tool encoding
	CallID    string           `json:"callID,omitempty"`
	Tool      string           `json:"tool,omitempty"`
	ToolState *legacyToolState `json:"toolState,omitempty"`

	// finish record context
	ChatID  string `json:"chatId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	ModelID string `json:"modelId,omitempty"`
}

type legacyToolState struct {
	Status string         `json:"status"`
	Input  map[string]any `json:"input,omitempty"`
	Output string         `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// wire part types beyond the canonical set
const (
	wireTypeTool       = "tool"
	wireTypeStepStart  = "step-start"
	wireTypeStepFinish = "step-finish"
	wireTypeToolResult = "tool-result"
	wireTypeFinish     = "finish"
)

// DecodePart normalizes one raw wire part into the canonical part union.
// Unknown types and unknown tool states are rejected rather than absorbed,
// so upstream protocol drift surfaces instead of corrupting merges.
func DecodePart(raw []byte) (entities.MessagePart, error) {
	var wp wirePart
	if err := json.Unmarshal(raw, &wp); err != nil {
		return entities.MessagePart{}, errs.ValidationErrorf("malformed stream part: %v", err)
	}

	switch wp.Type {
	case entities.PartTypeText:
		return entities.NewTextPart(wp.Text), nil
	case entities.PartTypeReasoning:
		return entities.NewReasoningPart(wp.Text), nil
	case entities.PartTypeStepBoundary, wireTypeStepStart, wireTypeStepFinish:
		return entities.NewStepBoundaryPart(), nil
	case entities.PartTypeToolInvocation:
		return decodeCurrentTool(wp)
	case wireTypeTool:
		return decodeLegacyTool(wp)
	}
	return entities.MessagePart{}, errs.ValidationErrorf("unrecognized stream part type: %q", wp.Type)
}

func decodeCurrentTool(wp wirePart) (entities.MessagePart, error) {
	if wp.ToolCallID == "" {
		return entities.MessagePart{}, errs.ValidationErrorf("tool-invocation part missing toolCallId")
	}
	state, ok := entities.NormalizeToolState(wp.State)
	if !ok {
		return entities.MessagePart{}, errs.ValidationErrorf("unrecognized tool state: %q", wp.State)
	}
	part := entities.NewToolInvocationPart(wp.ToolCallID, wp.ToolName, state)
	part.Args = wp.Args
	part.Result = wp.Result
	part.ErrorText = wp.ErrorText
	return part, nil
}

func decodeLegacyTool(wp wirePart) (entities.MessagePart, error) {
	if wp.CallID == "" {
		return entities.MessagePart{}, errs.ValidationErrorf("legacy tool part missing callID")
	}
	if wp.ToolState == nil {
		return entities.MessagePart{}, errs.ValidationErrorf("legacy tool part missing state")
	}
	state, ok := entities.NormalizeToolState(wp.ToolState.Status)
	if !ok {
		return entities.MessagePart{}, errs.ValidationErrorf("unrecognized legacy tool status: %q", wp.ToolState.Status)
	}
	if state == entities.ToolStateOutputAvailable && wp.ToolState.Error != "" {
		state = entities.ToolStateOutputError
	}
	part := entities.NewToolInvocationPart(wp.CallID, wp.Tool, state)
	part.Args = wp.ToolState.Input
	part.Result = wp.ToolState.Output
	part.ErrorText = wp.ToolState.Error
	return part, nil
}
