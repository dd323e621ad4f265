package integrations

import (
	"testing"

	"github.com/parleychat/parley/internal/domain/entities"
	"github.com/parleychat/parley/internal/domain/errs"

	"github.com/stretchr/testify/assert"
)

func TestDecodePart_Narrative(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		part, err := DecodePart([]byte(`{"type":"text","text":"Hello"}`))
		assert.NoError(t, err)
		assert.Equal(t, entities.PartTypeText, part.Type)
		assert.Equal(t, "Hello", part.Text)
	})

	t.Run("reasoning", func(t *testing.T) {
		part, err := DecodePart([]byte(`{"type":"reasoning","text":"thinking"}`))
		assert.NoError(t, err)
		assert.Equal(t, entities.PartTypeReasoning, part.Type)
		assert.Len(t, part.Details, 1)
		assert.Equal(t, "thinking", part.Details[0].Text)
	})

	t.Run("step boundary variants collapse", func(t *testing.T) {
		for _, raw := range []string{
			`{"type":"step-boundary"}`,
			`{"type":"step-start"}`,
			`{"type":"step-finish"}`,
		} {
			part, err := DecodePart([]byte(raw))
			assert.NoError(t, err)
			assert.Equal(t, entities.PartTypeStepBoundary, part.Type)
		}
	})
}

func TestDecodePart_CurrentTool(t *testing.T) {
	t.Run("full invocation", func(t *testing.T) {
		raw := `{"type":"tool-invocation","toolCallId":"call-1","toolName":"search","state":"output-available","args":{"query":"go"},"result":"42 results"}`

		part, err := DecodePart([]byte(raw))

		assert.NoError(t, err)
		assert.Equal(t, entities.PartTypeToolInvocation, part.Type)
		assert.Equal(t, "call-1", part.ToolCallID)
		assert.Equal(t, "search", part.ToolName)
		assert.Equal(t, entities.ToolStateOutputAvailable, part.State)
		assert.Equal(t, map[string]any{"query": "go"}, part.Args)
		assert.Equal(t, "42 results", part.Result)
	})

	t.Run("missing call id", func(t *testing.T) {
		_, err := DecodePart([]byte(`{"type":"tool-invocation","state":"call"}`))
		assert.IsType(t, &errs.ValidationError{}, err)
	})

	t.Run("unknown state rejected", func(t *testing.T) {
		_, err := DecodePart([]byte(`{"type":"tool-invocation","toolCallId":"call-1","state":"running"}`))
		assert.IsType(t, &errs.ValidationError{}, err)
	})
}

func TestDecodePart_LegacyTool(t *testing.T) {
	t.Run("legacy statuses normalize", func(t *testing.T) {
		cases := map[string]entities.ToolState{
			"partial-call": entities.ToolStateInputStreaming,
			"call":         entities.ToolStateInputAvailable,
			"result":       entities.ToolStateOutputAvailable,
		}
		for status, expected := range cases {
			raw := `{"type":"tool","callID":"call-1","tool":"search","toolState":{"status":"` + status + `"}}`
			part, err := DecodePart([]byte(raw))
			assert.NoError(t, err)
			assert.Equal(t, entities.PartTypeToolInvocation, part.Type)
			assert.Equal(t, expected, part.State)
		}
	})

	t.Run("result with error becomes output-error", func(t *testing.T) {
		raw := `{"type":"tool","callID":"call-1","tool":"search","toolState":{"status":"result","output":"","error":"timeout"}}`

		part, err := DecodePart([]byte(raw))

		assert.NoError(t, err)
		assert.Equal(t, entities.ToolStateOutputError, part.State)
		assert.Equal(t, "timeout", part.ErrorText)
	})

	t.Run("input and output carry over", func(t *testing.T) {
		raw := `{"type":"tool","callID":"call-1","tool":"search","toolState":{"status":"result","input":{"query":"go"},"output":"found"}}`

		part, err := DecodePart([]byte(raw))

		assert.NoError(t, err)
		assert.Equal(t, "search", part.ToolName)
		assert.Equal(t, map[string]any{"query": "go"}, part.Args)
		assert.Equal(t, "found", part.Result)
	})

	t.Run("missing state rejected", func(t *testing.T) {
		_, err := DecodePart([]byte(`{"type":"tool","callID":"call-1"}`))
		assert.IsType(t, &errs.ValidationError{}, err)
	})
}

func TestDecodeToolResult(t *testing.T) {
	t.Run("current call id field", func(t *testing.T) {
		msg, ok := decodeToolResult([]byte(`{"type":"tool-result","toolCallId":"call-1","result":"found it"}`))
		assert.True(t, ok)
		assert.Equal(t, entities.RoleTool, msg.Role)
		assert.Equal(t, "call-1", msg.ToolCallID)
		assert.Equal(t, "found it", msg.Content)
	})

	t.Run("legacy call id field", func(t *testing.T) {
		msg, ok := decodeToolResult([]byte(`{"type":"tool-result","callID":"call-1","result":"found it"}`))
		assert.True(t, ok)
		assert.Equal(t, "call-1", msg.ToolCallID)
	})

	t.Run("other types are not claimed", func(t *testing.T) {
		_, ok := decodeToolResult([]byte(`{"type":"text","text":"hi"}`))
		assert.False(t, ok)
	})

	t.Run("missing call id is not claimed", func(t *testing.T) {
		_, ok := decodeToolResult([]byte(`{"type":"tool-result","result":"found it"}`))
		assert.False(t, ok)
	})
}

func TestDecodePart_Rejections(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		_, err := DecodePart([]byte(`{"type":"hologram"}`))
		assert.IsType(t, &errs.ValidationError{}, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := DecodePart([]byte(`{"type":`))
		assert.IsType(t, &errs.ValidationError{}, err)
	})
}
