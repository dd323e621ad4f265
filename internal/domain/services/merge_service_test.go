package services

import (
	"context"
	"testing"
	"time"

	"github.com/parleychat/parley/internal/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// Mock repository for testing
type mockMessageRepository struct {
	mock.Mock
}

func (m *mockMessageRepository) PersistMessage(ctx context.Context, message *entities.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *mockMessageRepository) FetchTail(ctx context.Context, chatID string, k int) ([]*entities.Message, error) {
	args := m.Called(ctx, chatID, k)
	if args.Get(0) != nil {
		return args.Get(0).([]*entities.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMessageRepository) ListMessages(ctx context.Context, chatID string) ([]*entities.Message, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) != nil {
		return args.Get(0).([]*entities.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMessageRepository) DeleteMessagesFrom(ctx context.Context, chatID string, from time.Time) error {
	args := m.Called(ctx, chatID, from)
	return args.Error(0)
}

func TestMergeService_CanonicalMessage(t *testing.T) {
	service := NewMergeService(new(mockMessageRepository), zap.NewNop())

	t.Run("joins text and keeps narrative order", func(t *testing.T) {
		parts := []entities.MessagePart{
			entities.NewTextPart("first"),
			entities.NewReasoningPart("thinking"),
			entities.NewStepBoundaryPart(),
			entities.NewTextPart("second"),
		}

		message := service.CanonicalMessage(parts)

		assert.Equal(t, entities.RoleAssistant, message.Role)
		assert.Equal(t, "first\n\nsecond", message.Content)
		assert.Len(t, message.Parts, 4)
		assert.Equal(t, entities.PartTypeText, message.Parts[0].Type)
		assert.Equal(t, entities.PartTypeReasoning, message.Parts[1].Type)
		assert.Equal(t, entities.PartTypeStepBoundary, message.Parts[2].Type)
		assert.Equal(t, entities.PartTypeText, message.Parts[3].Type)
	})

	t.Run("rewraps reasoning details", func(t *testing.T) {
		raw := entities.MessagePart{Type: entities.PartTypeReasoning, Text: "deliberating"}

		message := service.CanonicalMessage([]entities.MessagePart{raw})

		assert.Len(t, message.Parts, 1)
		assert.Len(t, message.Parts[0].Details, 1)
		assert.Equal(t, "deliberating", message.Parts[0].Details[0].Text)
	})

	t.Run("deduplicates tool calls by id", func(t *testing.T) {
		streaming := entities.NewToolInvocationPart("call-1", "search", entities.ToolStateInputStreaming)
		available := entities.NewToolInvocationPart("call-1", "search", entities.ToolStateInputAvailable)
		available.Args = map[string]any{"query": "go"}
		done := entities.NewToolInvocationPart("call-1", "search", entities.ToolStateOutputAvailable)
		done.Result = "42 results"

		message := service.CanonicalMessage([]entities.MessagePart{streaming, available, done})

		assert.Len(t, message.Parts, 1)
		assert.Equal(t, entities.ToolStateOutputAvailable, message.Parts[0].State)
		assert.Equal(t, "42 results", message.Parts[0].Result)
	})

	t.Run("terminal state never downgraded by late update", func(t *testing.T) {
		done := entities.NewToolInvocationPart("call-1", "search", entities.ToolStateOutputAvailable)
		done.Result = "42 results"
		stale := entities.NewToolInvocationPart("call-1", "search", entities.ToolStateInputAvailable)

		message := service.CanonicalMessage([]entities.MessagePart{done, stale})

		assert.Len(t, message.Parts, 1)
		assert.Equal(t, entities.ToolStateOutputAvailable, message.Parts[0].State)
		assert.Equal(t, "42 results", message.Parts[0].Result)
	})

	t.Run("later terminal state wins at equal rank", func(t *testing.T) {
		done := entities.NewToolInvocationPart("call-1", "search", entities.ToolStateOutputAvailable)
		failed := entities.NewToolInvocationPart("call-1", "search", entities.ToolStateOutputError)
		failed.ErrorText = "timeout"

		message := service.CanonicalMessage([]entities.MessagePart{done, failed})

		assert.Len(t, message.Parts, 1)
		assert.Equal(t, entities.ToolStateOutputError, message.Parts[0].State)
		assert.Equal(t, "timeout", message.Parts[0].ErrorText)
	})

	t.Run("result without name inherits from prior entry", func(t *testing.T) {
		call := entities.NewToolInvocationPart("call-1", "search", entities.ToolStateInputAvailable)
		call.Args = map[string]any{"query": "go"}
		result := entities.NewToolInvocationPart("call-1", "", entities.ToolStateOutputAvailable)
		result.Result = "done"

		message := service.CanonicalMessage([]entities.MessagePart{call, result})

		assert.Len(t, message.Parts, 1)
		assert.Equal(t, "search", message.Parts[0].ToolName)
		assert.Equal(t, map[string]any{"query": "go"}, message.Parts[0].Args)
		assert.Equal(t, "done", message.Parts[0].Result)
	})

	t.Run("tool calls surface after narrative in first-seen order", func(t *testing.T) {
		parts := []entities.MessagePart{
			entities.NewToolInvocationPart("call-b", "read", entities.ToolStateInputAvailable),
			entities.NewTextPart("working"),
			entities.NewToolInvocationPart("call-a", "write", entities.ToolStateInputAvailable),
		}

		message := service.CanonicalMessage(parts)

		assert.Len(t, message.Parts, 3)
		assert.Equal(t, entities.PartTypeText, message.Parts[0].Type)
		assert.Equal(t, "call-b", message.Parts[1].ToolCallID)
		assert.Equal(t, "call-a", message.Parts[2].ToolCallID)
	})

	t.Run("same input always yields the same output", func(t *testing.T) {
		parts := []entities.MessagePart{
			entities.NewTextPart("answer"),
			entities.NewToolInvocationPart("call-1", "search", entities.ToolStateInputAvailable),
			entities.NewToolInvocationPart("call-1", "search", entities.ToolStateOutputAvailable),
		}

		first := service.CanonicalMessage(parts)
		second := service.CanonicalMessage(parts)

		assert.Equal(t, first, second)
	})

	t.Run("drops unknown part types", func(t *testing.T) {
		parts := []entities.MessagePart{
			entities.NewTextPart("answer"),
			{Type: "hologram"},
		}

		message := service.CanonicalMessage(parts)

		assert.Len(t, message.Parts, 1)
		assert.Equal(t, "answer", message.Content)
	})
}

func TestToolResultParts(t *testing.T) {
	toolMsg := &entities.Message{Role: entities.RoleTool, ToolCallID: "call-1", Content: "output"}
	plainMsg := &entities.Message{Role: entities.RoleAssistant, Content: "not a result"}

	parts := ToolResultParts([]*entities.Message{toolMsg, plainMsg})

	assert.Len(t, parts, 1)
	assert.Equal(t, "call-1", parts[0].ToolCallID)
	assert.Equal(t, entities.ToolStateOutputAvailable, parts[0].State)
	assert.Equal(t, "output", parts[0].Result)
}

func TestMergeService_FinalizeTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("merges tool stream results and persists", func(t *testing.T) {
		mockRepo := new(mockMessageRepository)
		service := NewMergeService(mockRepo, zap.NewNop())

		mockRepo.On("PersistMessage", ctx, mock.AnythingOfType("*entities.Message")).Return(nil).Once()

		rawParts := []entities.MessagePart{
			entities.NewTextPart("let me check"),
			entities.NewToolInvocationPart("call-1", "search", entities.ToolStateInputAvailable),
		}
		toolMessages := []*entities.Message{
			{Role: entities.RoleTool, ToolCallID: "call-1", Content: "found it"},
		}

		message := service.FinalizeTurn(ctx, "chat-1", "group-1", "gpt-x", rawParts, toolMessages)

		assert.NotEmpty(t, message.ID)
		assert.Equal(t, "chat-1", message.ChatID)
		assert.Equal(t, "group-1", message.GroupID)
		assert.Equal(t, "gpt-x", message.ModelID)
		assert.Len(t, message.Parts, 2)
		assert.Equal(t, entities.ToolStateOutputAvailable, message.Parts[1].State)
		assert.Equal(t, "found it", message.Parts[1].Result)
		mockRepo.AssertExpectations(t)
	})

	t.Run("persistence failure still returns the message", func(t *testing.T) {
		mockRepo := new(mockMessageRepository)
		service := NewMergeService(mockRepo, zap.NewNop())

		mockRepo.On("PersistMessage", ctx, mock.AnythingOfType("*entities.Message")).
			Return(assert.AnError).Once()

		message := service.FinalizeTurn(ctx, "chat-1", "group-1", "gpt-x",
			[]entities.MessagePart{entities.NewTextPart("answer")}, nil)

		assert.NotNil(t, message)
		assert.Equal(t, "answer", message.Content)
		mockRepo.AssertExpectations(t)
	})
}
