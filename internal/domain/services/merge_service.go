package services

import (
	"context"
	"strings"

	"github.com/parleychat/parley/internal/domain/entities"
	"github.com/parleychat/parley/internal/domain/events"
	"github.com/parleychat/parley/internal/domain/interfaces"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MergeService folds the raw parts accumulated during one assistant/tool turn
// into the single canonical message that gets persisted.
type MergeService interface {
	CanonicalMessage(rawParts []entities.MessagePart) entities.Message
	FinalizeTurn(ctx context.Context, chatID, groupID, modelID string, rawParts []entities.MessagePart, toolMessages []*entities.Message) *entities.Message
}

type mergeService struct {
	messageRepo interfaces.MessageRepository
	logger      *zap.Logger
}

func NewMergeService(messageRepo interfaces.MessageRepository, logger *zap.Logger) *mergeService {
	return &mergeService{
		messageRepo: messageRepo,
		logger:      logger,
	}
}

// CanonicalMessage walks rawParts in arrival order and produces the finalized
// message: narrative parts (text, reasoning, step boundaries) keep their
// relative order, tool invocations are deduplicated by call id and surface
// after the narrative, and the flattened content joins the plain-text
// fragments. The fold is pure: the same input always yields the same output.
func (s *mergeService) CanonicalMessage(rawParts []entities.MessagePart) entities.Message {
	var parts []entities.MessagePart
	var textParts []string
	toolMap := make(map[string]entities.MessagePart)
	var toolOrder []string

	for _, part := range rawParts {
		switch part.Type {
		case entities.PartTypeText:
			textParts = append(textParts, part.Text)
			parts = append(parts, part)
		case entities.PartTypeReasoning:
			parts = append(parts, entities.NewReasoningPart(part.Text))
		case entities.PartTypeStepBoundary:
			parts = append(parts, part)
		case entities.PartTypeToolInvocation:
			s.upsertToolCall(toolMap, &toolOrder, part)
		default:
			// Unknown types are rejected by the wire adapters before the
			// fold ever sees them; anything left is upstream drift.
			s.logger.Warn("Dropping part with unrecognized type", zap.String("type", part.Type))
		}
	}

	for _, id := range toolOrder {
		parts = append(parts, toolMap[id])
	}

	return entities.Message{
		Role:    entities.RoleAssistant,
		Content: strings.Join(textParts, "\n\n"),
		Parts:   parts,
	}
}

// upsertToolCall applies the state lattice: an incoming update replaces the
// existing entry only when its state priority is at least as high, so a
// terminal result always wins and a late lower-rank update never downgrades
// the entry. A result record may arrive without the tool name or arguments
// observed on the assistant stream; those carry over from the prior entry.
func (s *mergeService) upsertToolCall(toolMap map[string]entities.MessagePart, toolOrder *[]string, part entities.MessagePart) {
	existing, ok := toolMap[part.ToolCallID]
	if !ok {
		*toolOrder = append(*toolOrder, part.ToolCallID)
		toolMap[part.ToolCallID] = part
		return
	}
	if !part.State.Supersedes(existing.State) {
		return
	}
	if part.ToolName == "" {
		part.ToolName = existing.ToolName
	}
	if part.Args == nil {
		part.Args = existing.Args
	}
	toolMap[part.ToolCallID] = part
}

// ToolResultParts converts tool-role messages from a separate tool-execution
// stream into output-available invocation parts, so a completed result can
// land on a call whose invocation was only partially observed on the
// assistant stream.
func ToolResultParts(toolMessages []*entities.Message) []entities.MessagePart {
	var parts []entities.MessagePart
	for _, msg := range toolMessages {
		if !msg.ToolResult() {
			continue
		}
		part := entities.NewToolInvocationPart(msg.ToolCallID, "", entities.ToolStateOutputAvailable)
		part.Result = msg.Content
		parts = append(parts, part)
	}
	return parts
}

// FinalizeTurn merges the assistant stream parts together with any completed
// results from the tool stream, stamps the conversation context, and persists
// the canonical message. Persistence failure is logged and swallowed: the
// response was already delivered to the user, storage must never take it back.
func (s *mergeService) FinalizeTurn(ctx context.Context, chatID, groupID, modelID string, rawParts []entities.MessagePart, toolMessages []*entities.Message) *entities.Message {
	merged := append(append([]entities.MessagePart{}, rawParts...), ToolResultParts(toolMessages)...)

	message := s.CanonicalMessage(merged)
	message.ID = uuid.New().String()
	message.ChatID = chatID
	message.GroupID = groupID
	message.ModelID = modelID

	if err := s.messageRepo.PersistMessage(ctx, &message); err != nil {
		s.logger.Warn("Failed to persist finalized assistant message",
			zap.String("chat_id", chatID),
			zap.String("model_id", modelID),
			zap.Error(err))
	} else {
		events.PublishMessageHistoryEvent(chatID, []*entities.Message{&message})
	}

	return &message
}
