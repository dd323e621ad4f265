package services

import (
	"strings"

	"github.com/parleychat/parley/internal/domain/entities"

	"go.uber.org/zap"
)

// ModelTask is a point-in-time snapshot of one per-model conversation task:
// its alternating user/assistant message list and whether it is still
// producing parts.
type ModelTask struct {
	ModelID  string
	Messages []*entities.Message
	InFlight bool
}

// TurnSnapshot is everything group aggregation reads: the persisted history,
// each live task's state, and the prompt currently being submitted with the
// models selected for it. Aggregation is a pure function of this snapshot, so
// it can run on every render tick regardless of which task just advanced.
type TurnSnapshot struct {
	Persisted      []*entities.Message
	Tasks          []ModelTask
	PendingPrompt  string
	SelectedModels []string
}

// GroupService aligns each model's user+assistant exchange into display
// turns, merging persisted history with live in-flight streams.
type GroupService interface {
	Turns(snapshot TurnSnapshot) []entities.Turn
}

type groupService struct {
	logger *zap.Logger
}

func NewGroupService(logger *zap.Logger) *groupService {
	return &groupService{logger: logger}
}

// groupKey is the correlation heuristic between the optimistic and persisted
// representations of the same prompt: flattened user text. The two sides are
// produced by different layers with no shared transaction, so there is no
// stable id to join on; keep this isolated so a correlation-id scheme can
// replace it without touching callers.
func groupKey(m *entities.Message) string {
	return strings.TrimSpace(flattenContent(m))
}

func flattenContent(m *entities.Message) string {
	if m.Content != "" {
		return m.Content
	}
	var texts []string
	for _, p := range m.Parts {
		if p.Type == entities.PartTypeText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}

func (s *groupService) Turns(snapshot TurnSnapshot) []entities.Turn {
	turns := make([]*entities.Turn, 0)
	index := make(map[string]int)

	s.groupPersisted(snapshot, &turns, index)
	for _, task := range snapshot.Tasks {
		s.overlayTask(snapshot, task, &turns, index)
	}

	out := make([]entities.Turn, len(turns))
	for i, t := range turns {
		out[i] = *t
	}
	return out
}

// groupPersisted scans persisted messages in order, opening a group per user
// message (first occurrence of a given text wins) and attaching each
// assistant message to the nearest preceding user message's group.
func (s *groupService) groupPersisted(snapshot TurnSnapshot, turns *[]*entities.Turn, index map[string]int) {
	persisted := snapshot.Persisted
	for i, msg := range persisted {
		switch msg.Role {
		case entities.RoleUser:
			key := groupKey(msg)
			if _, ok := index[key]; !ok {
				*turns = append(*turns, &entities.Turn{UserMessage: *msg})
				index[key] = len(*turns) - 1
			}
		case entities.RoleAssistant:
			var owner *entities.Message
			for j := i - 1; j >= 0; j-- {
				if persisted[j].Role == entities.RoleUser {
					owner = persisted[j]
					break
				}
			}
			if owner == nil {
				s.logger.Debug("Assistant row with no preceding user row, skipping",
					zap.String("message_id", msg.ID))
				continue
			}
			turn := (*turns)[index[groupKey(owner)]]
			modelID := s.attributeModel(msg, turn, snapshot.SelectedModels)
			if turn.Response(modelID) != nil {
				continue
			}
			turn.Responses = append(turn.Responses, entities.ModelResponse{
				ModelID: modelID,
				Message: *msg,
			})
		}
	}
}

// attributeModel resolves which model produced a persisted assistant row. The
// stored field is authoritative; rows written before model tagging existed
// fall back positionally (i-th response gets the i-th currently-selected
// model), which can misattribute if models were reordered since the original
// request. Known limitation, not silently corrected.
func (s *groupService) attributeModel(msg *entities.Message, turn *entities.Turn, selectedModels []string) string {
	if msg.ModelID != "" {
		return msg.ModelID
	}
	if pos := len(turn.Responses); pos < len(selectedModels) {
		return selectedModels[pos]
	}
	return ""
}

// overlayTask walks one live task's alternating list in adjacent pairs,
// creating groups for prompts not yet persisted, upserting finalized
// responses, and synthesizing loading placeholders for models still working.
// Persisted data, once present, is authoritative and never overwritten by a
// live duplicate; a finalized response always supersedes a placeholder.
func (s *groupService) overlayTask(snapshot TurnSnapshot, task ModelTask, turns *[]*entities.Turn, index map[string]int) {
	msgs := task.Messages
	for i := 0; i < len(msgs); i += 2 {
		user := msgs[i]
		if user.Role != entities.RoleUser {
			continue
		}
		key := groupKey(user)
		if key == "" {
			continue
		}

		pos, ok := index[key]
		if !ok {
			*turns = append(*turns, &entities.Turn{UserMessage: *user})
			pos = len(*turns) - 1
			index[key] = pos
		}
		turn := (*turns)[pos]

		if i+1 < len(msgs) && msgs[i+1].Role == entities.RoleAssistant {
			s.upsertFinalized(turn, task.ModelID, msgs[i+1])
			continue
		}

		if task.InFlight &&
			key == strings.TrimSpace(snapshot.PendingPrompt) &&
			selectedModel(snapshot.SelectedModels, task.ModelID) &&
			turn.Response(task.ModelID) == nil {
			turn.Responses = append(turn.Responses, entities.ModelResponse{
				ModelID:   task.ModelID,
				Message:   entities.Message{Role: entities.RoleAssistant, ModelID: task.ModelID},
				IsLoading: true,
			})
		}
	}
}

func (s *groupService) upsertFinalized(turn *entities.Turn, modelID string, msg *entities.Message) {
	existing := turn.Response(modelID)
	if existing == nil {
		turn.Responses = append(turn.Responses, entities.ModelResponse{
			ModelID: modelID,
			Message: *msg,
		})
		return
	}
	// Finalized supersedes loading; a finalized entry (persisted or earlier
	// live) stays as is.
	if existing.IsLoading {
		existing.Message = *msg
		existing.IsLoading = false
	}
}

func selectedModel(selected []string, modelID string) bool {
	for _, id := range selected {
		if id == modelID {
			return true
		}
	}
	return false
}
