package services

import (
	"context"
	"sync"

	"github.com/parleychat/parley/internal/domain/entities"
	"github.com/parleychat/parley/internal/domain/errs"
	"github.com/parleychat/parley/internal/domain/events"
	"github.com/parleychat/parley/internal/domain/interfaces"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// defaultTokenLimit bounds a single prompt; models with smaller context
// windows fail upstream with their own errors.
const defaultTokenLimit = 128000

// ChatService fans a prompt out to the selected models, runs each response
// stream through merge/persist/reconcile, and exposes the aggregated turn
// view. Each model task makes independent progress; stopping one never
// affects another.
type ChatService interface {
	SendToModels(ctx context.Context, chatID, prompt string, modelIDs []string) (string, error)
	EditMessage(ctx context.Context, chatID, messageID, content string, modelIDs []string) (string, error)
	GetTurns(ctx context.Context, chatID string) []entities.Turn
	Reconcile(ctx context.Context, chatID string)
	StopModel(chatID, modelID string)
	StopAll(chatID string)
}

type chatService struct {
	messageRepo interfaces.MessageRepository
	cache       interfaces.MessageCache
	stream      interfaces.ModelStream
	merger      MergeService
	reconciler  ReconcileService
	groups      GroupService
	tokenLimit  int
	logger      *zap.Logger

	mu    sync.Mutex
	chats map[string]*chatTasks
}

// chatTasks is the live state of one conversation: its per-model tasks in
// launch order plus the prompt currently being submitted.
type chatTasks struct {
	order         []string
	byModel       map[string]*modelTask
	pendingPrompt string
	selected      []string
}

type modelTask struct {
	modelID string
	cancel  context.CancelFunc

	mu           sync.Mutex
	inFlight     bool
	messages     []*entities.Message
	parts        []entities.MessagePart
	toolMessages []*entities.Message
}

func NewChatService(
	messageRepo interfaces.MessageRepository,
	cache interfaces.MessageCache,
	stream interfaces.ModelStream,
	merger MergeService,
	reconciler ReconcileService,
	groups GroupService,
	logger *zap.Logger,
) *chatService {
	return &chatService{
		messageRepo: messageRepo,
		cache:       cache,
		stream:      stream,
		merger:      merger,
		reconciler:  reconciler,
		groups:      groups,
		tokenLimit:  defaultTokenLimit,
		logger:      logger,
		chats:       make(map[string]*chatTasks),
	}
}

func (s *chatService) SendToModels(ctx context.Context, chatID, prompt string, modelIDs []string) (string, error) {
	if chatID == "" {
		return "", errs.ValidationErrorf("chat ID is required")
	}
	if prompt == "" {
		return "", errs.ValidationErrorf("prompt is required")
	}
	if len(modelIDs) == 0 {
		return "", errs.ValidationErrorf("at least one model is required")
	}
	if estimateTokens(prompt) > s.tokenLimit {
		return "", errs.ValidationErrorf("prompt too large for the context window")
	}

	groupID := uuid.New().String()
	userMsg := entities.NewMessage(entities.RoleUser, prompt)
	userMsg.ChatID = chatID
	userMsg.GroupID = groupID

	local := s.readLocal(ctx, chatID)
	local = append(local, userMsg)
	s.writeLocal(ctx, chatID, local)

	// The persisted copy picks up the storage-assigned id; the optimistic
	// message keeps its client id until reconciliation confirms the durable
	// identity. Persistence failure never blocks the turn.
	persistCopy := *userMsg
	if err := s.messageRepo.PersistMessage(ctx, &persistCopy); err != nil {
		s.logger.Warn("Failed to persist user message",
			zap.String("chat_id", chatID), zap.Error(err))
	}

	history := make([]*entities.Message, len(local))
	copy(history, local)

	s.mu.Lock()
	chat := s.chats[chatID]
	if chat == nil {
		chat = &chatTasks{byModel: make(map[string]*modelTask)}
		s.chats[chatID] = chat
	}
	chat.pendingPrompt = prompt
	chat.selected = append([]string{}, modelIDs...)

	for _, modelID := range modelIDs {
		if prev, ok := chat.byModel[modelID]; ok {
			prev.cancel()
		} else {
			chat.order = append(chat.order, modelID)
		}
		taskCtx, cancel := context.WithCancel(context.Background())
		task := &modelTask{
			modelID:  modelID,
			cancel:   cancel,
			inFlight: true,
			messages: []*entities.Message{userMsg},
		}
		chat.byModel[modelID] = task
		go s.runTask(taskCtx, chatID, groupID, prompt, history, task)
	}
	s.mu.Unlock()

	events.PublishTurnsChangedEvent(chatID)
	return groupID, nil
}

// runTask consumes one model's response stream to completion. A transport
// error or cancellation leaves the last-merged state as the task's final
// answer; only a proper finish event persists it.
func (s *chatService) runTask(ctx context.Context, chatID, groupID, prompt string, history []*entities.Message, task *modelTask) {
	ch, err := s.stream.Submit(ctx, prompt, task.modelID, interfaces.SubmitContext{
		ChatID:  chatID,
		GroupID: groupID,
		History: history,
	})
	if err != nil {
		s.logger.Warn("Failed to submit prompt to model",
			zap.String("chat_id", chatID),
			zap.String("model_id", task.modelID),
			zap.Error(err))
		task.mu.Lock()
		task.inFlight = false
		task.mu.Unlock()
		events.PublishTurnsChangedEvent(chatID)
		return
	}

	finished := false
	for ev := range ch {
		switch {
		case ev.Err != nil:
			s.logger.Warn("Model stream error",
				zap.String("chat_id", chatID),
				zap.String("model_id", task.modelID),
				zap.Error(ev.Err))
		case ev.Part != nil:
			task.mu.Lock()
			task.parts = append(task.parts, *ev.Part)
			task.mu.Unlock()
			events.PublishPartEvent(chatID, task.modelID, *ev.Part)
			events.PublishTurnsChangedEvent(chatID)
		case ev.ToolResult != nil:
			task.mu.Lock()
			task.toolMessages = append(task.toolMessages, ev.ToolResult)
			task.mu.Unlock()
		case ev.Finish != nil:
			s.finalizeTask(chatID, ev.Finish.GroupID, task)
			finished = true
		}
	}

	if !finished {
		// Stopped or dropped mid-stream: assemble what arrived so the view
		// shows it, but do not persist a turn that never finished.
		task.mu.Lock()
		merged := s.merger.CanonicalMessage(task.parts)
		merged.ID = uuid.New().String()
		merged.ChatID = chatID
		merged.GroupID = groupID
		merged.ModelID = task.modelID
		task.messages = append(task.messages, &merged)
		task.inFlight = false
		task.mu.Unlock()
		events.PublishTurnsChangedEvent(chatID)
	}
}

// finalizeTask runs the merge-persist-reconcile pipeline for a finished turn.
// The context is fresh: finalization is a storage concern and must not be cut
// short by whatever canceled the submitting request.
func (s *chatService) finalizeTask(chatID, groupID string, task *modelTask) {
	ctx := context.Background()

	task.mu.Lock()
	parts := append([]entities.MessagePart{}, task.parts...)
	toolMessages := append([]*entities.Message{}, task.toolMessages...)
	task.mu.Unlock()

	message := s.merger.FinalizeTurn(ctx, chatID, groupID, task.modelID, parts, toolMessages)

	task.mu.Lock()
	task.messages = append(task.messages, message)
	task.inFlight = false
	task.mu.Unlock()

	local := s.readLocal(ctx, chatID)
	local = append(local, message)
	s.writeLocal(ctx, chatID, local)

	s.reconciler.Reconcile(ctx, chatID)
	events.PublishTurnsChangedEvent(chatID)
}

// GetTurns recomputes the turn view from current snapshots of the persisted
// history and every live task. No hidden sequencing state: safe to call on
// every render or poll tick.
func (s *chatService) GetTurns(ctx context.Context, chatID string) []entities.Turn {
	persisted, err := s.messageRepo.ListMessages(ctx, chatID)
	if err != nil {
		s.logger.Warn("Failed to list persisted messages, aggregating live state only",
			zap.String("chat_id", chatID), zap.Error(err))
		persisted = nil
	}

	snapshot := TurnSnapshot{Persisted: persisted}

	s.mu.Lock()
	if chat, ok := s.chats[chatID]; ok {
		snapshot.PendingPrompt = chat.pendingPrompt
		snapshot.SelectedModels = append([]string{}, chat.selected...)
		for _, modelID := range chat.order {
			snapshot.Tasks = append(snapshot.Tasks, chat.byModel[modelID].snapshot())
		}
	}
	s.mu.Unlock()

	return s.groups.Turns(snapshot)
}

// Reconcile triggers identity reconciliation; safe to call repeatedly.
func (s *chatService) Reconcile(ctx context.Context, chatID string) {
	s.reconciler.Reconcile(ctx, chatID)
}

// EditMessage truncates everything after the edited point and resubmits the
// new content as a fresh message. The edited message itself is never mutated.
func (s *chatService) EditMessage(ctx context.Context, chatID, messageID, content string, modelIDs []string) (string, error) {
	if messageID == "" {
		return "", errs.ValidationErrorf("message ID is required")
	}

	local := s.readLocal(ctx, chatID)
	idx := -1
	for i, msg := range local {
		if msg.ID == messageID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", errs.NotFoundErrorf("message not found: %s", messageID)
	}

	edited := local[idx]
	if edited.Persisted() {
		if err := s.messageRepo.DeleteMessagesFrom(ctx, chatID, edited.CreatedAt); err != nil {
			s.logger.Warn("Failed to truncate persisted history for edit",
				zap.String("chat_id", chatID), zap.Error(err))
		}
	}
	s.writeLocal(ctx, chatID, local[:idx])

	return s.SendToModels(ctx, chatID, content, modelIDs)
}

// StopModel cancels one model's task. Its last-merged state stays as final;
// other models keep streaming.
func (s *chatService) StopModel(chatID, modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chat, ok := s.chats[chatID]; ok {
		if task, ok := chat.byModel[modelID]; ok {
			task.cancel()
		}
	}
}

func (s *chatService) StopAll(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chat, ok := s.chats[chatID]; ok {
		for _, task := range chat.byModel {
			task.cancel()
		}
	}
}

func (s *chatService) readLocal(ctx context.Context, chatID string) []*entities.Message {
	local, err := s.cache.ReadCache(ctx, chatID)
	if err != nil {
		s.logger.Warn("Failed to read message cache, treating as empty",
			zap.String("chat_id", chatID), zap.Error(err))
		return nil
	}
	return local
}

func (s *chatService) writeLocal(ctx context.Context, chatID string, messages []*entities.Message) {
	if err := s.cache.WriteCache(ctx, chatID, messages); err != nil {
		s.logger.Warn("Failed to write message cache",
			zap.String("chat_id", chatID), zap.Error(err))
	}
}

func (t *modelTask) snapshot() ModelTask {
	t.mu.Lock()
	defer t.mu.Unlock()
	messages := make([]*entities.Message, len(t.messages))
	copy(messages, t.messages)
	return ModelTask{
		ModelID:  t.modelID,
		Messages: messages,
		InFlight: t.inFlight,
	}
}

func estimateTokens(content string) int {
	enc, err := tiktoken.EncodingForModel("gpt-4")
	if err != nil {
		return 0
	}

	tokens := enc.Encode(content, nil, nil)

	return len(tokens)
}
