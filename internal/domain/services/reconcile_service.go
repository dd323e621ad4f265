package services

import (
	"context"

	"github.com/parleychat/parley/internal/domain/events"
	"github.com/parleychat/parley/internal/domain/interfaces"

	"go.uber.org/zap"
)

// defaultTailSize covers the just-completed user+assistant pair.
const defaultTailSize = 2

// ReconcileService aligns the client's most recent in-memory messages with
// the corresponding persisted rows so identifiers and timestamps match, and
// subsequent edits or deletes address the correct persisted row.
type ReconcileService interface {
	Reconcile(ctx context.Context, chatID string)
}

type reconcileService struct {
	messageRepo interfaces.MessageRepository
	cache       interfaces.MessageCache
	tailSize    int
	logger      *zap.Logger
}

func NewReconcileService(messageRepo interfaces.MessageRepository, cache interfaces.MessageCache, logger *zap.Logger) *reconcileService {
	return &reconcileService{
		messageRepo: messageRepo,
		cache:       cache,
		tailSize:    defaultTailSize,
		logger:      logger,
	}
}

// Reconcile pairs the persisted tail against the local list, newest to
// oldest, matching by role. Content is never compared: storage may have
// rewritten it, while role plus recency is stable for the last couple of
// turns. Best-effort throughout: a storage outage or a missing local list
// degrades to a no-op, and running it again after convergence changes
// nothing.
func (s *reconcileService) Reconcile(ctx context.Context, chatID string) {
	local, err := s.cache.ReadCache(ctx, chatID)
	if err != nil {
		s.logger.Warn("Failed to read message cache, skipping reconciliation",
			zap.String("chat_id", chatID), zap.Error(err))
		return
	}
	if len(local) == 0 {
		return
	}

	tail, err := s.messageRepo.FetchTail(ctx, chatID, s.tailSize)
	if err != nil {
		s.logger.Warn("Failed to fetch persisted tail, skipping reconciliation",
			zap.String("chat_id", chatID), zap.Error(err))
		return
	}

	claimed := make(map[int]bool, len(tail))
	changed := false

	// Tail-anchored greedy pairing: persisted newest first, each claiming the
	// newest unclaimed local message of the same role. Rows with no same-role
	// candidate stay unresolved; partial success is acceptable.
	for i := len(tail) - 1; i >= 0; i-- {
		persisted := tail[i]
		for j := len(local) - 1; j >= 0; j-- {
			if claimed[j] || local[j].Role != persisted.Role {
				continue
			}
			claimed[j] = true
			if local[j].ID != persisted.ID {
				local[j].ID = persisted.ID
				local[j].CreatedAt = persisted.CreatedAt
				changed = true
			}
			break
		}
	}

	if !changed {
		return
	}

	if err := s.cache.WriteCache(ctx, chatID, local); err != nil {
		s.logger.Warn("Failed to write back reconciled messages",
			zap.String("chat_id", chatID), zap.Error(err))
		return
	}
	events.PublishMessageHistoryEvent(chatID, local)
}
