package interfaces

import (
	"context"
	"time"

	"github.com/parleychat/parley/internal/domain/entities"
)

// MessageRepository is the authoritative persisted store for conversation
// history. Persist assigns the durable id and timestamp; FetchTail returns
// the k most recent messages ordered oldest to newest.
type MessageRepository interface {
	PersistMessage(ctx context.Context, message *entities.Message) error
	FetchTail(ctx context.Context, chatID string, k int) ([]*entities.Message, error)
	ListMessages(ctx context.Context, chatID string) ([]*entities.Message, error)
	DeleteMessagesFrom(ctx context.Context, chatID string, from time.Time) error
}
