package interfaces

import (
	"context"

	"github.com/parleychat/parley/internal/domain/entities"
)

// MessageCache is best-effort durable scratch space for the optimistic
// message list. A missing entry degrades to an empty list, never an error.
type MessageCache interface {
	ReadCache(ctx context.Context, chatID string) ([]*entities.Message, error)
	WriteCache(ctx context.Context, chatID string, messages []*entities.Message) error
}
