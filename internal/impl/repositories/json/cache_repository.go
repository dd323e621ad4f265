package repositories_json

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/parleychat/parley/internal/domain/entities"
	"github.com/parleychat/parley/internal/domain/errs"
	"github.com/parleychat/parley/internal/domain/interfaces"
)

// JsonCacheRepository is the local optimistic scratch space: one JSON file of
// messages per chat under the data directory. A missing file reads as an
// empty list.
type JsonCacheRepository struct {
	dataDir string
}

func NewJSONCacheRepository(dataDir string) (*JsonCacheRepository, error) {
	dir := filepath.Join(dataDir, ".parley", "cache")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.InternalErrorf("failed to create cache directory: %v", err)
	}
	return &JsonCacheRepository{dataDir: dir}, nil
}

func (r *JsonCacheRepository) path(chatID string) string {
	return filepath.Join(r.dataDir, chatID+".json")
}

func (r *JsonCacheRepository) ReadCache(ctx context.Context, chatID string) ([]*entities.Message, error) {
	if chatID == "" {
		return nil, errs.ValidationErrorf("chat ID is required")
	}

	data, err := os.ReadFile(r.path(chatID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.InternalErrorf("failed to read message cache: %v", err)
	}

	var messages []*entities.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, errs.InternalErrorf("failed to unmarshal message cache: %v", err)
	}

	for _, message := range messages {
		if message.ID == "" {
			return nil, errs.InternalErrorf("cached message is missing an ID")
		}
	}

	return messages, nil
}

func (r *JsonCacheRepository) WriteCache(ctx context.Context, chatID string, messages []*entities.Message) error {
	if chatID == "" {
		return errs.ValidationErrorf("chat ID is required")
	}

	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return errs.InternalErrorf("failed to marshal message cache: %v", err)
	}

	if err := os.WriteFile(r.path(chatID), data, 0644); err != nil {
		return errs.InternalErrorf("failed to write message cache: %v", err)
	}

	return nil
}

var _ interfaces.MessageCache = (*JsonCacheRepository)(nil)
