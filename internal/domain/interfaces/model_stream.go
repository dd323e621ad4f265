package interfaces

import (
	"context"

	"github.com/parleychat/parley/internal/domain/entities"
)

// SubmitContext carries the conversation context for one model submission.
type SubmitContext struct {
	ChatID  string
	GroupID string
	History []*entities.Message
}

// ModelStream submits a prompt to one model and returns its response stream.
// Parts arrive in order; the channel closes after the finish event or an
// error event. Canceling ctx stops the stream without affecting other models.
type ModelStream interface {
	Submit(ctx context.Context, prompt, modelID string, submitCtx SubmitContext) (<-chan entities.StreamEvent, error)
}
