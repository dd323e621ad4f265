package integrations

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/parleychat/parley/internal/domain/entities"
	"github.com/parleychat/parley/internal/domain/interfaces"

	"go.uber.org/zap"
)

// StreamClient submits prompts to the model gateway and decodes its SSE
// response stream into canonical message parts.
type StreamClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewStreamClient(baseURL, apiKey string, logger *zap.Logger) (*StreamClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL cannot be empty")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey cannot be empty")
	}
	return &StreamClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 600 * time.Second},
		logger:     logger,
	}, nil
}

// convertHistory flattens prior messages into the gateway request format.
func convertHistory(messages []*entities.Message) []map[string]any {
	apiMessages := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		apiMsg := map[string]any{
			"role":    msg.Role,
			"content": msg.Content,
		}
		if msg.Role == entities.RoleTool && msg.ToolCallID != "" {
			apiMsg["tool_call_id"] = msg.ToolCallID
		}
		apiMessages = append(apiMessages, apiMsg)
	}
	return apiMessages
}

// Submit posts the prompt and returns a channel of stream events. Parts are
// delivered in arrival order; the channel closes after the finish event, a
// transport error, or context cancellation. Each submission is independent:
// canceling one stream has no effect on any other.
func (c *StreamClient) Submit(ctx context.Context, prompt, modelID string, submitCtx interfaces.SubmitContext) (<-chan entities.StreamEvent, error) {
	if ctx.Err() == context.Canceled {
		return nil, fmt.Errorf("operation canceled by user")
	}

	reqBody := map[string]any{
		"model":    modelID,
		"prompt":   prompt,
		"chat_id":  submitCtx.ChatID,
		"group_id": submitCtx.GroupID,
		"messages": convertHistory(submitCtx.History),
		"stream":   true,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit prompt: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("model gateway returned status %d", resp.StatusCode)
	}

	out := make(chan entities.StreamEvent)
	go c.readStream(ctx, resp, modelID, submitCtx, out)
	return out, nil
}

func (c *StreamClient) readStream(ctx context.Context, resp *http.Response, modelID string, submitCtx interfaces.SubmitContext, out chan<- entities.StreamEvent) {
	defer close(out)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			out <- entities.StreamEvent{Finish: &entities.StreamFinish{
				ChatID:  submitCtx.ChatID,
				GroupID: submitCtx.GroupID,
				ModelID: modelID,
			}}
			return
		}

		if toolMsg, ok := decodeToolResult([]byte(data)); ok {
			out <- entities.StreamEvent{ToolResult: toolMsg}
			continue
		}

		if finish, ok := decodeFinish([]byte(data)); ok {
			finish.ModelID = modelID
			if finish.ChatID == "" {
				finish.ChatID = submitCtx.ChatID
			}
			if finish.GroupID == "" {
				finish.GroupID = submitCtx.GroupID
			}
			out <- entities.StreamEvent{Finish: finish}
			return
		}

		part, err := DecodePart([]byte(data))
		if err != nil {
			c.logger.Warn("Rejected stream part", zap.String("model_id", modelID), zap.Error(err))
			out <- entities.StreamEvent{Err: err}
			continue
		}
		out <- entities.StreamEvent{Part: &part}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		out <- entities.StreamEvent{Err: fmt.Errorf("stream read failed: %w", err)}
	}
}

// decodeToolResult recognizes completed results arriving from the tool
// execution stream as tool-role records rather than invocation parts. The
// merge folds them onto the matching call at finalization.
func decodeToolResult(raw []byte) (*entities.Message, bool) {
	var wp wirePart
	if err := json.Unmarshal(raw, &wp); err != nil || wp.Type != wireTypeToolResult {
		return nil, false
	}
	callID := wp.ToolCallID
	if callID == "" {
		callID = wp.CallID
	}
	if callID == "" {
		return nil, false
	}
	return &entities.Message{
		Role:       entities.RoleTool,
		ToolCallID: callID,
		Content:    wp.Result,
	}, true
}

// decodeFinish recognizes the terminal finish record, which carries the
// conversation context needed to persist the assembled message.
func decodeFinish(raw []byte) (*entities.StreamFinish, bool) {
	var wp wirePart
	if err := json.Unmarshal(raw, &wp); err != nil || wp.Type != wireTypeFinish {
		return nil, false
	}
	return &entities.StreamFinish{ChatID: wp.ChatID, GroupID: wp.GroupID}, true
}

var _ interfaces.ModelStream = (*StreamClient)(nil)
