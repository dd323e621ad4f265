package entities

// ModelResponse is one model's answer (or pending answer) within a turn.
type ModelResponse struct {
	ModelID   string  `json:"model_id"`
	Message   Message `json:"message"`
	IsLoading bool    `json:"is_loading"`
}

// Turn is one user prompt plus the aligned set of per-model responses.
// Responses keep insertion order, which is the submission order across the
// selected models, not model-name order.
type Turn struct {
	UserMessage Message         `json:"user_message"`
	Responses   []ModelResponse `json:"responses"`
}

// Response returns the response for modelID, or nil if the turn has none.
func (t *Turn) Response(modelID string) *ModelResponse {
	for i := range t.Responses {
		if t.Responses[i].ModelID == modelID {
			return &t.Responses[i]
		}
	}
	return nil
}
