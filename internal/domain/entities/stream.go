package entities

// StreamEvent is one item observed on a model's response stream: a part, a
// tool-role result record from the tool execution stream, a terminal finish
// record, or a transport error. Exactly one field is set.
type StreamEvent struct {
	Part       *MessagePart
	ToolResult *Message
	Finish     *StreamFinish
	Err        error
}

// StreamFinish terminates a stream and carries enough context to persist the
// assembled message.
type StreamFinish struct {
	ChatID  string
	GroupID string
	ModelID string
}
