package events

import (
	"github.com/parleychat/parley/internal/domain/entities"

	"github.com/kelindar/event"
)

// Event types
const (
	PartEventType           uint32 = 1
	TurnsChangedEventType   uint32 = 2
	MessageHistoryEventType uint32 = 3
)

// PartEventData is published for every part observed on a model stream.
type PartEventData struct {
	ChatID  string
	ModelID string
	Part    entities.MessagePart
}

// TurnsChangedEventData signals that getTurns output for a chat may differ
// from the last recomputation (a task advanced, finished, or was stopped).
type TurnsChangedEventData struct {
	ChatID string
}

// MessageHistoryEventData is published after the persisted history of a chat
// changes (a finalized message was written or reconciliation rewrote ids).
type MessageHistoryEventData struct {
	ChatID   string
	Messages []*entities.Message
}

// Type implements the Event interface
func (p PartEventData) Type() uint32 {
	return PartEventType
}

// Type implements the Event interface
func (t TurnsChangedEventData) Type() uint32 {
	return TurnsChangedEventType
}

// Type implements the Event interface
func (m MessageHistoryEventData) Type() uint32 {
	return MessageHistoryEventType
}

// PublishPartEvent publishes a stream part arrival
func PublishPartEvent(chatID, modelID string, part entities.MessagePart) {
	event.Emit(PartEventData{ChatID: chatID, ModelID: modelID, Part: part})
}

// SubscribeToPartEvents subscribes to stream part arrivals
func SubscribeToPartEvents(handler func(data PartEventData)) func() {
	return event.On(handler)
}

// PublishTurnsChangedEvent signals turn recomputation is due for a chat
func PublishTurnsChangedEvent(chatID string) {
	event.Emit(TurnsChangedEventData{ChatID: chatID})
}

// SubscribeToTurnsChangedEvents subscribes to turn change signals
func SubscribeToTurnsChangedEvents(handler func(data TurnsChangedEventData)) func() {
	return event.On(handler)
}

// PublishMessageHistoryEvent publishes a persisted history change
func PublishMessageHistoryEvent(chatID string, messages []*entities.Message) {
	event.Emit(MessageHistoryEventData{ChatID: chatID, Messages: messages})
}

// SubscribeToMessageHistoryEvents subscribes to persisted history changes
func SubscribeToMessageHistoryEvents(handler func(data MessageHistoryEventData)) func() {
	return event.On(handler)
}
