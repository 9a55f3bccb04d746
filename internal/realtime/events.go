package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
)

// Client-to-server event names.
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventMessageDelivered  = "message_delivered"
	EventMessageRead       = "message_read"
)

// Server-to-client event names.
const (
	EventNewMessage          = "new_message"
	EventConversationUpdated = "conversation_updated"
	EventUserTyping          = "user_typing"
	EventError               = "error"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomPayload addresses a conversation room.
type RoomPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

// SendMessagePayload is the live-channel send request. TempID is the
// client's optimistic id, echoed back in the broadcast.
type SendMessagePayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	MessageText    string    `json:"messageText"`
	TempID         string    `json:"tempId,omitempty"`
}

// AckPayload acknowledges receipt or reading of a message.
type AckPayload struct {
	MessageID uuid.UUID `json:"messageId"`
}

// NewMessagePayload is broadcast to every room member, sender included.
type NewMessagePayload struct {
	ID             uuid.UUID           `json:"id"`
	ConversationID uuid.UUID           `json:"conversationId"`
	Text           string              `json:"text"`
	Sender         enums.SenderRole    `json:"sender"`
	SenderID       uuid.UUID           `json:"senderId"`
	Status         enums.MessageStatus `json:"status"`
	Timestamp      time.Time           `json:"timestamp"`
	TempID         string              `json:"tempId,omitempty"`
}

// ConversationUpdatedPayload nudges clients to refresh conversation state.
type ConversationUpdatedPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

// UserTypingPayload reports ephemeral typing state.
type UserTypingPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
	Typing         bool      `json:"typing"`
}

// ErrorPayload reports a per-event failure back to the offending client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
