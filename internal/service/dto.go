package service

import (
	"encoding/json"
	"time"

	"github.com/fegerV/Stogram-sub001/internal/domain"
)

// Event is the wire envelope for both directions: a type tag plus the typed
// payload. Inbound envelopes are dispatched by the gateway; outbound ones are
// published to per-user delivery channels.
type Event struct {
	Type domain.EventType `json:"type"`
	Data json.RawMessage  `json:"data,omitempty"`
}

func NewEvent(t domain.EventType, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{Type: t, Data: data}, nil
}

// Requests from clients.
type SendMessageRequest struct {
	ChatID       int                `json:"chat_id"`
	Content      string             `json:"content"`
	Type         domain.MessageType `json:"type"`
	ReplyToID    *int               `json:"reply_to_id,omitempty"`
	ScheduledFor *time.Time         `json:"scheduled_for,omitempty"`
}

type EditMessageRequest struct {
	MessageID int    `json:"message_id"`
	Content   string `json:"content"`
}

type DeleteMessageRequest struct {
	MessageID int `json:"message_id"`
}

type TypingRequest struct {
	ChatID   int  `json:"chat_id"`
	IsTyping bool `json:"is_typing"`
}

type ReadMessageRequest struct {
	MessageID int `json:"message_id"`
}

type InitiateCallRequest struct {
	ChatID int             `json:"chat_id"`
	Type   domain.CallType `json:"type"`
}

type CallActionRequest struct {
	CallID int `json:"call_id"`
}

// RTCSignal carries an opaque negotiation payload from one connection to one
// named target. The gateway never inspects Payload.
type RTCSignal struct {
	CallID  int             `json:"call_id"`
	To      int             `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

// Events for clients.
type UserStatusPayload struct {
	UserID   int                   `json:"user_id"`
	Status   domain.PresenceStatus `json:"status"`
	LastSeen time.Time             `json:"last_seen"`
}

type UserTypingPayload struct {
	UserID   int  `json:"user_id"`
	ChatID   int  `json:"chat_id"`
	IsTyping bool `json:"is_typing"`
}

type MessageReadPayload struct {
	MessageID int `json:"message_id"`
	UserID    int `json:"user_id"`
}

type MessageDeletedPayload struct {
	MessageID int `json:"message_id"`
	ChatID    int `json:"chat_id"`
}

type CallActionPayload struct {
	CallID int `json:"call_id"`
	UserID int `json:"user_id"`
}

type RTCSignalPayload struct {
	CallID  int             `json:"call_id"`
	From    int             `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
