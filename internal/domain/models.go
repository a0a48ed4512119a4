package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Message struct {
	ID           int         `json:"id" db:"id"`
	ChatID       int         `json:"chat_id" db:"chat_id"`
	SenderID     int         `json:"sender_id" db:"sender_id"`
	Content      string      `json:"content" db:"content"`
	Type         MessageType `json:"type" db:"type"`
	ReplyToID    *int        `json:"reply_to_id,omitempty" db:"reply_to_id"`
	ScheduledFor *time.Time  `json:"scheduled_for,omitempty" db:"scheduled_for"`
	IsSent       bool        `json:"is_sent" db:"is_sent"`
	IsDeleted    bool        `json:"is_deleted" db:"is_deleted"`
	IsEdited     bool        `json:"is_edited" db:"is_edited"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

// Scheduled reports whether the message was created as a send-later message.
// Such messages stay invisible to delivery until the dispatcher promotes them.
func (m *Message) Scheduled(now time.Time) bool {
	return m.ScheduledFor != nil && m.ScheduledFor.After(now)
}

type ChatMember struct {
	ChatID int        `json:"chat_id" db:"chat_id"`
	UserID int        `json:"user_id" db:"user_id"`
	Role   MemberRole `json:"role" db:"role"`
}

type Call struct {
	ID          int        `json:"id" db:"id"`
	ChatID      int        `json:"chat_id" db:"chat_id"`
	InitiatorID int        `json:"initiator_id" db:"initiator_id"`
	Type        CallType   `json:"type" db:"type"`
	Status      CallStatus `json:"status" db:"status"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

type CallParticipant struct {
	CallID   int        `json:"call_id" db:"call_id"`
	UserID   int        `json:"user_id" db:"user_id"`
	JoinedAt time.Time  `json:"joined_at" db:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty" db:"left_at"`
}

type Webhook struct {
	ID       int            `json:"id" db:"id"`
	BotID    int            `json:"bot_id" db:"bot_id"`
	URL      string         `json:"url" db:"url"`
	Secret   string         `json:"-" db:"secret"`
	Events   pq.StringArray `json:"events" db:"events"`
	IsActive bool           `json:"is_active" db:"is_active"`
}

// WebhookDelivery is the append-only audit record. Exactly one row is written
// per delivery attempt, success or failure.
type WebhookDelivery struct {
	ID         uuid.UUID `json:"id" db:"id"`
	WebhookID  int       `json:"webhook_id" db:"webhook_id"`
	Event      string    `json:"event" db:"event"`
	Payload    []byte    `json:"payload" db:"payload"`
	StatusCode *int      `json:"status_code,omitempty" db:"status_code"`
	Response   string    `json:"response" db:"response"`
	Attempts   int       `json:"attempts" db:"attempts"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type (
	MessageType string

	MemberRole string

	CallType string

	CallStatus string

	PresenceStatus string

	EventType string
)

const (
	TextMessage    MessageType = "TEXT"
	ImageMessage   MessageType = "IMAGE"
	VideoMessage   MessageType = "VIDEO"
	AudioMessage   MessageType = "AUDIO"
	FileMessage    MessageType = "FILE"
	VoiceMessage   MessageType = "VOICE"
	StickerMessage MessageType = "STICKER"
	GifMessage     MessageType = "GIF"

	RoleOwner  MemberRole = "OWNER"
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"

	AudioCall CallType = "AUDIO"
	VideoCall CallType = "VIDEO"

	CallCalling  CallStatus = "CALLING"
	CallActive   CallStatus = "ACTIVE"
	CallDeclined CallStatus = "DECLINED"
	CallEnded    CallStatus = "ENDED"

	Online  PresenceStatus = "ONLINE"
	Offline PresenceStatus = "OFFLINE"
)

// Inbound events. The gateway matches these exhaustively; an unknown type is
// answered with an error event, never silently dropped.
const (
	SendMessageEvent   EventType = "message:send"
	EditMessageEvent   EventType = "message:edit"
	DeleteMessageEvent EventType = "message:delete"
	TypingEvent        EventType = "message:typing"
	InitiateCallEvent  EventType = "call:initiate"
	AnswerCallEvent    EventType = "call:answer"
	RejectCallEvent    EventType = "call:reject"
	EndCallEvent       EventType = "call:end"
	RTCOfferEvent      EventType = "webrtc:offer"
	RTCAnswerEvent     EventType = "webrtc:answer"
	RTCCandidateEvent  EventType = "webrtc:ice-candidate"
)

// Outbound events. MessageReadEvent travels in both directions.
const (
	NewMessageEvent     EventType = "message:new"
	MessageEditedEvent  EventType = "message:edited"
	MessageDeletedEvent EventType = "message:deleted"
	MessageReadEvent    EventType = "message:read"
	UserTypingEvent     EventType = "user:typing"
	IncomingCallEvent   EventType = "call:incoming"
	CallAnsweredEvent   EventType = "call:answered"
	CallRejectedEvent   EventType = "call:rejected"
	CallEndedEvent      EventType = "call:ended"
	UserStatusEvent     EventType = "user:status"
	ErrorEvent          EventType = "error"
)

// Webhook event names.
const (
	WebhookMessageCreated = "message.created"
	WebhookScheduledSent  = "message.scheduled.sent"
	WebhookCallStarted    = "call.started"
	WebhookCallEnded      = "call.ended"
)

func (t MessageType) Valid() bool {
	switch t {
	case TextMessage, ImageMessage, VideoMessage, AudioMessage,
		FileMessage, VoiceMessage, StickerMessage, GifMessage:
		return true
	}
	return false
}

func (t CallType) Valid() bool {
	return t == AudioCall || t == VideoCall
}
