package service

import (
	"context"
	"time"

	"github.com/fegerV/Stogram-sub001/internal/domain"
	"github.com/redis/go-redis/v9"
)

type MessageRepoIn interface {
	NewMessage(ctx context.Context, msg *domain.Message) (int, error)
	GetMessage(ctx context.Context, messageID int) (*domain.Message, error)
	MarkEdited(ctx context.Context, messageID int, content string) error
	MarkDeleted(ctx context.Context, messageID int) error
	TouchChatActivity(ctx context.Context, chatID int) error

	GetDueScheduled(ctx context.Context, now time.Time) ([]int, error)
	ClaimScheduled(ctx context.Context, messageID int) (bool, error)
}

type MembershipRepoIn interface {
	IsMember(ctx context.Context, chatID, userID int) (bool, error)
	GetChatMemberIDs(ctx context.Context, chatID int) ([]int, error)
	GetChatPeerIDs(ctx context.Context, userID int) ([]int, error)
}

type CallRepoIn interface {
	NewCall(ctx context.Context, call *domain.Call) (int, error)
	GetCall(ctx context.Context, callID int) (*domain.Call, error)
	UpdateCallStatus(ctx context.Context, callID int, from, to domain.CallStatus, endedAt *time.Time) (bool, error)
	AddParticipant(ctx context.Context, callID, userID int) error
	MarkParticipantLeft(ctx context.Context, callID, userID int) error
}

type WebhookRepoIn interface {
	GetActiveForEvent(ctx context.Context, event string) ([]domain.Webhook, error)
	RecordDelivery(ctx context.Context, d *domain.WebhookDelivery) error
}

// WebhookEmitterIn decouples event producers from webhook delivery. Emit
// never blocks the producing handler and never surfaces a delivery failure.
type WebhookEmitterIn interface {
	Emit(event string, payload any)
}

// PublisherIn is the delivery side of the presence bus: events addressed by
// user id, consumed by whichever instance holds the binding.
type PublisherIn interface {
	Publish(ctx context.Context, userID int, event *Event) error
}

type PresenceRepoIn interface {
	PublisherIn

	Subscribe(ctx context.Context, userID int) *redis.PubSub
	SetOnline(ctx context.Context, userID int) error
	SetOffline(ctx context.Context, userID int, lastSeen time.Time) error
}
