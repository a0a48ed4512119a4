package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fegerV/Stogram-sub001/internal/domain"
	"go.uber.org/multierr"
)

// RelayService validates, persists and fans chat traffic out to the fan-out
// set: every chat member with a live binding, resolved per event. There is no
// offline queue; unbound members simply receive nothing.
type RelayService struct {
	msgRepo  MessageRepoIn
	members  MembershipRepoIn
	hub      *Hub
	bus      PublisherIn
	webhooks WebhookEmitterIn
}

func NewRelayService(msgRepo MessageRepoIn, members MembershipRepoIn, hub *Hub, bus PublisherIn, webhooks WebhookEmitterIn) *RelayService {
	return &RelayService{
		msgRepo:  msgRepo,
		members:  members,
		hub:      hub,
		bus:      bus,
		webhooks: webhooks,
	}
}

func (rs *RelayService) SendMessage(ctx context.Context, senderID int, req *SendMessageRequest) (*domain.Message, error) {
	if !req.Type.Valid() {
		return nil, domain.ErrInvalidRequest.WithMessage(fmt.Sprintf("Unknown message type %q", req.Type))
	}

	ok, err := rs.members.IsMember(ctx, req.ChatID, senderID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, domain.ErrNotAMember
	}

	if req.ReplyToID != nil {
		reply, err := rs.msgRepo.GetMessage(ctx, *req.ReplyToID)
		if err != nil {
			return nil, domain.ErrNotFound.WithMessage("Reply target not found")
		}
		if reply.ChatID != req.ChatID {
			return nil, domain.ErrInvalidRequest.WithMessage("Reply target is not in this chat")
		}
	}

	now := time.Now()
	msg := &domain.Message{
		ChatID:       req.ChatID,
		SenderID:     senderID,
		Content:      req.Content,
		Type:         req.Type,
		ReplyToID:    req.ReplyToID,
		ScheduledFor: req.ScheduledFor,
		IsSent:       true,
	}
	if msg.Scheduled(now) {
		msg.IsSent = false
	}

	id, err := rs.msgRepo.NewMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	if err := rs.msgRepo.TouchChatActivity(ctx, req.ChatID); err != nil {
		slog.Error("Failed to stamp chat activity", "chat_id", req.ChatID, "error", err)
	}

	full, err := rs.msgRepo.GetMessage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload message %d: %w", id, err)
	}

	// Scheduled messages stay invisible until the dispatcher promotes them.
	if full.IsSent {
		rs.fanOut(ctx, full.ChatID, domain.NewMessageEvent, full, 0)
		rs.webhooks.Emit(domain.WebhookMessageCreated, full)
	}
	return full, nil
}

// Deliver fans an already-persisted message out as SendMessage would. Used by
// the scheduled dispatcher after it promotes a due message.
func (rs *RelayService) Deliver(ctx context.Context, msg *domain.Message) {
	rs.fanOut(ctx, msg.ChatID, domain.NewMessageEvent, msg, 0)
}

func (rs *RelayService) EditMessage(ctx context.Context, userID int, req *EditMessageRequest) error {
	msg, err := rs.msgRepo.GetMessage(ctx, req.MessageID)
	if err != nil {
		return domain.ErrNotFound.WithMessage("Message not found")
	}
	if msg.SenderID != userID {
		return domain.ErrForbidden.WithMessage("Only the sender may edit a message")
	}
	if msg.IsDeleted {
		return domain.ErrNotFound.WithMessage("Message not found")
	}

	if err := rs.msgRepo.MarkEdited(ctx, req.MessageID, req.Content); err != nil {
		return fmt.Errorf("edit message %d: %w", req.MessageID, err)
	}

	msg.Content = req.Content
	msg.IsEdited = true
	rs.fanOut(ctx, msg.ChatID, domain.MessageEditedEvent, msg, 0)
	return nil
}

func (rs *RelayService) DeleteMessage(ctx context.Context, userID, messageID int) error {
	msg, err := rs.msgRepo.GetMessage(ctx, messageID)
	if err != nil {
		return domain.ErrNotFound.WithMessage("Message not found")
	}
	if msg.SenderID != userID {
		return domain.ErrForbidden.WithMessage("Only the sender may delete a message")
	}

	if err := rs.msgRepo.MarkDeleted(ctx, messageID); err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}

	rs.fanOut(ctx, msg.ChatID, domain.MessageDeletedEvent, MessageDeletedPayload{
		MessageID: messageID,
		ChatID:    msg.ChatID,
	}, 0)
	return nil
}

// Typing is broadcast-only: no persistence, sender excluded.
func (rs *RelayService) Typing(ctx context.Context, userID int, req *TypingRequest) error {
	ok, err := rs.members.IsMember(ctx, req.ChatID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return domain.ErrNotAMember
	}

	rs.fanOut(ctx, req.ChatID, domain.UserTypingEvent, UserTypingPayload{
		UserID:   userID,
		ChatID:   req.ChatID,
		IsTyping: req.IsTyping,
	}, userID)
	return nil
}

// MarkRead broadcasts a read marker to the whole fan-out set, actor included.
// Per-user read-state bookkeeping lives in the CRUD layer, not here.
func (rs *RelayService) MarkRead(ctx context.Context, userID, messageID int) error {
	msg, err := rs.msgRepo.GetMessage(ctx, messageID)
	if err != nil {
		return domain.ErrNotFound.WithMessage("Message not found")
	}

	rs.fanOut(ctx, msg.ChatID, domain.MessageReadEvent, MessageReadPayload{
		MessageID: messageID,
		UserID:    userID,
	}, 0)
	return nil
}

// fanOut publishes one event to every bound member of the chat. A failure for
// one target never aborts delivery to the rest; the combined error is logged
// and swallowed. excludeID 0 excludes nobody.
func (rs *RelayService) fanOut(ctx context.Context, chatID int, t domain.EventType, payload any, excludeID int) {
	memberIDs, err := rs.members.GetChatMemberIDs(ctx, chatID)
	if err != nil {
		slog.Error("Failed to resolve fan-out set", "chat_id", chatID, "type", t, "error", err)
		return
	}

	ev, err := NewEvent(t, payload)
	if err != nil {
		slog.Error("Failed to encode event", "chat_id", chatID, "type", t, "error", err)
		return
	}

	var errs error
	for _, memberID := range memberIDs {
		if memberID == excludeID {
			continue
		}
		if _, ok := rs.hub.Get(memberID); !ok {
			continue
		}
		if err := rs.bus.Publish(ctx, memberID, ev); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("user %d: %w", memberID, err))
		}
	}

	if errs != nil {
		slog.Error("Partial fan-out failure", "chat_id", chatID, "type", t, "error", errs)
	}
}
