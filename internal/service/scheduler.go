package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/fegerV/Stogram-sub001/internal/domain"
)

// SchedulerService promotes due send-later messages: flip is_sent, reload the
// full row, fan it out exactly as SendMessage would. One failing message is
// logged and skipped; the sweep carries on.
type SchedulerService struct {
	msgRepo  MessageRepoIn
	relay    *RelayService
	webhooks WebhookEmitterIn
	interval time.Duration
}

func NewSchedulerService(msgRepo MessageRepoIn, relay *RelayService, webhooks WebhookEmitterIn, interval time.Duration) *SchedulerService {
	return &SchedulerService{
		msgRepo:  msgRepo,
		relay:    relay,
		webhooks: webhooks,
		interval: interval,
	}
}

func (ss *SchedulerService) Run(ctx context.Context) {
	ticker := time.NewTicker(ss.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ss.Sweep(ctx)
		}
	}
}

func (ss *SchedulerService) Sweep(ctx context.Context) {
	dueIDs, err := ss.msgRepo.GetDueScheduled(ctx, time.Now())
	if err != nil {
		slog.Error("Failed to query due messages", "error", err)
		return
	}

	for _, id := range dueIDs {
		if err := ss.promote(ctx, id); err != nil {
			slog.Error("Failed to promote scheduled message", "message_id", id, "error", err)
		}
	}
}

func (ss *SchedulerService) promote(ctx context.Context, messageID int) error {
	// Conditional claim: a message already flipped by an earlier sweep (or a
	// racing instance on the same store) is skipped, never re-sent.
	claimed, err := ss.msgRepo.ClaimScheduled(ctx, messageID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	msg, err := ss.msgRepo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}

	ss.relay.Deliver(ctx, msg)
	ss.webhooks.Emit(domain.WebhookScheduledSent, msg)

	slog.Info("Scheduled message delivered", "message_id", messageID, "chat_id", msg.ChatID)
	return nil
}
