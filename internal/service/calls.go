package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fegerV/Stogram-sub001/internal/domain"
)

// allowedTransitions closes the call lifecycle: CALLING->ACTIVE on answer,
// CALLING->DECLINED on reject, any non-terminal state ->ENDED. DECLINED and
// ENDED are terminal.
var allowedTransitions = map[domain.CallStatus]map[domain.CallStatus]struct{}{
	domain.CallCalling: {
		domain.CallActive:   {},
		domain.CallDeclined: {},
		domain.CallEnded:    {},
	},
	domain.CallActive: {
		domain.CallEnded: {},
	},
	domain.CallDeclined: {},
	domain.CallEnded:    {},
}

// CallService drives the call lifecycle and relays opaque WebRTC negotiation
// payloads point-to-point. Lifecycle operations on unknown calls or invalid
// transitions log and no-op; they never take the connection down.
type CallService struct {
	calls    CallRepoIn
	members  MembershipRepoIn
	hub      *Hub
	bus      PublisherIn
	webhooks WebhookEmitterIn
	relay    *RelayService
}

func NewCallService(calls CallRepoIn, members MembershipRepoIn, hub *Hub, bus PublisherIn, webhooks WebhookEmitterIn, relay *RelayService) *CallService {
	return &CallService{
		calls:    calls,
		members:  members,
		hub:      hub,
		bus:      bus,
		webhooks: webhooks,
		relay:    relay,
	}
}

func (cs *CallService) Initiate(ctx context.Context, initiatorID int, req *InitiateCallRequest) (*domain.Call, error) {
	if !req.Type.Valid() {
		return nil, domain.ErrInvalidRequest.WithMessage(fmt.Sprintf("Unknown call type %q", req.Type))
	}

	ok, err := cs.members.IsMember(ctx, req.ChatID, initiatorID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, domain.ErrNotAMember
	}

	call := &domain.Call{
		ChatID:      req.ChatID,
		InitiatorID: initiatorID,
		Type:        req.Type,
		Status:      domain.CallCalling,
		StartedAt:   time.Now(),
	}

	id, err := cs.calls.NewCall(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("persist call: %w", err)
	}
	call.ID = id

	if err := cs.calls.AddParticipant(ctx, id, initiatorID); err != nil {
		slog.Error("Failed to record call initiator", "call_id", id, "error", err)
	}

	cs.relay.fanOut(ctx, call.ChatID, domain.IncomingCallEvent, call, 0)
	cs.webhooks.Emit(domain.WebhookCallStarted, call)
	return call, nil
}

func (cs *CallService) Answer(ctx context.Context, callID, userID int) error {
	call, ok := cs.transition(ctx, callID, domain.CallActive, nil)
	if !ok {
		return nil
	}

	if err := cs.calls.AddParticipant(ctx, callID, userID); err != nil {
		slog.Error("Failed to record call participant", "call_id", callID, "user_id", userID, "error", err)
	}

	cs.relay.fanOut(ctx, call.ChatID, domain.CallAnsweredEvent, CallActionPayload{
		CallID: callID,
		UserID: userID,
	}, 0)
	return nil
}

func (cs *CallService) Reject(ctx context.Context, callID, userID int) error {
	now := time.Now()
	call, ok := cs.transition(ctx, callID, domain.CallDeclined, &now)
	if !ok {
		return nil
	}

	cs.relay.fanOut(ctx, call.ChatID, domain.CallRejectedEvent, CallActionPayload{
		CallID: callID,
		UserID: userID,
	}, 0)
	return nil
}

// End is callable by any party, not just the initiator.
func (cs *CallService) End(ctx context.Context, callID, userID int) error {
	now := time.Now()
	call, ok := cs.transition(ctx, callID, domain.CallEnded, &now)
	if !ok {
		return nil
	}

	if err := cs.calls.MarkParticipantLeft(ctx, callID, userID); err != nil {
		slog.Error("Failed to stamp participant leave", "call_id", callID, "user_id", userID, "error", err)
	}

	cs.relay.fanOut(ctx, call.ChatID, domain.CallEndedEvent, CallActionPayload{
		CallID: callID,
		UserID: userID,
	}, 0)
	cs.webhooks.Emit(domain.WebhookCallEnded, call)
	return nil
}

// transition applies one state-machine edge. Unknown call ids and disallowed
// edges log and report false without mutating anything; the conditional
// update keeps a concurrent transition from double-applying.
func (cs *CallService) transition(ctx context.Context, callID int, to domain.CallStatus, endedAt *time.Time) (*domain.Call, bool) {
	call, err := cs.calls.GetCall(ctx, callID)
	if err != nil {
		slog.Warn("Call not found", "call_id", callID, "to", to, "error", err)
		return nil, false
	}

	if _, ok := allowedTransitions[call.Status][to]; !ok {
		slog.Warn("Invalid call transition", "call_id", callID, "from", call.Status, "to", to)
		return nil, false
	}

	applied, err := cs.calls.UpdateCallStatus(ctx, callID, call.Status, to, endedAt)
	if err != nil {
		slog.Error("Failed to update call status", "call_id", callID, "to", to, "error", err)
		return nil, false
	}
	if !applied {
		slog.Warn("Call transition lost race", "call_id", callID, "from", call.Status, "to", to)
		return nil, false
	}

	call.Status = to
	call.EndedAt = endedAt
	return call, true
}

// RelaySignal forwards an opaque offer/answer/ICE payload to one named target
// connection. An unbound target drops the payload: the caller's own
// negotiation logic retries, not the gateway.
func (cs *CallService) RelaySignal(ctx context.Context, fromID int, t domain.EventType, sig *RTCSignal) error {
	if _, ok := cs.hub.Get(sig.To); !ok {
		slog.Debug("Signal target not bound, dropping", "call_id", sig.CallID, "from", fromID, "to", sig.To, "type", t)
		return nil
	}

	ev, err := NewEvent(t, RTCSignalPayload{
		CallID:  sig.CallID,
		From:    fromID,
		Payload: sig.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}

	if err := cs.bus.Publish(ctx, sig.To, ev); err != nil {
		slog.Error("Failed to relay signal", "call_id", sig.CallID, "from", fromID, "to", sig.To, "error", err)
	}
	return nil
}
