package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fegerV/Stogram-sub001/internal/domain"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024

	teardownTimeout = 5 * time.Second
)

// GatewayService owns the connection lifecycle: bind, presence broadcast,
// inbound event dispatch, teardown. One HandleConn call per connection.
type GatewayService struct {
	hub      *Hub
	presence PresenceRepoIn
	members  MembershipRepoIn
	relay    *RelayService
	calls    *CallService
}

func NewGatewayService(hub *Hub, presence PresenceRepoIn, members MembershipRepoIn, relay *RelayService, calls *CallService) *GatewayService {
	return &GatewayService{
		hub:      hub,
		presence: presence,
		members:  members,
		relay:    relay,
		calls:    calls,
	}
}

// HandleConn runs until the connection drops. The caller has already
// authenticated the handshake; no state is touched before this point.
func (g *GatewayService) HandleConn(ctx context.Context, client *Client) {
	if prev := g.hub.Bind(client.id, client); prev != nil {
		// The earlier connection is superseded silently: close it without
		// any notification. Its teardown cannot evict the new binding
		// because Unbind is conditional on the client pointer.
		prev.conn.Close()
	}

	if err := g.presence.SetOnline(ctx, client.id); err != nil {
		slog.Error("Failed to mark user online", "user_id", client.id, "error", err)
	}
	g.broadcastStatus(ctx, client.id, domain.Online)

	pubSub := g.presence.Subscribe(ctx, client.id)
	client.outbound = pubSub.Channel()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := g.presence.SetOnline(ctx, client.id); err != nil {
			slog.Error("Failed to refresh presence", "user_id", client.id, "error", err)
		}
		return nil
	})

	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()

		// Idempotent: a superseded or already-removed binding broadcasts
		// nothing and the OFFLINE transition happens at most once.
		if g.hub.Unbind(client.id, client) {
			if err := g.presence.SetOffline(tctx, client.id, time.Now()); err != nil {
				slog.Error("Failed to mark user offline", "user_id", client.id, "error", err)
			}
			g.broadcastStatus(tctx, client.id, domain.Offline)
		}
		client.conn.Close()
		pubSub.Close()
	}()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return g.read(ctx, client)
	})

	eg.Go(func() error {
		return g.write(ctx, client)
	})

	if err := eg.Wait(); err != nil && err != context.Canceled {
		slog.Error("Connection closed with error", "user_id", client.id, "error", err)
	}
}

func (g *GatewayService) read(ctx context.Context, client *Client) error {
	client.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			var ev Event
			if err := client.conn.ReadJSON(&ev); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
					websocket.CloseNoStatusReceived) {
					slog.Error("Websocket close error", "user_id", client.id, "error", err)
				}
				return context.Canceled
			}

			g.dispatch(ctx, client, &ev)
		}
	}
}

// dispatch routes one inbound envelope. Handler failures reach only the
// acting connection as an error event; nothing here may kill the read loop.
func (g *GatewayService) dispatch(ctx context.Context, client *Client, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in event handler", "user_id", client.id, "type", ev.Type, "panic", r)
			g.sendError(ctx, client.id, domain.ErrInternalServerError)
		}
	}()

	var err error

	switch ev.Type {
	case domain.SendMessageEvent:
		var req SendMessageRequest
		if err = unmarshal(ev.Data, &req); err == nil {
			_, err = g.relay.SendMessage(ctx, client.id, &req)
		}

	case domain.EditMessageEvent:
		var req EditMessageRequest
		if err = unmarshal(ev.Data, &req); err == nil {
			err = g.relay.EditMessage(ctx, client.id, &req)
		}

	case domain.DeleteMessageEvent:
		var req DeleteMessageRequest
		if err = unmarshal(ev.Data, &req); err == nil {
			err = g.relay.DeleteMessage(ctx, client.id, req.MessageID)
		}

	case domain.TypingEvent:
		var req TypingRequest
		if err = unmarshal(ev.Data, &req); err == nil {
			err = g.relay.Typing(ctx, client.id, &req)
		}

	case domain.MessageReadEvent:
		var req ReadMessageRequest
		if err = unmarshal(ev.Data, &req); err == nil {
			err = g.relay.MarkRead(ctx, client.id, req.MessageID)
		}

	case domain.InitiateCallEvent:
		var req InitiateCallRequest
		if err = unmarshal(ev.Data, &req); err == nil {
			_, err = g.calls.Initiate(ctx, client.id, &req)
		}

	case domain.AnswerCallEvent:
		var req CallActionRequest
		if err = unmarshal(ev.Data, &req); err == nil {
			err = g.calls.Answer(ctx, req.CallID, client.id)
		}

	case domain.RejectCallEvent:
		var req CallActionRequest
		if err = unmarshal(ev.Data, &req); err == nil {
			err = g.calls.Reject(ctx, req.CallID, client.id)
		}

	case domain.EndCallEvent:
		var req CallActionRequest
		if err = unmarshal(ev.Data, &req); err == nil {
			err = g.calls.End(ctx, req.CallID, client.id)
		}

	case domain.RTCOfferEvent, domain.RTCAnswerEvent, domain.RTCCandidateEvent:
		var req RTCSignal
		if err = unmarshal(ev.Data, &req); err == nil {
			err = g.calls.RelaySignal(ctx, client.id, ev.Type, &req)
		}

	default:
		err = domain.ErrInvalidRequest.WithMessage(fmt.Sprintf("unknown event type %q", ev.Type))
	}

	if err != nil {
		g.sendError(ctx, client.id, err)
	}
}

func (g *GatewayService) write(ctx context.Context, client *Client) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case msg, ok := <-client.outbound:
			if !ok {
				return nil
			}

			// The payload is already a serialized envelope; forward as-is.
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return err
			}
		}
	}
}

// broadcastStatus notifies the bound peers of every chat the user belongs to.
func (g *GatewayService) broadcastStatus(ctx context.Context, userID int, status domain.PresenceStatus) {
	peerIDs, err := g.members.GetChatPeerIDs(ctx, userID)
	if err != nil {
		slog.Error("Failed to resolve presence peers", "user_id", userID, "error", err)
		return
	}

	ev, err := NewEvent(domain.UserStatusEvent, UserStatusPayload{
		UserID:   userID,
		Status:   status,
		LastSeen: time.Now(),
	})
	if err != nil {
		slog.Error("Failed to encode status event", "user_id", userID, "error", err)
		return
	}

	for _, peerID := range peerIDs {
		if _, ok := g.hub.Get(peerID); !ok {
			continue
		}
		if err := g.presence.Publish(ctx, peerID, ev); err != nil {
			slog.Error("Failed to publish status event", "user_id", userID, "peer_id", peerID, "error", err)
		}
	}
}

func (g *GatewayService) sendError(ctx context.Context, userID int, err error) {
	appErr := toAppError(err)

	ev, mErr := NewEvent(domain.ErrorEvent, ErrorPayload{
		Code:    appErr.Code,
		Message: appErr.Message,
	})
	if mErr != nil {
		slog.Error("Failed to encode error event", "user_id", userID, "error", mErr)
		return
	}

	if err := g.presence.Publish(ctx, userID, ev); err != nil {
		slog.Error("Failed to publish error event", "user_id", userID, "error", err)
	}
}

func toAppError(err error) *domain.AppError {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	slog.Error("Unhandled handler error", "error", err)
	return domain.ErrInternalServerError
}

func unmarshal(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return domain.ErrInvalidRequest.WithMessage("Malformed event payload")
	}
	return nil
}
