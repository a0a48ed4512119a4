package service

import (
	"context"
	"sync"
	"time"

	"github.com/fegerV/Stogram-sub001/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) NewMessage(ctx context.Context, msg *domain.Message) (int, error) {
	args := m.Called(ctx, msg)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageRepo) GetMessage(ctx context.Context, messageID int) (*domain.Message, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *mockMessageRepo) MarkEdited(ctx context.Context, messageID int, content string) error {
	args := m.Called(ctx, messageID, content)
	return args.Error(0)
}

func (m *mockMessageRepo) MarkDeleted(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *mockMessageRepo) TouchChatActivity(ctx context.Context, chatID int) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *mockMessageRepo) GetDueScheduled(ctx context.Context, now time.Time) ([]int, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *mockMessageRepo) ClaimScheduled(ctx context.Context, messageID int) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

type mockMembershipRepo struct {
	mock.Mock
}

func (m *mockMembershipRepo) IsMember(ctx context.Context, chatID, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockMembershipRepo) GetChatMemberIDs(ctx context.Context, chatID int) ([]int, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *mockMembershipRepo) GetChatPeerIDs(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

type mockCallRepo struct {
	mock.Mock
}

func (m *mockCallRepo) NewCall(ctx context.Context, call *domain.Call) (int, error) {
	args := m.Called(ctx, call)
	return args.Int(0), args.Error(1)
}

func (m *mockCallRepo) GetCall(ctx context.Context, callID int) (*domain.Call, error) {
	args := m.Called(ctx, callID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Call), args.Error(1)
}

func (m *mockCallRepo) UpdateCallStatus(ctx context.Context, callID int, from, to domain.CallStatus, endedAt *time.Time) (bool, error) {
	args := m.Called(ctx, callID, from, to, endedAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockCallRepo) AddParticipant(ctx context.Context, callID, userID int) error {
	args := m.Called(ctx, callID, userID)
	return args.Error(0)
}

func (m *mockCallRepo) MarkParticipantLeft(ctx context.Context, callID, userID int) error {
	args := m.Called(ctx, callID, userID)
	return args.Error(0)
}

type mockWebhookRepo struct {
	mock.Mock
}

func (m *mockWebhookRepo) GetActiveForEvent(ctx context.Context, event string) ([]domain.Webhook, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Webhook), args.Error(1)
}

func (m *mockWebhookRepo) RecordDelivery(ctx context.Context, d *domain.WebhookDelivery) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

// fakeBus captures everything published per user id; optionally fails for
// chosen targets to exercise per-target isolation.
type fakeBus struct {
	mu        sync.Mutex
	published map[int][]*Event
	failFor   map[int]error
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		published: make(map[int][]*Event),
		failFor:   make(map[int]error),
	}
}

func (b *fakeBus) Publish(_ context.Context, userID int, event *Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err, ok := b.failFor[userID]; ok {
		return err
	}
	b.published[userID] = append(b.published[userID], event)
	return nil
}

func (b *fakeBus) eventsFor(userID int) []*Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Event(nil), b.published[userID]...)
}

// fakePresence satisfies PresenceRepoIn for gateway tests.
type fakePresence struct {
	*fakeBus
}

func newFakePresence() *fakePresence {
	return &fakePresence{fakeBus: newFakeBus()}
}

func (p *fakePresence) Subscribe(_ context.Context, _ int) *redis.PubSub { return nil }

func (p *fakePresence) SetOnline(_ context.Context, _ int) error { return nil }

func (p *fakePresence) SetOffline(_ context.Context, _ int, _ time.Time) error { return nil }

// fakeEmitter records webhook emissions.
type fakeEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *fakeEmitter) Emit(event string, _ any) {
	e.mu.Lock()
	e.events = append(e.events, event)
	e.mu.Unlock()
}

func (e *fakeEmitter) emitted() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}
