package service

import (
	"context"
	"testing"
	"time"

	"github.com/fegerV/Stogram-sub001/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) (*SchedulerService, *mockMessageRepo, *mockMembershipRepo, *Hub, *fakeBus, *fakeEmitter) {
	t.Helper()

	msgRepo := new(mockMessageRepo)
	members := new(mockMembershipRepo)
	hub := NewHub()
	bus := newFakeBus()
	emitter := &fakeEmitter{}

	relay := NewRelayService(msgRepo, members, hub, bus, emitter)
	scheduler := NewSchedulerService(msgRepo, relay, emitter, time.Minute)
	return scheduler, msgRepo, members, hub, bus, emitter
}

func TestSweep_PromotesDueMessageExactlyOnce(t *testing.T) {
	scheduler, msgRepo, members, hub, bus, emitter := newTestScheduler(t)
	hub.Bind(2, NewClient(2, nil))

	promoted := &domain.Message{ID: 11, ChatID: 1, SenderID: 1, Content: "later", IsSent: true}

	// First sweep: the message is due, gets claimed and fanned out.
	msgRepo.On("GetDueScheduled", mock.Anything, mock.AnythingOfType("time.Time")).Return([]int{11}, nil).Once()
	msgRepo.On("ClaimScheduled", mock.Anything, 11).Return(true, nil).Once()
	msgRepo.On("GetMessage", mock.Anything, 11).Return(promoted, nil).Once()
	members.On("GetChatMemberIDs", mock.Anything, 1).Return([]int{1, 2}, nil)

	scheduler.Sweep(context.Background())

	events := bus.eventsFor(2)
	require.Len(t, events, 1, "exactly one message:new after promotion")
	assert.Equal(t, domain.NewMessageEvent, events[0].Type)
	assert.Equal(t, []string{domain.WebhookScheduledSent}, emitter.emitted())

	// Second sweep: the flipped row no longer matches the due query.
	msgRepo.On("GetDueScheduled", mock.Anything, mock.AnythingOfType("time.Time")).Return([]int{}, nil).Once()

	scheduler.Sweep(context.Background())

	assert.Len(t, bus.eventsFor(2), 1, "no re-emit on a later sweep")
	msgRepo.AssertExpectations(t)
}

func TestSweep_SkipsAlreadyClaimedMessage(t *testing.T) {
	scheduler, msgRepo, _, _, bus, emitter := newTestScheduler(t)

	msgRepo.On("GetDueScheduled", mock.Anything, mock.AnythingOfType("time.Time")).Return([]int{11}, nil).Once()
	msgRepo.On("ClaimScheduled", mock.Anything, 11).Return(false, nil).Once()

	scheduler.Sweep(context.Background())

	msgRepo.AssertNotCalled(t, "GetMessage", mock.Anything, mock.Anything)
	assert.Empty(t, bus.published)
	assert.Empty(t, emitter.emitted())
}

func TestSweep_OneFailingMessageDoesNotAbortTheRest(t *testing.T) {
	scheduler, msgRepo, members, hub, bus, _ := newTestScheduler(t)
	hub.Bind(2, NewClient(2, nil))

	msgRepo.On("GetDueScheduled", mock.Anything, mock.AnythingOfType("time.Time")).Return([]int{5, 6}, nil).Once()
	msgRepo.On("ClaimScheduled", mock.Anything, 5).Return(false, assert.AnError).Once()
	msgRepo.On("ClaimScheduled", mock.Anything, 6).Return(true, nil).Once()
	msgRepo.On("GetMessage", mock.Anything, 6).Return(&domain.Message{ID: 6, ChatID: 1, IsSent: true}, nil).Once()
	members.On("GetChatMemberIDs", mock.Anything, 1).Return([]int{2}, nil)

	scheduler.Sweep(context.Background())

	assert.Len(t, bus.eventsFor(2), 1, "the sweep continues past a failing row")
	msgRepo.AssertExpectations(t)
}

func TestSweep_QueryFailureIsContained(t *testing.T) {
	scheduler, msgRepo, _, _, bus, _ := newTestScheduler(t)

	msgRepo.On("GetDueScheduled", mock.Anything, mock.AnythingOfType("time.Time")).Return(nil, assert.AnError).Once()

	scheduler.Sweep(context.Background())

	assert.Empty(t, bus.published)
}
