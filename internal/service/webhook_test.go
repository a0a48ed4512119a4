package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fegerV/Stogram-sub001/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordedDeliveries struct {
	mu   sync.Mutex
	rows []*domain.WebhookDelivery
}

func (r *recordedDeliveries) capture(args mock.Arguments) {
	r.mu.Lock()
	r.rows = append(r.rows, args.Get(1).(*domain.WebhookDelivery))
	r.mu.Unlock()
}

func (r *recordedDeliveries) all() []*domain.WebhookDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.WebhookDelivery(nil), r.rows...)
}

func TestDeliver_FailingEndpointGetsExactlyOneAuditRowAndNoRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	repo := new(mockWebhookRepo)
	recorded := &recordedDeliveries{}

	repo.On("GetActiveForEvent", mock.Anything, domain.WebhookMessageCreated).
		Return([]domain.Webhook{{ID: 1, URL: srv.URL, IsActive: true}}, nil)
	repo.On("RecordDelivery", mock.Anything, mock.AnythingOfType("*domain.WebhookDelivery")).
		Run(recorded.capture).Return(nil)

	ws := NewWebhookService(repo, 5*time.Second)
	ws.Deliver(context.Background(), domain.WebhookMessageCreated, map[string]string{"k": "v"})

	assert.Equal(t, int32(1), hits.Load(), "failed delivery is never re-attempted")

	rows := recorded.all()
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].StatusCode)
	assert.Equal(t, http.StatusInternalServerError, *rows[0].StatusCode)
	assert.Equal(t, 1, rows[0].Attempts)
}

func TestDeliver_SignsPayloadWithRegistrationSecret(t *testing.T) {
	var (
		gotSignature string
		gotEvent     string
		gotBody      []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Webhook-Signature")
		gotEvent = r.Header.Get("X-Webhook-Event")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := new(mockWebhookRepo)
	repo.On("GetActiveForEvent", mock.Anything, domain.WebhookCallStarted).
		Return([]domain.Webhook{{ID: 1, URL: srv.URL, Secret: "s3cret", IsActive: true}}, nil)
	repo.On("RecordDelivery", mock.Anything, mock.AnythingOfType("*domain.WebhookDelivery")).Return(nil)

	ws := NewWebhookService(repo, 5*time.Second)
	ws.Deliver(context.Background(), domain.WebhookCallStarted, map[string]int{"call_id": 5})

	assert.Equal(t, domain.WebhookCallStarted, gotEvent)
	assert.Equal(t, Sign("s3cret", gotBody), gotSignature)
	assert.JSONEq(t, `{"call_id":5}`, string(gotBody))
}

func TestDeliver_OmitsSignatureWithoutSecret(t *testing.T) {
	var hasSignature bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasSignature = r.Header[http.CanonicalHeaderKey("X-Webhook-Signature")]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := new(mockWebhookRepo)
	repo.On("GetActiveForEvent", mock.Anything, domain.WebhookCallEnded).
		Return([]domain.Webhook{{ID: 1, URL: srv.URL, IsActive: true}}, nil)
	repo.On("RecordDelivery", mock.Anything, mock.AnythingOfType("*domain.WebhookDelivery")).Return(nil)

	ws := NewWebhookService(repo, 5*time.Second)
	ws.Deliver(context.Background(), domain.WebhookCallEnded, map[string]int{"call_id": 5})

	assert.False(t, hasSignature)
}

func TestDeliver_TimeoutIsRecordedAsErrorRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := new(mockWebhookRepo)
	recorded := &recordedDeliveries{}

	repo.On("GetActiveForEvent", mock.Anything, domain.WebhookMessageCreated).
		Return([]domain.Webhook{{ID: 1, URL: srv.URL, IsActive: true}}, nil)
	repo.On("RecordDelivery", mock.Anything, mock.AnythingOfType("*domain.WebhookDelivery")).
		Run(recorded.capture).Return(nil)

	ws := NewWebhookService(repo, 50*time.Millisecond)
	ws.Deliver(context.Background(), domain.WebhookMessageCreated, map[string]string{"k": "v"})

	rows := recorded.all()
	require.Len(t, rows, 1, "a timed-out attempt still produces its audit row")
	assert.Nil(t, rows[0].StatusCode)
	assert.NotEmpty(t, rows[0].Response)
	assert.Equal(t, 1, rows[0].Attempts)
}

func TestDeliver_OneDeadEndpointDoesNotBlockTheOthers(t *testing.T) {
	var healthyHits atomic.Int32
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		healthyHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	repo := new(mockWebhookRepo)
	repo.On("GetActiveForEvent", mock.Anything, domain.WebhookMessageCreated).
		Return([]domain.Webhook{
			{ID: 1, URL: "http://127.0.0.1:1/unreachable", IsActive: true},
			{ID: 2, URL: healthy.URL, IsActive: true},
		}, nil)
	repo.On("RecordDelivery", mock.Anything, mock.AnythingOfType("*domain.WebhookDelivery")).Return(nil)

	ws := NewWebhookService(repo, time.Second)
	ws.Deliver(context.Background(), domain.WebhookMessageCreated, map[string]string{"k": "v"})

	assert.Equal(t, int32(1), healthyHits.Load())
}

func TestDeliver_NoRegistrationsMeansNoTraffic(t *testing.T) {
	repo := new(mockWebhookRepo)
	repo.On("GetActiveForEvent", mock.Anything, "user.renamed").Return([]domain.Webhook{}, nil)

	ws := NewWebhookService(repo, time.Second)
	ws.Deliver(context.Background(), "user.renamed", map[string]string{})

	repo.AssertNotCalled(t, "RecordDelivery", mock.Anything, mock.Anything)
}

func TestSign_StableHexHMAC(t *testing.T) {
	body, _ := json.Marshal(map[string]string{"a": "b"})

	first := Sign("secret", body)
	second := Sign("secret", body)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64, "hex-encoded SHA-256 output")
	assert.NotEqual(t, first, Sign("other", body))
}
