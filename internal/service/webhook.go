package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fegerV/Stogram-sub001/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const (
	headerWebhookEvent     = "X-Webhook-Event"
	headerWebhookSignature = "X-Webhook-Signature"

	maxResponseSnapshot = 1024

	emitTimeout = 30 * time.Second
)

// WebhookService posts domain events to registered endpoints with a signed
// body and writes exactly one audit row per attempt. There is no retry: a
// failed delivery is recorded and left alone.
type WebhookService struct {
	repo   WebhookRepoIn
	client *http.Client
}

func NewWebhookService(repo WebhookRepoIn, timeout time.Duration) *WebhookService {
	return &WebhookService{
		repo: repo,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Emit hands the event off without blocking the producing handler. Delivery
// failures never reach the producer.
func (ws *WebhookService) Emit(event string, payload any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()

		ws.Deliver(ctx, event, payload)
	}()
}

// Deliver fans the event out to every active registration subscribed to it.
// Endpoint failures are isolated per registration and logged in aggregate.
func (ws *WebhookService) Deliver(ctx context.Context, event string, payload any) {
	hooks, err := ws.repo.GetActiveForEvent(ctx, event)
	if err != nil {
		slog.Error("Failed to load webhook registrations", "event", event, "error", err)
		return
	}
	if len(hooks) == 0 {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to serialize webhook payload", "event", event, "error", err)
		return
	}

	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)

	for _, hook := range hooks {
		wg.Add(1)
		go func(hook domain.Webhook) {
			defer wg.Done()
			if err := ws.deliverOne(ctx, &hook, event, body); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("webhook %d: %w", hook.ID, err))
				mu.Unlock()
			}
		}(hook)
	}
	wg.Wait()

	if errs != nil {
		slog.Error("Webhook delivery failures", "event", event, "error", errs)
	}
}

func (ws *WebhookService) deliverOne(ctx context.Context, hook *domain.Webhook, event string, body []byte) error {
	delivery := &domain.WebhookDelivery{
		ID:        uuid.New(),
		WebhookID: hook.ID,
		Event:     event,
		Payload:   body,
		Attempts:  1,
		CreatedAt: time.Now(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		delivery.Response = err.Error()
		return multierr.Append(err, ws.repo.RecordDelivery(ctx, delivery))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerWebhookEvent, event)
	if hook.Secret != "" {
		req.Header.Set(headerWebhookSignature, Sign(hook.Secret, body))
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		delivery.Response = err.Error()
		return multierr.Append(err, ws.repo.RecordDelivery(ctx, delivery))
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSnapshot))
	delivery.StatusCode = &resp.StatusCode
	delivery.Response = string(snippet)

	if err := ws.repo.RecordDelivery(ctx, delivery); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 carried in X-Webhook-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
