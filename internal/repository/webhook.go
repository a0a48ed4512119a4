package repository

import (
	"context"

	"github.com/fegerV/Stogram-sub001/internal/domain"
	"github.com/jmoiron/sqlx"
)

type WebhookRepo struct {
	db *sqlx.DB
}

func NewWebhookRepo(db *sqlx.DB) *WebhookRepo {
	return &WebhookRepo{
		db: db,
	}
}

func (wr *WebhookRepo) GetActiveForEvent(ctx context.Context, event string) ([]domain.Webhook, error) {
	query := `
		SELECT id, bot_id, url, secret, events, is_active
		FROM webhooks
		WHERE is_active = TRUE AND $1 = ANY(events);
	`

	var hooks []domain.Webhook
	if err := wr.db.SelectContext(ctx, &hooks, query, event); err != nil {
		return nil, err
	}
	return hooks, nil
}

func (wr *WebhookRepo) RecordDelivery(ctx context.Context, d *domain.WebhookDelivery) error {
	query := `
		INSERT INTO webhook_deliveries (
			id, webhook_id, event, payload, status_code, response, attempts, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`

	_, err := wr.db.ExecContext(ctx, query,
		d.ID, d.WebhookID, d.Event, d.Payload, d.StatusCode, d.Response, d.Attempts, d.CreatedAt,
	)
	return err
}
