package repository

import (
	"context"
	"time"

	"github.com/fegerV/Stogram-sub001/internal/domain"
	"github.com/jmoiron/sqlx"
)

type CallRepo struct {
	db *sqlx.DB
}

func NewCallRepo(db *sqlx.DB) *CallRepo {
	return &CallRepo{
		db: db,
	}
}

func (cr *CallRepo) NewCall(ctx context.Context, call *domain.Call) (int, error) {
	query := `
		INSERT INTO calls (chat_id, initiator_id, type, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
	`

	var callID int
	err := cr.db.QueryRowContext(ctx, query,
		call.ChatID, call.InitiatorID, string(call.Type), string(call.Status), call.StartedAt,
	).Scan(&callID)
	return callID, err
}

func (cr *CallRepo) GetCall(ctx context.Context, callID int) (*domain.Call, error) {
	query := `
		SELECT id, chat_id, initiator_id, type, status, started_at, ended_at
		FROM calls
		WHERE id = $1;
	`

	var call domain.Call
	if err := cr.db.GetContext(ctx, &call, query, callID); err != nil {
		return nil, err
	}
	return &call, nil
}

// UpdateCallStatus applies the transition only when the row still holds the
// expected source status. Returns whether a row changed.
func (cr *CallRepo) UpdateCallStatus(ctx context.Context, callID int, from, to domain.CallStatus, endedAt *time.Time) (bool, error) {
	query := `
		UPDATE calls
		SET status = $1, ended_at = COALESCE($2, ended_at)
		WHERE id = $3 AND status = $4;
	`

	res, err := cr.db.ExecContext(ctx, query, string(to), endedAt, callID, string(from))
	if err != nil {
		return false, err
	}

	rowsAff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAff > 0, nil
}

func (cr *CallRepo) AddParticipant(ctx context.Context, callID, userID int) error {
	query := `
		INSERT INTO call_participants (call_id, user_id, joined_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (call_id, user_id) DO NOTHING;
	`

	_, err := cr.db.ExecContext(ctx, query, callID, userID)
	return err
}

func (cr *CallRepo) MarkParticipantLeft(ctx context.Context, callID, userID int) error {
	query := `
		UPDATE call_participants
		SET left_at = NOW()
		WHERE call_id = $1 AND user_id = $2 AND left_at IS NULL;
	`

	_, err := cr.db.ExecContext(ctx, query, callID, userID)
	return err
}
