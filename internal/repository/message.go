package repository

import (
	"context"
	"time"

	"github.com/fegerV/Stogram-sub001/internal/domain"
	"github.com/jmoiron/sqlx"
)

type MessageRepo struct {
	db *sqlx.DB
}

func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{
		db: db,
	}
}

func (mr *MessageRepo) NewMessage(ctx context.Context, msg *domain.Message) (int, error) {
	query := `
		INSERT INTO messages (
			chat_id,
			sender_id,
			content,
			type,
			reply_to_id,
			scheduled_for,
			is_sent,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id;
	`

	var messageID int
	err := mr.db.QueryRowContext(ctx, query,
		msg.ChatID, msg.SenderID, msg.Content, string(msg.Type),
		msg.ReplyToID, msg.ScheduledFor, msg.IsSent,
	).Scan(&messageID)
	return messageID, err
}

func (mr *MessageRepo) GetMessage(ctx context.Context, messageID int) (*domain.Message, error) {
	query := `
		SELECT id, chat_id, sender_id, content, type, reply_to_id,
		       scheduled_for, is_sent, is_deleted, is_edited, created_at
		FROM messages
		WHERE id = $1;
	`

	var msg domain.Message
	if err := mr.db.GetContext(ctx, &msg, query, messageID); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (mr *MessageRepo) MarkEdited(ctx context.Context, messageID int, content string) error {
	query := `
		UPDATE messages
		SET content = $1, is_edited = TRUE
		WHERE id = $2;
	`

	_, err := mr.db.ExecContext(ctx, query, content, messageID)
	return err
}

func (mr *MessageRepo) MarkDeleted(ctx context.Context, messageID int) error {
	query := `
		UPDATE messages
		SET is_deleted = TRUE
		WHERE id = $1;
	`

	_, err := mr.db.ExecContext(ctx, query, messageID)
	return err
}

func (mr *MessageRepo) TouchChatActivity(ctx context.Context, chatID int) error {
	query := `
		UPDATE chats
		SET last_activity_at = NOW()
		WHERE id = $1;
	`

	_, err := mr.db.ExecContext(ctx, query, chatID)
	return err
}

func (mr *MessageRepo) GetDueScheduled(ctx context.Context, now time.Time) ([]int, error) {
	query := `
		SELECT id FROM messages
		WHERE scheduled_for <= $1
		  AND is_sent = FALSE
		  AND is_deleted = FALSE
		ORDER BY scheduled_for;
	`

	var ids []int
	if err := mr.db.SelectContext(ctx, &ids, query, now); err != nil {
		return nil, err
	}
	return ids, nil
}

// ClaimScheduled flips is_sent only when still unsent, so a message is
// promoted at most once per store.
func (mr *MessageRepo) ClaimScheduled(ctx context.Context, messageID int) (bool, error) {
	query := `
		UPDATE messages
		SET is_sent = TRUE
		WHERE id = $1 AND is_sent = FALSE;
	`

	res, err := mr.db.ExecContext(ctx, query, messageID)
	if err != nil {
		return false, err
	}

	rowsAff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAff > 0, nil
}
