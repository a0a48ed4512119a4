package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// MembershipRepo reads durable chat membership. The gateway never mutates it;
// the CRUD surface owns writes.
type MembershipRepo struct {
	db *sqlx.DB
}

func NewMembershipRepo(db *sqlx.DB) *MembershipRepo {
	return &MembershipRepo{
		db: db,
	}
}

func (mr *MembershipRepo) IsMember(ctx context.Context, chatID, userID int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM chat_members
			WHERE chat_id = $1 AND user_id = $2
		);
	`

	var exists bool
	err := mr.db.GetContext(ctx, &exists, query, chatID, userID)
	return exists, err
}

func (mr *MembershipRepo) GetChatMemberIDs(ctx context.Context, chatID int) ([]int, error) {
	query := `
		SELECT user_id FROM chat_members WHERE chat_id = $1;
	`

	var memberIDs []int
	if err := mr.db.SelectContext(ctx, &memberIDs, query, chatID); err != nil {
		return nil, err
	}
	return memberIDs, nil
}

// GetChatPeerIDs returns the distinct co-members across every chat the user
// belongs to, the audience for presence-change events.
func (mr *MembershipRepo) GetChatPeerIDs(ctx context.Context, userID int) ([]int, error) {
	query := `
		SELECT DISTINCT cm.user_id
		FROM chat_members cm
		JOIN chat_members own ON own.chat_id = cm.chat_id
		WHERE own.user_id = $1 AND cm.user_id <> $1;
	`

	var peerIDs []int
	if err := mr.db.SelectContext(ctx, &peerIDs, query, userID); err != nil {
		return nil, err
	}
	return peerIDs, nil
}
