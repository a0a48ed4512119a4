package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fegerV/Stogram-sub001/internal/service"
	"github.com/redis/go-redis/v9"
)

// Presence keys outlive the pong cadence by a margin; a missed refresh does
// not flap the status.
const onlineTTL = 80 * time.Second

// ConnectionRepo keeps coarse presence in Redis and carries per-user delivery
// channels over pub/sub. Publishing by user id is what lets fan-out work no
// matter which instance holds the binding.
type ConnectionRepo struct {
	redis *redis.Client
}

func NewConnectionRepo(redis *redis.Client) *ConnectionRepo {
	return &ConnectionRepo{
		redis: redis,
	}
}

func (cr *ConnectionRepo) Subscribe(ctx context.Context, userID int) *redis.PubSub {
	return cr.redis.Subscribe(ctx, deliveryChannel(userID))
}

func (cr *ConnectionRepo) Publish(ctx context.Context, userID int, event *service.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return cr.redis.Publish(ctx, deliveryChannel(userID), data).Err()
}

func (cr *ConnectionRepo) SetOnline(ctx context.Context, userID int) error {
	key := onlineKey(userID)
	return cr.redis.Set(ctx, key, time.Now().Format(time.RFC3339), onlineTTL).Err()
}

func (cr *ConnectionRepo) SetOffline(ctx context.Context, userID int, lastSeen time.Time) error {
	pipe := cr.redis.TxPipeline()
	pipe.Del(ctx, onlineKey(userID))
	pipe.Set(ctx, lastSeenKey(userID), lastSeen.Format(time.RFC3339), 0)
	_, err := pipe.Exec(ctx)
	return err
}

func deliveryChannel(userID int) string {
	return fmt.Sprintf("conn:%d", userID)
}

func onlineKey(userID int) string {
	return fmt.Sprintf("online:%d", userID)
}

func lastSeenKey(userID int) string {
	return fmt.Sprintf("last_seen:%d", userID)
}
