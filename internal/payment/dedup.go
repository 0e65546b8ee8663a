package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventClaims records which provider event ids are being or have been
// processed.
type EventClaims interface {
	// Claim reports false when the id was already claimed.
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type RedisClaims struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisClaims(client redis.UniversalClient, ttl time.Duration) *RedisClaims {
	return &RedisClaims{client: client, ttl: ttl}
}

func claimKey(eventID string) string {
	return fmt.Sprintf("webhook:event:%s", eventID)
}

func (c *RedisClaims) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := c.client.SetNX(ctx, claimKey(eventID), time.Now().Unix(), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}

func (c *RedisClaims) Release(ctx context.Context, eventID string) error {
	if err := c.client.Del(ctx, claimKey(eventID)).Err(); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}
