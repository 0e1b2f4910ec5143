package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyTemplate   = "checkout:%s:lock"
	statusKeyTemplate = "checkout:%s:status"
)

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// StatusCache keeps short-lived reconciliation state in Redis: an
// in-flight lock per checkout session and the applied result that the
// success page reads. Postgres stays authoritative for both.
type StatusCache struct {
	client    *redis.Client
	lockTTL   time.Duration
	statusTTL time.Duration
}

func NewStatusCache(client *redis.Client, lockTTL, statusTTL time.Duration) *StatusCache {
	return &StatusCache{client: client, lockTTL: lockTTL, statusTTL: statusTTL}
}

// Acquire takes the in-flight lock for a checkout session. The returned
// token is empty when another holder owns the lock.
func (c *StatusCache) Acquire(ctx context.Context, sessionID string) (string, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, fmt.Sprintf(lockKeyTemplate, sessionID), token, c.lockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// Release drops the lock if it is still held with token. A lock that expired
// and was taken by another holder is left alone.
func (c *StatusCache) Release(ctx context.Context, sessionID, token string) error {
	err := releaseScript.Run(ctx, c.client, []string{fmt.Sprintf(lockKeyTemplate, sessionID)}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// MarkApplied stores the applied result for the success page.
func (c *StatusCache) MarkApplied(ctx context.Context, res Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return c.client.Set(ctx, fmt.Sprintf(statusKeyTemplate, res.SessionID), data, c.statusTTL).Err()
}

// Status returns the cached result, or nil when nothing is cached.
func (c *StatusCache) Status(ctx context.Context, sessionID string) (*Result, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf(statusKeyTemplate, sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &res, nil
}
