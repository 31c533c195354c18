package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a lock only if it still holds the caller's token, so a
// holder whose lock expired cannot release someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireBikeLock attempts to lock a bike for a booking attempt.
// Returns the lock token and true if acquired, false if already held.
func (s *LockStore) AcquireBikeLock(ctx context.Context, bikeID string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()

	ok, err := s.client.SetNX(ctx, bikeLockKey(bikeID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

// ReleaseBikeLock releases the bike lock if token still owns it.
func (s *LockStore) ReleaseBikeLock(ctx context.Context, bikeID, token string) error {
	return releaseScript.Run(ctx, s.client, []string{bikeLockKey(bikeID)}, token).Err()
}

func bikeLockKey(bikeID string) string {
	return fmt.Sprintf("lock:bike:%s", bikeID)
}
