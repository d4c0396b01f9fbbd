package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const billingRunLockKey = "rentledger:scheduler:billing_cycle"

// compareAndDelete removes the key only while it still holds our token, so a
// run that outlived its TTL cannot free a lock another replica now owns.
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// runLock serialises billing cycles across replicas through Redis. A nil
// *runLock grants every acquisition, which is the single-replica setup.
type runLock struct {
	rdb *redis.Client
}

func newRunLock(rdb *redis.Client) *runLock {
	if rdb == nil {
		return nil
	}
	return &runLock{rdb: rdb}
}

// heldLock is returned by acquire. release is safe on a nil receiver.
type heldLock struct {
	rdb   *redis.Client
	key   string
	token string
}

// acquire returns ErrRunInProgress when another holder has key.
func (l *runLock) acquire(ctx context.Context, key string, ttl time.Duration) (*heldLock, error) {
	if l == nil {
		return nil, nil
	}
	if key == "" || ttl <= 0 {
		return nil, errors.New("run lock: key and positive ttl required")
	}

	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return &heldLock{rdb: l.rdb, key: key, token: token}, nil
}

func (h *heldLock) release(ctx context.Context) error {
	if h == nil {
		return nil
	}
	return compareAndDelete.Run(ctx, h.rdb, []string{h.key}, h.token).Err()
}
