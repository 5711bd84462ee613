package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by another worker is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived exclusive locks keyed by name. A lock expires
// after its TTL even when the holder dies.
type Locker struct {
	client redis.UniversalClient
	prefix string
}

func NewLocker(client redis.UniversalClient, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// TryLock takes the lock for key without waiting. ok is false when another
// holder has it. Release returns ErrLockNotHeld once the lock has expired
// or was already released.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	token := uuid.NewString()
	name := l.prefix + key

	ok, err = l.client.SetNX(ctx, name, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}

	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{name}, token).Int()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrLockNotHeld
		}
		return nil
	}, true, nil
}

// IsLockNotHeld reports whether err says the lock expired before release.
func IsLockNotHeld(err error) bool {
	return errors.Is(err, ErrLockNotHeld)
}
