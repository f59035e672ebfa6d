package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
)

const lockPrefix = "lock:"

// ErrLockNotHeld is returned on release when the lock expired or was taken
// over before release.
var ErrLockNotHeld = errors.New("lock not held")

// Locker hands out short lived distributed locks so only one replica runs a
// background sweep at a time.
type Locker struct {
	rs  *redsync.Redsync
	ttl time.Duration
}

func NewLocker(client *goredislib.Client, ttl time.Duration) *Locker {
	return &Locker{rs: redsync.New(goredis.NewPool(client)), ttl: ttl}
}

// TryLock makes a single attempt at name and returns the release func. ok is
// false when another holder owns it; err is reserved for Redis failures.
func (l *Locker) TryLock(ctx context.Context, name string) (func(context.Context) error, bool, error) {
	mutex := l.rs.NewMutex(lockPrefix+name,
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	unlock := func(ctx context.Context) error {
		ok, err := mutex.UnlockContext(ctx)
		if ok {
			return nil
		}
		if err != nil {
			return fmt.Errorf("release lock %s: %w: %v", name, ErrLockNotHeld, err)
		}
		return ErrLockNotHeld
	}
	return unlock, true, nil
}

func isContention(err error) bool {
	msg := err.Error()
	return errors.Is(err, redsync.ErrFailed) ||
		strings.Contains(msg, "lock already taken") ||
		strings.Contains(msg, "failed to acquire lock")
}
