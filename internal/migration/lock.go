package migration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/careloop/careloop/internal/errs"
)

const lockKeyPrefix = "migration:lock:"

var (
	ErrLockHeld    = errors.New("migration lock is held by another runner")
	ErrLockLost    = errors.New("migration lock is no longer held")
	ErrLockRelease = errors.New("failed to release migration lock")
)

// Lock is the single-runner lease, scoped per environment. The value is a
// random token so a runner can only release or refresh its own lease; an
// expired lease simply falls to the next acquirer.
type Lock struct {
	client      *redis.Client
	environment string
	token       string
	ttl         time.Duration
}

func NewLock(client *redis.Client, environment string, ttl time.Duration) *Lock {
	return &Lock{
		client:      client,
		environment: environment,
		token:       uuid.NewString(),
		ttl:         ttl,
	}
}

func (l *Lock) key() string {
	return lockKeyPrefix + l.environment
}

func (l *Lock) Acquire(ctx context.Context) error {
	acquired, err := l.client.SetNX(ctx, l.key(), l.token, l.ttl).Result()
	if err != nil {
		return errs.Wrap(ErrLockHeld, err)
	}

	if !acquired {
		return ErrLockHeld
	}

	return nil
}

// Refresh extends the lease. Failing to refresh means another runner may
// already own the lock, so the caller must stop.
func (l *Lock) Refresh(ctx context.Context) error {
	held, err := l.holds(ctx)
	if err != nil {
		return err
	}

	if !held {
		return ErrLockLost
	}

	err = l.client.Expire(ctx, l.key(), l.ttl).Err()
	if err != nil {
		return errs.Wrap(ErrLockLost, err)
	}

	return nil
}

func (l *Lock) Release(ctx context.Context) error {
	held, err := l.holds(ctx)
	if err != nil {
		return err
	}

	if !held {
		return nil
	}

	err = l.client.Del(ctx, l.key()).Err()
	if err != nil {
		return errs.Wrap(ErrLockRelease, err)
	}

	return nil
}

// ForceRelease drops the lease regardless of owner. Operator escape hatch
// for a crashed runner whose lease has not yet expired.
func (l *Lock) ForceRelease(ctx context.Context) error {
	err := l.client.Del(ctx, l.key()).Err()
	if err != nil {
		return errs.Wrap(ErrLockRelease, err)
	}

	return nil
}

func (l *Lock) holds(ctx context.Context) (bool, error) {
	owner, err := l.client.Get(ctx, l.key()).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}

		return false, errs.Wrap(ErrLockLost, err)
	}

	return owner == l.token, nil
}
