package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// RedisLocker is a single-instance Redis lock used to keep two workers from
// running the same batch at once. The TTL bounds how long a crashed holder
// can block others.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewRedisLocker(addr, password string, ttl time.Duration, log logrus.FieldLogger) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "redis ping failed")
	}

	log.WithField("addr", addr).Info("redis connected")
	return &RedisLocker{client: client, ttl: ttl, log: log}, nil
}

// TryLock acquires key without blocking. acquired is false when another
// holder owns it.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(context.Context) error, bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, errors.Wrap(err, "acquire lock")
	}
	if !ok {
		return nil, false, nil
	}

	l.log.WithFields(logrus.Fields{"key": key, "ttl": l.ttl.String()}).Debug("lock acquired")

	unlock := func(ctx context.Context) error {
		n, err := l.client.Eval(ctx, releaseScript, []string{key}, token).Int()
		if err != nil {
			return errors.Wrap(err, "release lock")
		}
		if n == 0 {
			return errors.Errorf("lock %s expired before release", key)
		}
		return nil
	}
	return unlock, true, nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
