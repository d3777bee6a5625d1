package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const syncLockKey = "omnical:sync:lock"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(1, `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// SyncLock is a SET NX lease shared by every omnical process using the same redis.
type SyncLock struct {
	pool   *redis.Pool
	key    string
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewSyncLock(pool *redis.Pool, ttl time.Duration, logger *zap.SugaredLogger) *SyncLock {
	return &SyncLock{
		pool:   pool,
		key:    syncLockKey,
		ttl:    ttl,
		logger: logger,
	}
}

func (l *SyncLock) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()

	conn, err := l.pool.GetContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("redis connection: %w", err)
	}
	defer conn.Close()

	_, err = redis.String(conn.Do("SET", l.key, token, "NX", "PX", l.ttl.Milliseconds()))
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis SET: %w", err)
	}

	return func() { l.release(token) }, true, nil
}

func (l *SyncLock) release(token string) {
	conn := l.pool.Get()
	defer conn.Close()

	deleted, err := redis.Int(releaseScript.Do(conn, l.key, token))
	if err != nil {
		l.logger.Errorw("Failed releasing sync lock", "err", err)
		return
	}
	if deleted == 0 {
		l.logger.Warnw("Sync lock expired before release", "ttl", l.ttl)
	}
}
