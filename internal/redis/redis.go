package redis

import (
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/xlab/closer"
	"go.uber.org/zap"
)

// NewRedisPool accepts either a redis:// url or a bare host:port.
func NewRedisPool(url string, logger *zap.SugaredLogger) *redis.Pool {
	if !strings.Contains(url, "://") {
		url = "redis://" + url
	}

	pool := &redis.Pool{
		MaxIdle:     2,
		IdleTimeout: 5 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.DialURL(url)
		},
	}

	closer.Bind(func() {
		if err := pool.Close(); err != nil {
			logger.Errorw("Failed closing redis pool", "err", err)
		}
	})

	return pool
}
