package redis

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeServer understands the handful of commands the lock sends.
type fakeServer struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]int64
}

type fakeConn struct {
	srv *fakeServer
}

func (c fakeConn) Close() error { return nil }
func (c fakeConn) Err() error { return nil }
func (c fakeConn) Send(string, ...interface{}) error { return nil }
func (c fakeConn) Flush() error { return nil }
func (c fakeConn) Receive() (interface{}, error) { return nil, nil }

func (c fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	switch strings.ToUpper(cmd) {
	case "SET":
		key, val := args[0].(string), args[1].(string)
		if _, ok := s.data[key]; ok {
			return nil, nil
		}
		s.data[key] = val
		s.ttls[key] = args[4].(int64)
		return "OK", nil
	case "EVALSHA":
		return nil, redis.Error("NOSCRIPT No matching script")
	case "EVAL":
		key, token := args[2].(string), args[3].(string)
		if s.data[key] == token {
			delete(s.data, key)
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, nil
}

func newTestLock(t *testing.T) (*SyncLock, *fakeServer) {
	srv := &fakeServer{data: map[string]string{}, ttls: map[string]int64{}}
	pool := &redis.Pool{
		Dial: func() (redis.Conn, error) {
			return fakeConn{srv: srv}, nil
		},
	}
	t.Cleanup(func() { _ = pool.Close() })

	return NewSyncLock(pool, 10*time.Minute, zaptest.NewLogger(t).Sugar()), srv
}

func TestSyncLock_Exclusive(t *testing.T) {
	lock, srv := newTestLock(t)
	ctx := context.Background()

	unlock, ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(600000), srv.ttls[syncLockKey])

	_, ok, err = lock.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	unlock()
	assert.Empty(t, srv.data)

	unlock2, ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	unlock2()
}

func TestSyncLock_ReleaseKeepsForeignToken(t *testing.T) {
	lock, srv := newTestLock(t)

	unlock, ok, err := lock.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// lease expired and another process took it
	srv.data[syncLockKey] = "someone-else"
	unlock()
	assert.Equal(t, "someone-else", srv.data[syncLockKey])
}
