package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/application"
)

const (
	lockPrefix = "roombook:lock:room:"

	// DefaultLockTTL bounds how long a crashed holder can block a room. A live
	// holder renews the key every third of the TTL.
	DefaultLockTTL = 10 * time.Second
	// DefaultLockWait bounds how long LockRoom waits for a busy room.
	DefaultLockWait = 5 * time.Second

	lockPollInterval = 20 * time.Millisecond
)

// ErrLockTimeout is returned when a room stays locked for longer than the wait.
var ErrLockTimeout = errors.New("redis: room lock wait exceeded")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key only while it still holds our token.
var renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RoomLocker implements application.RoomLocker with SET NX PX keys so that
// replicas sharing one database serialise bookings on the same room.
type RoomLocker struct {
	client *Client
	ttl    time.Duration
	wait   time.Duration
}

var _ application.RoomLocker = (*RoomLocker)(nil)

// NewRoomLocker builds a locker. Non-positive durations fall back to the defaults.
func NewRoomLocker(client *Client, ttl, wait time.Duration) *RoomLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if wait <= 0 {
		wait = DefaultLockWait
	}
	return &RoomLocker{client: client, ttl: ttl, wait: wait}
}

// LockRoom polls until the room key is acquired, the wait elapses, or ctx ends.
func (l *RoomLocker) LockRoom(ctx context.Context, roomID string) (func(), error) {
	key := lockPrefix + roomID
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.rdb.SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("redis: lock room %s: %w", roomID, err)
		}
		if ok {
			return l.unlocker(key, token), nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: room %s", ErrLockTimeout, roomID)
		case <-ticker.C:
		}
	}
}

// unlocker starts renewing the lease and returns the release func. Release
// stops renewal before deleting the key and is safe to call more than once.
func (l *RoomLocker) unlocker(key, token string) func() {
	stop := make(chan struct{})
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		l.renew(key, token, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-renewed

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client.rdb, []string{key}, token).Err(); err != nil {
				l.client.logger.Warn("failed to release room lock",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		})
	}
}

// renew extends the key every ttl/3 until stop closes or the token is gone.
func (l *RoomLocker) renew(key, token string, stop <-chan struct{}) {
	interval := max(l.ttl/3, time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		extended, err := renewScript.Run(ctx, l.client.rdb, []string{key}, token, l.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			l.client.logger.Warn("failed to renew room lock", zap.String("key", key), zap.Error(err))
		case extended == 0:
			l.client.logger.Warn("room lock lost before release", zap.String("key", key))
			return
		}
	}
}
