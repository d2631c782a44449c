// Package redislock provides a Redis-leased run lock for fleets whose
// record store offers no cross-host exclusion.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jobtrawl/jobtrawl/internal/core"
)

const keyPrefix = "jobtrawl:runlock:"

// releaseScript deletes the lease only when the caller still owns it, so a
// lease that expired and was re-acquired elsewhere is never clobbered.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// LockOptions configures the Redis run lock.
type LockOptions struct {
	// Client is the Redis client. Required.
	Client redis.UniversalClient
	// Platform names the lock together with Account; one lease guards one
	// platform/account pair. Platform is required.
	Platform string
	Account  string
	// TTL bounds how long a lease outlives a dead holder. Optional,
	// defaults to 30m.
	TTL time.Duration
	// Logger is used for adapter logging. Optional.
	Logger *slog.Logger
}

// Lock implements the run locker port on a Redis SET NX lease. One Lock
// instance serves one process; the owner token tells leases apart.
type Lock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	logger *slog.Logger
	token  string
}

// NewLock creates a Redis run lock for a platform/account pair.
func NewLock(opts LockOptions) (*Lock, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if strings.TrimSpace(opts.Platform) == "" {
		return nil, errors.New("platform is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Lock{
		client: opts.Client,
		key:    keyPrefix + opts.Platform + ":" + opts.Account,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Acquire takes the lease or reports core.ErrLockHeld.
func (l *Lock) Acquire(ctx context.Context) error {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire redis run lock: %w", err)
	}
	if !ok {
		return core.ErrLockHeld
	}
	l.token = token
	l.logger.DebugContext(ctx, "run lock acquired", "key", l.key, "ttl", l.ttl)
	return nil
}

// Release frees the lease when this process still owns it. Safe to call
// when the lock was never acquired.
func (l *Lock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	deleted, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	l.token = ""
	if err != nil {
		return fmt.Errorf("release redis run lock: %w", err)
	}
	if deleted == 0 {
		l.logger.WarnContext(ctx, "run lock lease expired before release", "key", l.key)
	}
	return nil
}
