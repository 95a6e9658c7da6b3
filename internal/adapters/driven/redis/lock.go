// Package redis provides Redis-backed coordination primitives for workers.
package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docfield-core/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*Lock)(nil)

// ErrNotHeld is returned by Extend when the lock expired or belongs to
// another worker.
var ErrNotHeld = errors.New("lock not held by this instance")

// Owner-guarded mutations run as Lua so the ownership check and the write
// are one atomic step. Without that, a lock that expired and was grabbed by
// another worker could be deleted or extended by its previous holder.
var (
	delIfOwner = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)
	expireIfOwner = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// Lock is a per-document mutex over Redis SETNX keys with a TTL. The value
// stored under the key identifies the holding worker instance.
type Lock struct {
	client *redis.Client
	owner  string
}

// NewLock creates a Lock whose owner identity is unique to this process.
func NewLock(client *redis.Client) *Lock {
	hostname, _ := os.Hostname()
	nonce := make([]byte, 8)
	_, _ = rand.Read(nonce)
	return &Lock{
		client: client,
		owner:  fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(nonce)),
	}
}

func (l *Lock) key(name string) string { return "docfield:lock:" + name }

// Acquire takes the named lock for ttl. It returns false, with no error,
// when another instance already holds it.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(name), l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// Release drops the named lock if this instance holds it. Releasing a lock
// that expired, or that was never taken, is not an error.
func (l *Lock) Release(ctx context.Context, name string) error {
	_, err := delIfOwner.Run(ctx, l.client, []string{l.key(name)}, l.owner).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Extend pushes the TTL of a held lock out to ttl from now. Workers call
// this between pages of long documents rather than sizing the initial TTL
// for the worst case.
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	res, err := expireIfOwner.Run(ctx, l.client, []string{l.key(name)}, l.owner, ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if res.(int64) == 0 {
		return fmt.Errorf("extend lock %s: %w", name, ErrNotHeld)
	}
	return nil
}

// Ping reports whether the Redis backend is reachable.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// OwnerID exposes this instance's identity, mainly for logging.
func (l *Lock) OwnerID() string {
	return l.owner
}
