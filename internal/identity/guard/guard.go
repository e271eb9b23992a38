// Package guard serializes state-changing work on a single onboarding
// process. At most one mutating operation runs per process at a time; a
// second caller observes a state conflict instead of waiting.
package guard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	domainerrors "enrolld/pkg/domain-errors"
)

// ErrLocked is wrapped into the state-conflict error returned to callers
// that lose the race for a process lease.
var errLocked = domainerrors.New(domainerrors.CodeStateConflict, "process is locked by another operation")

// Lease is a held exclusive claim on a process. Release returns the claim;
// releasing a lease that expired or was taken over is a no-op.
type Lease interface {
	Release(ctx context.Context) error
}

// Guard grants exclusive leases keyed by process identifier.
type Guard interface {
	// Acquire claims the process for the duration of the lease TTL. It does
	// not block: a held process yields a CodeStateConflict error.
	Acquire(ctx context.Context, processID string) (Lease, error)
}

const leaseKeyPrefix = "enrolld:process-lease:"

// RedisGuard coordinates leases across instances through Redis. Keys are
// written with SET NX and a TTL so a crashed holder cannot wedge a process.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed guard with the given lease TTL.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

// releaseScript deletes the lease only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (g *RedisGuard) Acquire(ctx context.Context, processID string) (Lease, error) {
	token := uuid.NewString()
	key := leaseKeyPrefix + processID
	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "acquire process lease")
	}
	if !ok {
		return nil, errLocked
	}
	return &redisLease{guard: g, key: key, token: token}, nil
}

type redisLease struct {
	guard *RedisGuard
	key   string
	token string
}

func (l *redisLease) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.guard.client, []string{l.key}, l.token).Err()
	if err != nil && err != redis.Nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "release process lease")
	}
	return nil
}

// MemoryGuard serializes processes within a single instance. It is the
// fallback when no Redis is configured and the unit-test guard.
type MemoryGuard struct {
	mu    sync.Mutex
	held  map[string]string
	clock func() time.Time
	ttl   time.Duration
	until map[string]time.Time
}

// NewMemory constructs an in-process guard with the given lease TTL.
func NewMemory(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{
		held:  make(map[string]string),
		until: make(map[string]time.Time),
		clock: time.Now,
		ttl:   ttl,
	}
}

func (g *MemoryGuard) Acquire(_ context.Context, processID string) (Lease, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock()
	if _, ok := g.held[processID]; ok && now.Before(g.until[processID]) {
		return nil, errLocked
	}
	token := uuid.NewString()
	g.held[processID] = token
	g.until[processID] = now.Add(g.ttl)
	return &memoryLease{guard: g, processID: processID, token: token}, nil
}

type memoryLease struct {
	guard     *MemoryGuard
	processID string
	token     string
}

func (l *memoryLease) Release(_ context.Context) error {
	l.guard.mu.Lock()
	defer l.guard.mu.Unlock()
	if l.guard.held[l.processID] == l.token {
		delete(l.guard.held, l.processID)
		delete(l.guard.until, l.processID)
	}
	return nil
}
