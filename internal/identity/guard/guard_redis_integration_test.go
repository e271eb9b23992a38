//go:build integration

package guard_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"enrolld/internal/identity/guard"
	domainerrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/testutil/containers"
)

type RedisGuardSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	guard *guard.RedisGuard
}

func TestRedisGuardSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisGuardSuite))
}

func (s *RedisGuardSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.guard = guard.NewRedis(s.redis.Client, time.Minute)
}

func (s *RedisGuardSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisGuardSuite) TestAcquireIsExclusive() {
	ctx := context.Background()

	lease, err := s.guard.Acquire(ctx, "proc-1")
	s.Require().NoError(err)

	_, err = s.guard.Acquire(ctx, "proc-1")
	s.True(domainerrors.HasCode(err, domainerrors.CodeStateConflict))

	s.Require().NoError(lease.Release(ctx))

	lease2, err := s.guard.Acquire(ctx, "proc-1")
	s.Require().NoError(err)
	s.Require().NoError(lease2.Release(ctx))
}

func (s *RedisGuardSuite) TestIndependentProcessesDoNotContend() {
	ctx := context.Background()

	lease1, err := s.guard.Acquire(ctx, "proc-1")
	s.Require().NoError(err)
	lease2, err := s.guard.Acquire(ctx, "proc-2")
	s.Require().NoError(err)

	s.Require().NoError(lease1.Release(ctx))
	s.Require().NoError(lease2.Release(ctx))
}

func (s *RedisGuardSuite) TestExpiredLeaseCanBeReclaimed() {
	ctx := context.Background()
	short := guard.NewRedis(s.redis.Client, 100*time.Millisecond)

	_, err := short.Acquire(ctx, "proc-1")
	s.Require().NoError(err)

	time.Sleep(200 * time.Millisecond)

	lease, err := short.Acquire(ctx, "proc-1")
	s.Require().NoError(err)
	s.Require().NoError(lease.Release(ctx))
}

func (s *RedisGuardSuite) TestStaleReleaseDoesNotDropNewLease() {
	ctx := context.Background()
	short := guard.NewRedis(s.redis.Client, 100*time.Millisecond)

	stale, err := short.Acquire(ctx, "proc-1")
	s.Require().NoError(err)

	time.Sleep(200 * time.Millisecond)

	_, err = short.Acquire(ctx, "proc-1")
	s.Require().NoError(err)

	// The expired holder releasing must not free the successor's lease.
	s.Require().NoError(stale.Release(ctx))
	_, err = short.Acquire(ctx, "proc-1")
	s.True(domainerrors.HasCode(err, domainerrors.CodeStateConflict))
}

func (s *RedisGuardSuite) TestConcurrentAcquireSingleWinner() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var won atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.guard.Acquire(ctx, "proc-contended"); err == nil {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), won.Load(), "exactly one goroutine should hold the lease")
}
