package dialer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"debt-collector/pkg/utils"
)

// Lease keeps two workers from running the same instance's cycle at once.
//
// It narrows the double-dispatch window between workers; it does not close it.
// A lease that outlives its holder expires after its TTL.
type Lease interface {
	Acquire(ctx context.Context, instanceID string) (bool, error)
	Release(ctx context.Context, instanceID string) error
}

const leaseKeyPrefix = "dialer:cycle:"

// RedisLease is a per-instance lease shared by every worker process.
type RedisLease struct {
	rdb   *redis.Client
	ttl   time.Duration
	owner string
}

func NewRedisLease(rdb *redis.Client, ttl time.Duration) *RedisLease {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisLease{rdb: rdb, ttl: ttl, owner: uuid.NewString()}
}

func (l *RedisLease) Acquire(ctx context.Context, instanceID string) (bool, error) {
	return utils.AcquireLease(ctx, l.rdb, leaseKeyPrefix+instanceID, l.owner, l.ttl)
}

func (l *RedisLease) Release(ctx context.Context, instanceID string) error {
	_, err := utils.ReleaseLease(ctx, l.rdb, leaseKeyPrefix+instanceID, l.owner)
	return err
}

// MemoryLease serialises cycles within one process.
type MemoryLease struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLease() *MemoryLease { return &MemoryLease{held: map[string]struct{}{}} }

func (l *MemoryLease) Acquire(ctx context.Context, instanceID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[instanceID]; ok {
		return false, nil
	}
	l.held[instanceID] = struct{}{}
	return true, nil
}

func (l *MemoryLease) Release(ctx context.Context, instanceID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, instanceID)
	return nil
}
