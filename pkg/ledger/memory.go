package ledger

import (
	"context"
	"sync"
)

type bucketKey struct {
	agentID string
	day     Day
}

// MemoryLedger is an in-process Ledger guarded by a single mutex. Suitable for
// a single API replica; use RedisLedger when replicas share capacity state.
type MemoryLedger struct {
	mu      sync.Mutex
	buckets map[bucketKey]int
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{buckets: make(map[bucketKey]int)}
}

func (l *MemoryLedger) Count(ctx context.Context, agentID string, day Day) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buckets[bucketKey{agentID, day}], nil
}

func (l *MemoryLedger) Remaining(ctx context.Context, agentID string, day Day, capacity int) (int, error) {
	count, err := l.Count(ctx, agentID, day)
	if err != nil {
		return 0, err
	}
	if remaining := capacity - count; remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

func (l *MemoryLedger) Increment(ctx context.Context, agentID string, day Day, capacity int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := bucketKey{agentID, day}
	if l.buckets[key] >= capacity {
		return 0, ErrCapacityExceeded
	}
	l.buckets[key]++
	return l.buckets[key], nil
}

func (l *MemoryLedger) Decrement(ctx context.Context, agentID string, day Day) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := bucketKey{agentID, day}
	if l.buckets[key] > 0 {
		l.buckets[key]--
	}
	return nil
}

func (l *MemoryLedger) SetCount(ctx context.Context, agentID string, day Day, count int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count < 0 {
		count = 0
	}
	l.buckets[bucketKey{agentID, day}] = count
	return nil
}

func (l *MemoryLedger) PruneBefore(ctx context.Context, day Day) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pruned := 0
	for key := range l.buckets {
		if key.day < day {
			delete(l.buckets, key)
			pruned++
		}
	}
	return pruned, nil
}
