// Package ledger tracks how many leads each agent has been assigned per
// calendar day. Increment is atomic per (agent, day) key: two concurrent
// assignment attempts against a near-full agent can never both succeed.
//
// The ledger is derived state. The assignment event log is the source of
// truth, and a day bucket can always be rebuilt from it.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrCapacityExceeded is returned by Increment when the agent's day bucket is
// already at capacity. It is an expected outcome, not a failure.
var ErrCapacityExceeded = errors.New("daily capacity exceeded")

// Day is a UTC calendar day bucket in "2006-01-02" form. Buckets reset at the
// UTC midnight boundary; there is no cross-day carryover.
type Day string

// DayOf returns the UTC day bucket for the given instant.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(time.DateOnly))
}

// Time returns the UTC midnight instant the day bucket starts at.
func (d Day) Time() (time.Time, error) {
	return time.Parse(time.DateOnly, string(d))
}

// Ledger is the per-agent, per-day assignment counter.
type Ledger interface {
	// Count returns the number of leads assigned to the agent on the given
	// day. Unknown buckets count as 0.
	Count(ctx context.Context, agentID string, day Day) (int, error)

	// Remaining returns capacity minus the day's count, floored at 0.
	Remaining(ctx context.Context, agentID string, day Day, capacity int) (int, error)

	// Increment adds one to the day bucket and returns the new count, unless
	// that would push the count past capacity, in which case it returns
	// ErrCapacityExceeded and leaves the bucket untouched.
	Increment(ctx context.Context, agentID string, day Day, capacity int) (int, error)

	// Decrement subtracts one from the day bucket, never going below 0.
	Decrement(ctx context.Context, agentID string, day Day) error

	// SetCount overwrites a bucket. Used when rebuilding the ledger from the
	// assignment event log.
	SetCount(ctx context.Context, agentID string, day Day, count int) error

	// PruneBefore deletes buckets older than the given day and reports how
	// many were removed.
	PruneBefore(ctx context.Context, day Day) (int, error)
}
