package assignment

import (
	"fmt"

	"github.com/mehdierdemdede/leadflow/pkg/leads"
)

// Policy selects one agent from the eligible candidate set. Implementations
// must be deterministic for a given candidate set so that decisions are
// reproducible in tests and audits.
type Policy interface {
	// Choose returns the winning candidate, or nil when the set is empty.
	Choose(candidates []Candidate, lead *leads.Lead) *Candidate

	// Name identifies the policy in decision reasons and event records.
	Name() string
}

// LeastLoadedPolicy picks the candidate with the largest remaining capacity,
// spreading load across the roster. Ties break by agent ID ascending.
type LeastLoadedPolicy struct{}

func (LeastLoadedPolicy) Name() string { return "least_loaded" }

func (LeastLoadedPolicy) Choose(candidates []Candidate, lead *leads.Lead) *Candidate {
	var best *Candidate
	for i := range candidates {
		c := &candidates[i]
		if best == nil ||
			c.Remaining > best.Remaining ||
			(c.Remaining == best.Remaining && c.Agent.ID < best.Agent.ID) {
			best = c
		}
	}
	return best
}

func chooseReason(policy Policy, c *Candidate) string {
	return fmt.Sprintf("%s (remaining %d of %d)", policy.Name(), c.Remaining, c.Agent.DailyCapacity)
}
