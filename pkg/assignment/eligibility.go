package assignment

import (
	"github.com/mehdierdemdede/leadflow/pkg/leads"
	"github.com/mehdierdemdede/leadflow/pkg/roster"
)

// Candidate pairs an agent with its remaining capacity for the decision day.
type Candidate struct {
	Agent     *roster.Agent
	Remaining int
}

// IsEligible reports whether the agent may receive the lead right now. The
// auto-assign flag only gates the automatic path; manual and bulk assignment
// still require an active agent, a language match, and remaining capacity.
// Failing any check simply excludes the agent — it is not an error.
func IsEligible(agent *roster.Agent, lead *leads.Lead, remaining int, mode Mode) bool {
	if !agent.Active {
		return false
	}
	if mode == ModeAuto && !agent.AutoAssignEnabled {
		return false
	}
	if !agent.SupportsLanguage(lead.Language) {
		return false
	}
	return remaining > 0
}

// checkTarget validates a specific target agent for the manual/bulk path and
// reports the first failed constraint as a typed error.
func checkTarget(agent *roster.Agent, lead *leads.Lead, remaining int) error {
	if !agent.Active {
		return ErrAgentInactive
	}
	if !agent.SupportsLanguage(lead.Language) {
		return ErrLanguageMismatch
	}
	if remaining <= 0 {
		return ErrCapacityExceeded
	}
	return nil
}
