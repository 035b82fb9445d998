package assignment

import (
	"errors"

	"github.com/mehdierdemdede/leadflow/pkg/ledger"
)

// Caller errors. Lookup failures are surfaced immediately and never retried.
var (
	ErrUnknownAgent    = errors.New("unknown agent")
	ErrUnknownLead     = errors.New("unknown lead")
	ErrAlreadyAssigned = errors.New("lead is already assigned")

	// ErrAssignmentConflict means the lead changed hands between the
	// eligibility read and the ownership commit; the caller may retry
	// against the lead's new state.
	ErrAssignmentConflict = errors.New("lead ownership changed concurrently")
)

// Expected assignment outcomes on the manual and bulk paths. Callers handle
// these as normal branches, not failures.
var (
	ErrAgentInactive    = errors.New("agent is not active")
	ErrLanguageMismatch = errors.New("agent does not support the lead's language")
	ErrCapacityExceeded = ledger.ErrCapacityExceeded
)
