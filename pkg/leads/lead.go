package leads

import (
	"fmt"
	"time"
)

// ErrLeadNotFound is returned when the requested lead does not exist.
var ErrLeadNotFound = fmt.Errorf("lead not found")

// ErrOwnerChanged is returned by SetAssignment when the lead's owner no
// longer matches the caller's expectation, meaning a concurrent assignment
// won the race.
var ErrOwnerChanged = fmt.Errorf("lead owner changed")

// Status is the contact lifecycle state of a lead. It is orthogonal to
// assignment, but terminal states gate automatic reassignment.
type Status string

const (
	StatusUncontacted   Status = "uncontacted"
	StatusHot           Status = "hot"
	StatusSold          Status = "sold"
	StatusNotInterested Status = "not_interested"
	StatusBlocked       Status = "blocked"
	StatusWrongInfo     Status = "wrong_info"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUncontacted, StatusHot, StatusSold, StatusNotInterested, StatusBlocked, StatusWrongInfo:
		return true
	}
	return false
}

// AllowsAutoReassign reports whether a lead in this status may be picked up by
// automatic assignment again. Sold and blocked leads stay where they are.
func (s Status) AllowsAutoReassign() bool {
	return s != StatusSold && s != StatusBlocked
}

// Lead is an inbound contact record to be routed to an agent.
type Lead struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Status   Status `json:"status"`

	// AssignedAgentID is nil while the lead is unowned. AssignedDay records
	// which ledger day bucket the assignment was counted against, so that a
	// later unassign decrements the right bucket even across a day rollover.
	AssignedAgentID *string `json:"assigned_agent_id,omitempty"`
	AssignedDay     *string `json:"assigned_day,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assigned reports whether the lead currently has an owner.
func (l *Lead) Assigned() bool {
	return l.AssignedAgentID != nil
}
