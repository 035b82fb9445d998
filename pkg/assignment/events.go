package assignment

import (
	"context"
	"time"

	"github.com/mehdierdemdede/leadflow/pkg/ledger"
)

// EventType identifies what happened to a lead's assignment.
type EventType string

const (
	EventAssigned   EventType = "assigned"
	EventReassigned EventType = "reassigned"
	EventUnassigned EventType = "unassigned"
)

// Mode identifies which path produced the decision.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
	ModeBulk   Mode = "bulk"
)

// Event is the auditable record of a single assignment decision. The event
// log, not the ledger, is the source of truth for capacity accounting.
type Event struct {
	ID          string     `json:"id"`
	Type        EventType  `json:"type"`
	LeadID      string     `json:"lead_id"`
	AgentID     string     `json:"agent_id,omitempty"`
	PrevAgentID string     `json:"prev_agent_id,omitempty"`
	Mode        Mode       `json:"mode"`
	Reason      string     `json:"reason,omitempty"`
	Day         ledger.Day `json:"day"`
	// PrevDay is the day bucket the released assignment was counted against.
	// Needed to rebuild ledger buckets from the log: an unassignment releases
	// the slot of the day the lead was assigned, not the day of the event.
	PrevDay    ledger.Day `json:"prev_day,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Recorder receives every assignment event. Durable storage and outbound
// publication are owned by collaborators behind this interface.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, event Event) error

func (f RecorderFunc) Record(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// MultiRecorder fans events out to several recorders, returning the first
// error after all have been attempted.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, event Event) error {
	var firstErr error
	for _, r := range m {
		if err := r.Record(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NopRecorder discards events.
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, event Event) error { return nil }
