package assignment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mehdierdemdede/leadflow/pkg/leads"
	"github.com/mehdierdemdede/leadflow/pkg/ledger"
	"github.com/mehdierdemdede/leadflow/pkg/logger"
	"github.com/mehdierdemdede/leadflow/pkg/roster"
)

// Decision reasons surfaced to callers when a lead stays unassigned.
const (
	ReasonNoEligibleAgent = "no_eligible_agent"
	ReasonStatusExcluded  = "status_excluded"
)

// defaultRetryLimit bounds how often AutoAssign re-runs the filter after
// losing a capacity race to a concurrent assignment.
const defaultRetryLimit = 3

// Engine decides which agent receives each lead and keeps the capacity ledger
// consistent. It is the only component that writes assignment state.
type Engine struct {
	roster   roster.Store
	leads    leads.Store
	ledger   ledger.Ledger
	policy   Policy
	recorder Recorder
	clock    clockwork.Clock
	log      logger.Logger

	retryLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy overrides the default least-loaded selection policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithRecorder sets the event recorder. Defaults to discarding events.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithClock injects the clock used for day bucketing. Defaults to real time.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithRetryLimit bounds the auto-assign retry loop.
func WithRetryLimit(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.retryLimit = n
		}
	}
}

// NewEngine creates an assignment engine over the given stores and ledger.
func NewEngine(rosterStore roster.Store, leadStore leads.Store, led ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		roster:     rosterStore,
		leads:      leadStore,
		ledger:     led,
		policy:     LeastLoadedPolicy{},
		recorder:   NopRecorder{},
		clock:      clockwork.NewRealClock(),
		log:        logger.Default(),
		retryLimit: defaultRetryLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decision is the outcome of a single assignment attempt. An unassigned
// outcome is a normal result, not an error; Reason says why.
type Decision struct {
	LeadID   string     `json:"lead_id"`
	Assigned bool       `json:"assigned"`
	AgentID  string     `json:"agent_id,omitempty"`
	Mode     Mode       `json:"mode"`
	Reason   string     `json:"reason,omitempty"`
	Day      ledger.Day `json:"day"`
}

// SkippedLead reports why a lead in a bulk request was not assigned.
type SkippedLead struct {
	LeadID string `json:"lead_id"`
	Reason string `json:"reason"`
}

// BulkResult reports the partial outcome of a bulk assignment. Bulk is not
// atomic across the batch: assigned leads stay assigned even when later ones
// are skipped.
type BulkResult struct {
	AgentID  string        `json:"agent_id"`
	Assigned []string      `json:"assigned"`
	Skipped  []SkippedLead `json:"skipped"`
}

// CapacitySnapshot reports an agent's capacity state for the current day.
type CapacitySnapshot struct {
	AgentID       string     `json:"agent_id"`
	Day           ledger.Day `json:"day"`
	DailyCapacity int        `json:"daily_capacity"`
	AssignedToday int        `json:"assigned_today"`
	Remaining     int        `json:"remaining"`
}

func (e *Engine) today() ledger.Day {
	return ledger.DayOf(e.clock.Now())
}

// AutoAssign routes an unowned lead to the best eligible agent. When a
// concurrent assignment wins the last capacity slot mid-decision, the filter
// re-runs against refreshed capacity up to the retry limit; exhausted retries
// report no eligible agent rather than blocking.
func (e *Engine) AutoAssign(ctx context.Context, leadID string) (*Decision, error) {
	lead, err := e.leads.Get(ctx, leadID)
	if err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			return nil, ErrUnknownLead
		}
		return nil, err
	}
	if lead.Assigned() {
		return nil, ErrAlreadyAssigned
	}

	day := e.today()

	if !lead.Status.AllowsAutoReassign() {
		return &Decision{LeadID: leadID, Mode: ModeAuto, Reason: ReasonStatusExcluded, Day: day}, nil
	}

	for attempt := 0; attempt <= e.retryLimit; attempt++ {
		candidates, err := e.candidatesFor(ctx, lead, day)
		if err != nil {
			return nil, err
		}

		pick := e.policy.Choose(candidates, lead)
		if pick == nil {
			return &Decision{LeadID: leadID, Mode: ModeAuto, Reason: ReasonNoEligibleAgent, Day: day}, nil
		}

		_, err = e.ledger.Increment(ctx, pick.Agent.ID, day, pick.Agent.DailyCapacity)
		if errors.Is(err, ledger.ErrCapacityExceeded) {
			// Lost the slot to a concurrent assignment; refresh and retry.
			e.log.Debug("auto-assign capacity conflict", "lead_id", leadID, "agent_id", pick.Agent.ID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		if _, err := e.leads.SetAssignment(ctx, leadID, pick.Agent.ID, string(day), nil); err != nil {
			// Give the slot back before reporting the failure.
			if derr := e.ledger.Decrement(ctx, pick.Agent.ID, day); derr != nil {
				e.log.Error("failed to roll back ledger increment", "agent_id", pick.Agent.ID, "error", derr)
			}
			if errors.Is(err, leads.ErrOwnerChanged) {
				// A concurrent call assigned the lead after our read.
				return nil, ErrAlreadyAssigned
			}
			return nil, fmt.Errorf("failed to record assignment: %w", err)
		}

		reason := chooseReason(e.policy, pick)
		e.record(ctx, Event{
			Type:    EventAssigned,
			LeadID:  leadID,
			AgentID: pick.Agent.ID,
			Mode:    ModeAuto,
			Reason:  reason,
			Day:     day,
		})

		e.log.Info("lead auto-assigned", "lead_id", leadID, "agent_id", pick.Agent.ID, "reason", reason)
		return &Decision{
			LeadID:   leadID,
			Assigned: true,
			AgentID:  pick.Agent.ID,
			Mode:     ModeAuto,
			Reason:   reason,
			Day:      day,
		}, nil
	}

	// Every retry lost its capacity race; to the caller that is
	// indistinguishable from having no eligible agent.
	e.log.Warn("auto-assign retries exhausted", "lead_id", leadID, "retry_limit", e.retryLimit)
	return &Decision{LeadID: leadID, Mode: ModeAuto, Reason: ReasonNoEligibleAgent, Day: day}, nil
}

// ManualAssign assigns a lead to a specific agent. It bypasses the
// auto-assign flag but still enforces active, language, and capacity. When the
// lead already has an owner, the transfer decrements the old ledger bucket and
// increments the new one as a single logical transaction.
func (e *Engine) ManualAssign(ctx context.Context, leadID, agentID string) (*Decision, error) {
	return e.assignTo(ctx, leadID, agentID, ModeManual)
}

func (e *Engine) assignTo(ctx context.Context, leadID, agentID string, mode Mode) (*Decision, error) {
	lead, err := e.leads.Get(ctx, leadID)
	if err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			return nil, ErrUnknownLead
		}
		return nil, err
	}

	agent, err := e.roster.Get(ctx, agentID)
	if err != nil {
		if errors.Is(err, roster.ErrAgentNotFound) {
			return nil, ErrUnknownAgent
		}
		return nil, err
	}

	day := e.today()

	if lead.AssignedAgentID != nil && *lead.AssignedAgentID == agentID {
		// Already owned by the target; nothing to move.
		return &Decision{LeadID: leadID, Assigned: true, AgentID: agentID, Mode: mode, Reason: "already_assigned", Day: day}, nil
	}

	remaining, err := e.ledger.Remaining(ctx, agentID, day, agent.DailyCapacity)
	if err != nil {
		return nil, err
	}
	if err := checkTarget(agent, lead, remaining); err != nil {
		return nil, err
	}

	if _, err := e.ledger.Increment(ctx, agentID, day, agent.DailyCapacity); err != nil {
		if errors.Is(err, ledger.ErrCapacityExceeded) {
			return nil, ErrCapacityExceeded
		}
		return nil, err
	}

	var prevAgentID string
	var prevDay ledger.Day
	if lead.Assigned() {
		prevAgentID = *lead.AssignedAgentID
		prevDay = ledger.Day(*lead.AssignedDay)
		if err := e.ledger.Decrement(ctx, prevAgentID, prevDay); err != nil {
			if derr := e.ledger.Decrement(ctx, agentID, day); derr != nil {
				e.log.Error("failed to roll back ledger increment", "agent_id", agentID, "error", derr)
			}
			return nil, fmt.Errorf("failed to release previous assignment: %w", err)
		}
	}

	if _, err := e.leads.SetAssignment(ctx, leadID, agentID, string(day), lead.AssignedAgentID); err != nil {
		// Roll the ledger back to its prior state as far as possible.
		if derr := e.ledger.Decrement(ctx, agentID, day); derr != nil {
			e.log.Error("failed to roll back ledger increment", "agent_id", agentID, "error", derr)
		}
		if prevAgentID != "" {
			e.restoreSlot(ctx, prevAgentID, prevDay)
		}
		if errors.Is(err, leads.ErrOwnerChanged) {
			return nil, ErrAssignmentConflict
		}
		return nil, fmt.Errorf("failed to record assignment: %w", err)
	}

	eventType := EventAssigned
	if prevAgentID != "" {
		eventType = EventReassigned
	}
	e.record(ctx, Event{
		Type:        eventType,
		LeadID:      leadID,
		AgentID:     agentID,
		PrevAgentID: prevAgentID,
		Mode:        mode,
		Day:         day,
		PrevDay:     prevDay,
	})

	e.log.Info("lead assigned", "lead_id", leadID, "agent_id", agentID, "mode", mode, "previous_agent_id", prevAgentID)
	return &Decision{LeadID: leadID, Assigned: true, AgentID: agentID, Mode: mode, Day: day}, nil
}

// BulkAssign assigns the given leads, in caller order, to one target agent.
// It checks eligibility against live ledger state per lead and stops adding
// once the agent is full; skipped leads are reported, never silently dropped.
func (e *Engine) BulkAssign(ctx context.Context, leadIDs []string, agentID string) (*BulkResult, error) {
	agent, err := e.roster.Get(ctx, agentID)
	if err != nil {
		if errors.Is(err, roster.ErrAgentNotFound) {
			return nil, ErrUnknownAgent
		}
		return nil, err
	}
	if !agent.Active {
		return nil, ErrAgentInactive
	}

	result := &BulkResult{AgentID: agentID, Assigned: []string{}, Skipped: []SkippedLead{}}

	full := false
	for _, leadID := range leadIDs {
		if full {
			result.Skipped = append(result.Skipped, SkippedLead{LeadID: leadID, Reason: "capacity_exhausted"})
			continue
		}

		_, err := e.assignTo(ctx, leadID, agentID, ModeBulk)
		switch {
		case err == nil:
			result.Assigned = append(result.Assigned, leadID)
		case errors.Is(err, ErrCapacityExceeded):
			result.Skipped = append(result.Skipped, SkippedLead{LeadID: leadID, Reason: "capacity_exhausted"})
			full = true
		case errors.Is(err, ErrLanguageMismatch):
			result.Skipped = append(result.Skipped, SkippedLead{LeadID: leadID, Reason: "language_mismatch"})
		case errors.Is(err, ErrAssignmentConflict):
			result.Skipped = append(result.Skipped, SkippedLead{LeadID: leadID, Reason: "owner_changed"})
		case errors.Is(err, ErrUnknownLead):
			result.Skipped = append(result.Skipped, SkippedLead{LeadID: leadID, Reason: "unknown_lead"})
		default:
			return nil, err
		}
	}

	e.log.Info("bulk assignment finished", "agent_id", agentID, "assigned", len(result.Assigned), "skipped", len(result.Skipped))
	return result, nil
}

// Unassign releases a lead from its current owner, decrementing the ledger
// bucket of the day the assignment was originally counted against. Calling it
// on an unowned lead is a no-op.
func (e *Engine) Unassign(ctx context.Context, leadID string) error {
	lead, err := e.leads.Get(ctx, leadID)
	if err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			return ErrUnknownLead
		}
		return err
	}
	if !lead.Assigned() {
		return nil
	}

	prevAgentID := *lead.AssignedAgentID
	prevDay := ledger.Day(*lead.AssignedDay)

	// Release the ledger slot before touching the lead: a lead must never
	// end up cleared while its slot is still counted, or the event log and
	// the ledger drift apart.
	if err := e.ledger.Decrement(ctx, prevAgentID, prevDay); err != nil {
		return fmt.Errorf("failed to release ledger slot: %w", err)
	}
	if _, err := e.leads.ClearAssignment(ctx, leadID, lead.AssignedAgentID); err != nil {
		e.restoreSlot(ctx, prevAgentID, prevDay)
		if errors.Is(err, leads.ErrOwnerChanged) {
			return ErrAssignmentConflict
		}
		return fmt.Errorf("failed to clear assignment: %w", err)
	}

	e.record(ctx, Event{
		Type:        EventUnassigned,
		LeadID:      leadID,
		PrevAgentID: prevAgentID,
		Mode:        ModeManual,
		Day:         e.today(),
		PrevDay:     prevDay,
	})

	e.log.Info("lead unassigned", "lead_id", leadID, "previous_agent_id", prevAgentID)
	return nil
}

// Snapshot reports the agent's capacity state for the current day.
func (e *Engine) Snapshot(ctx context.Context, agentID string) (*CapacitySnapshot, error) {
	agent, err := e.roster.Get(ctx, agentID)
	if err != nil {
		if errors.Is(err, roster.ErrAgentNotFound) {
			return nil, ErrUnknownAgent
		}
		return nil, err
	}

	day := e.today()
	count, err := e.ledger.Count(ctx, agentID, day)
	if err != nil {
		return nil, err
	}

	remaining := agent.DailyCapacity - count
	if remaining < 0 {
		remaining = 0
	}
	return &CapacitySnapshot{
		AgentID:       agentID,
		Day:           day,
		DailyCapacity: agent.DailyCapacity,
		AssignedToday: count,
		Remaining:     remaining,
	}, nil
}

func (e *Engine) candidatesFor(ctx context.Context, lead *leads.Lead, day ledger.Day) ([]Candidate, error) {
	agents, err := e.roster.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active agents: %w", err)
	}

	var candidates []Candidate
	for _, agent := range agents {
		remaining, err := e.ledger.Remaining(ctx, agent.ID, day, agent.DailyCapacity)
		if err != nil {
			return nil, err
		}
		if IsEligible(agent, lead, remaining, ModeAuto) {
			candidates = append(candidates, Candidate{Agent: agent, Remaining: remaining})
		}
	}
	return candidates, nil
}

// restoreSlot best-effort re-occupies a ledger slot released during a failed
// transfer, so the ledger does not undercount the still-assigned lead.
func (e *Engine) restoreSlot(ctx context.Context, agentID string, day ledger.Day) {
	agent, err := e.roster.Get(ctx, agentID)
	if err != nil {
		e.log.Error("failed to restore previous ledger bucket", "agent_id", agentID, "error", err)
		return
	}
	if _, err := e.ledger.Increment(ctx, agentID, day, agent.DailyCapacity); err != nil && !errors.Is(err, ledger.ErrCapacityExceeded) {
		e.log.Error("failed to restore previous ledger bucket", "agent_id", agentID, "error", err)
	}
}

// record hands the event to the recorder. Recording failures are logged, not
// propagated: the decision is already committed and the reconcile job catches
// up later.
func (e *Engine) record(ctx context.Context, event Event) {
	event.ID = uuid.New().String()
	event.OccurredAt = e.clock.Now().UTC()
	if err := e.recorder.Record(ctx, event); err != nil {
		e.log.Error("failed to record assignment event", "event_type", event.Type, "lead_id", event.LeadID, "error", err)
	}
}
