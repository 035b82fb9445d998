// Package audit persists the assignment event log. The log is append-only and
// is the source of truth for capacity accounting: every ledger day bucket can
// be rebuilt from it.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mehdierdemdede/leadflow/pkg/assignment"
	"github.com/mehdierdemdede/leadflow/pkg/ledger"
	"github.com/mehdierdemdede/leadflow/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS assignment_events (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	lead_id TEXT NOT NULL,
	agent_id TEXT NOT NULL DEFAULT '',
	prev_agent_id TEXT NOT NULL DEFAULT '',
	mode TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	day TEXT NOT NULL,
	prev_day TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assignment_events_lead ON assignment_events(lead_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_assignment_events_agent_day ON assignment_events(agent_id, day);
CREATE INDEX IF NOT EXISTS idx_assignment_events_prev ON assignment_events(prev_agent_id, prev_day);
`

// Service writes and reads assignment events. It satisfies
// assignment.Recorder so the engine can emit straight into the log.
type Service struct {
	db  *sql.DB
	log logger.Logger
}

// NewService creates the event log service and ensures the schema exists. The
// SQL is portable between PostgreSQL (production) and SQLite (tests).
func NewService(ctx context.Context, db *sql.DB, log logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.Default()
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to initialize event log schema: %w", err)
	}
	return &Service{db: db, log: log}, nil
}

// Record appends one assignment event to the log.
func (s *Service) Record(ctx context.Context, event assignment.Event) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignment_events
			(id, event_type, lead_id, agent_id, prev_agent_id, mode, reason, day, prev_day, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		event.ID,
		string(event.Type),
		event.LeadID,
		event.AgentID,
		event.PrevAgentID,
		string(event.Mode),
		event.Reason,
		string(event.Day),
		string(event.PrevDay),
		event.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append assignment event: %w", err)
	}
	return nil
}

// LeadHistory returns all events for a lead, most recent first.
func (s *Service) LeadHistory(ctx context.Context, leadID string) ([]assignment.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, lead_id, agent_id, prev_agent_id, mode, reason, day, prev_day, occurred_at
		FROM assignment_events
		WHERE lead_id = $1
		ORDER BY occurred_at DESC, id DESC
	`, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignment history: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// AgentHistory returns all events that touched an agent, most recent first.
func (s *Service) AgentHistory(ctx context.Context, agentID string, limit int) ([]assignment.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, lead_id, agent_id, prev_agent_id, mode, reason, day, prev_day, occurred_at
		FROM assignment_events
		WHERE agent_id = $1 OR prev_agent_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent history: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// DayCounts derives each agent's net assignment count for a day bucket:
// assignments counted into the bucket minus releases of slots counted against
// it. This is exactly what the ledger caches.
func (s *Service) DayCounts(ctx context.Context, day ledger.Day) (map[string]int, error) {
	counts := make(map[string]int)

	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, COUNT(*)
		FROM assignment_events
		WHERE day = $1 AND event_type IN ('assigned', 'reassigned')
		GROUP BY agent_id
	`, string(day))
	if err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var agentID string
		var n int
		if err := rows.Scan(&agentID, &n); err != nil {
			return nil, err
		}
		counts[agentID] += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	released, err := s.db.QueryContext(ctx, `
		SELECT prev_agent_id, COUNT(*)
		FROM assignment_events
		WHERE prev_day = $1 AND event_type IN ('reassigned', 'unassigned')
		GROUP BY prev_agent_id
	`, string(day))
	if err != nil {
		return nil, fmt.Errorf("failed to count releases: %w", err)
	}
	defer released.Close()

	for released.Next() {
		var agentID string
		var n int
		if err := released.Scan(&agentID, &n); err != nil {
			return nil, err
		}
		counts[agentID] -= n
	}
	if err := released.Err(); err != nil {
		return nil, err
	}

	// Agents whose slots were all released still appear, with count 0, so a
	// rebuild can overwrite a drifted bucket back down to zero.
	for agentID, n := range counts {
		if n < 0 {
			counts[agentID] = 0
		}
	}
	return counts, nil
}

// RebuildDay recomputes one day's ledger buckets from the event log and
// overwrites the ledger with the derived counts.
func (s *Service) RebuildDay(ctx context.Context, led ledger.Ledger, day ledger.Day) error {
	counts, err := s.DayCounts(ctx, day)
	if err != nil {
		return err
	}

	for agentID, count := range counts {
		if err := led.SetCount(ctx, agentID, day, count); err != nil {
			return fmt.Errorf("failed to write rebuilt count for agent %s: %w", agentID, err)
		}
	}

	s.log.Info("ledger day rebuilt from event log", "day", day, "agents", len(counts))
	return nil
}

func scanEvents(rows *sql.Rows) ([]assignment.Event, error) {
	var events []assignment.Event
	for rows.Next() {
		var (
			ev                         assignment.Event
			evType, mode, day, prevDay string
			occurredAt                 time.Time
		)
		if err := rows.Scan(&ev.ID, &evType, &ev.LeadID, &ev.AgentID, &ev.PrevAgentID, &mode, &ev.Reason, &day, &prevDay, &occurredAt); err != nil {
			return nil, err
		}
		ev.Type = assignment.EventType(evType)
		ev.Mode = assignment.Mode(mode)
		ev.Day = ledger.Day(day)
		ev.PrevDay = ledger.Day(prevDay)
		ev.OccurredAt = occurredAt
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
