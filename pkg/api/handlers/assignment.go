package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/mehdierdemdede/leadflow/pkg/assignment"
	apierrors "github.com/mehdierdemdede/leadflow/pkg/api/errors"
	"github.com/mehdierdemdede/leadflow/pkg/audit"
	"github.com/mehdierdemdede/leadflow/pkg/metrics"
	"github.com/mehdierdemdede/leadflow/pkg/models"
)

// AssignmentHandler handles lead assignment operations.
type AssignmentHandler struct {
	engine    *assignment.Engine
	eventLog  *audit.Service
	metrics   *metrics.Metrics
	validator *validator.Validate
	maxBulk   int
}

// NewAssignmentHandler creates a new assignment handler. maxBulk caps the
// number of leads accepted per bulk request.
func NewAssignmentHandler(engine *assignment.Engine, eventLog *audit.Service, m *metrics.Metrics, maxBulk int) *AssignmentHandler {
	if maxBulk <= 0 {
		maxBulk = 500
	}
	return &AssignmentHandler{
		engine:    engine,
		eventLog:  eventLog,
		metrics:   m,
		validator: validator.New(),
		maxBulk:   maxBulk,
	}
}

// AutoAssign routes a lead to the best eligible agent.
// POST /api/v1/leads/:id/auto-assign
func (h *AssignmentHandler) AutoAssign(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	leadID := c.Param("id")

	decision, err := h.engine.AutoAssign(ctx, leadID)
	if err != nil {
		switch {
		case errors.Is(err, assignment.ErrUnknownLead):
			return apierrors.NotFoundError(c, "Lead")
		case errors.Is(err, assignment.ErrAlreadyAssigned):
			return apierrors.ConflictError(c, "Lead is already assigned")
		default:
			return apierrors.InternalError(c, err)
		}
	}

	h.recordOutcome(string(decision.Mode), decision)

	if !decision.Assigned {
		// A no-match outcome is a valid decision, not a server failure.
		return c.JSON(http.StatusUnprocessableEntity, decision)
	}
	return c.JSON(http.StatusOK, decision)
}

// ManualAssign assigns a lead to a named agent, transferring ownership when
// the lead already has one.
// POST /api/v1/leads/:id/assign
func (h *AssignmentHandler) ManualAssign(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	leadID := c.Param("id")

	var req models.ManualAssignRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	decision, err := h.engine.ManualAssign(ctx, leadID, req.AgentID)
	if err != nil {
		if resp := h.mapAssignError(c, err); resp != nil {
			return resp
		}
		return apierrors.InternalError(c, err)
	}

	h.recordOutcome("manual", decision)
	return c.JSON(http.StatusOK, decision)
}

// BulkAssign assigns a batch of leads to one agent with partial success.
// POST /api/v1/leads/bulk-assign
func (h *AssignmentHandler) BulkAssign(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	var req models.BulkAssignRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if len(req.LeadIDs) > h.maxBulk {
		return apierrors.UnprocessableError(c, "batch_too_large",
			"Bulk assignment batches are limited to "+strconv.Itoa(h.maxBulk)+" leads")
	}

	result, err := h.engine.BulkAssign(ctx, req.LeadIDs, req.AgentID)
	if err != nil {
		switch {
		case errors.Is(err, assignment.ErrUnknownAgent):
			return apierrors.NotFoundError(c, "Agent")
		case errors.Is(err, assignment.ErrAgentInactive):
			return apierrors.UnprocessableError(c, "agent_inactive", "Agent is not active")
		default:
			return apierrors.InternalError(c, err)
		}
	}

	if h.metrics != nil {
		h.metrics.RecordBulkBatch(len(req.LeadIDs))
		h.metrics.RecordAssignment("bulk", "assigned")
	}
	return c.JSON(http.StatusOK, result)
}

// Unassign releases a lead back to the unassigned pool. Unassigning an
// unowned lead is a no-op.
// POST /api/v1/leads/:id/unassign
func (h *AssignmentHandler) Unassign(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	leadID := c.Param("id")

	if err := h.engine.Unassign(ctx, leadID); err != nil {
		switch {
		case errors.Is(err, assignment.ErrUnknownLead):
			return apierrors.NotFoundError(c, "Lead")
		case errors.Is(err, assignment.ErrAssignmentConflict):
			return apierrors.ConflictError(c, "Lead ownership changed, retry the unassignment")
		default:
			return apierrors.InternalError(c, err)
		}
	}

	if h.metrics != nil {
		h.metrics.RecordUnassignment()
	}
	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// GetAssignmentHistory returns the full assignment history for a lead,
// most recent first.
// GET /api/v1/leads/:id/assignment-history
func (h *AssignmentHandler) GetAssignmentHistory(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	leadID := c.Param("id")

	events, err := h.eventLog.LeadHistory(ctx, leadID)
	if err != nil {
		return apierrors.InternalError(c, err)
	}
	if events == nil {
		events = []assignment.Event{}
	}
	return c.JSON(http.StatusOK, events)
}

// GetAgentCapacity reports an agent's capacity state for the current day.
// GET /api/v1/agents/:id/capacity
func (h *AssignmentHandler) GetAgentCapacity(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	agentID := c.Param("id")

	snapshot, err := h.engine.Snapshot(ctx, agentID)
	if err != nil {
		if errors.Is(err, assignment.ErrUnknownAgent) {
			return apierrors.NotFoundError(c, "Agent")
		}
		return apierrors.InternalError(c, err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

// mapAssignError translates the engine's expected manual-assign outcomes to
// HTTP responses. Returns nil for errors the caller should treat as internal.
func (h *AssignmentHandler) mapAssignError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, assignment.ErrUnknownLead):
		return apierrors.NotFoundError(c, "Lead")
	case errors.Is(err, assignment.ErrUnknownAgent):
		return apierrors.NotFoundError(c, "Agent")
	case errors.Is(err, assignment.ErrAgentInactive):
		h.recordRejection("manual", "agent_inactive")
		return apierrors.UnprocessableError(c, "agent_inactive", "Agent is not active")
	case errors.Is(err, assignment.ErrLanguageMismatch):
		h.recordRejection("manual", "language_mismatch")
		return apierrors.UnprocessableError(c, "language_mismatch", "Agent does not support the lead's language")
	case errors.Is(err, assignment.ErrCapacityExceeded):
		h.recordRejection("manual", "capacity_exceeded")
		return apierrors.UnprocessableError(c, "capacity_exceeded", "Agent is at daily capacity")
	case errors.Is(err, assignment.ErrAssignmentConflict):
		return apierrors.ConflictError(c, "Lead ownership changed, retry the assignment")
	}
	return nil
}

func (h *AssignmentHandler) recordOutcome(mode string, decision *assignment.Decision) {
	if h.metrics == nil {
		return
	}
	outcome := "assigned"
	if !decision.Assigned {
		outcome = decision.Reason
	}
	h.metrics.RecordAssignment(mode, outcome)
}

func (h *AssignmentHandler) recordRejection(mode, reason string) {
	if h.metrics != nil {
		h.metrics.RecordAssignment(mode, reason)
	}
}
