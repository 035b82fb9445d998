package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/mehdierdemdede/leadflow/pkg/api/errors"
	"github.com/mehdierdemdede/leadflow/pkg/leads"
	"github.com/mehdierdemdede/leadflow/pkg/models"
	"github.com/mehdierdemdede/leadflow/pkg/roster"
)

// AgentHandler handles roster administration endpoints.
type AgentHandler struct {
	agents    roster.Store
	leadStore leads.Store
	validator *validator.Validate
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(agents roster.Store, leadStore leads.Store) *AgentHandler {
	return &AgentHandler{
		agents:    agents,
		leadStore: leadStore,
		validator: validator.New(),
	}
}

// CreateAgent registers a new agent on the roster.
// POST /api/v1/agents
func (h *AgentHandler) CreateAgent(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.CreateAgentRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if req.DailyCapacity == nil {
		return apierrors.ValidationError(c, fmt.Errorf("daily_capacity is required"))
	}

	autoAssign := true
	if req.AutoAssignEnabled != nil {
		autoAssign = *req.AutoAssignEnabled
	}

	agent, err := h.agents.Create(ctx, roster.CreateParams{
		Name:              req.Name,
		Email:             req.Email,
		Languages:         req.Languages,
		DailyCapacity:     *req.DailyCapacity,
		AutoAssignEnabled: autoAssign,
	})
	if err != nil {
		return apierrors.ValidationError(c, err)
	}
	return c.JSON(http.StatusCreated, agent)
}

// GetAgent returns one agent by ID.
// GET /api/v1/agents/:id
func (h *AgentHandler) GetAgent(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	agent, err := h.agents.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, roster.ErrAgentNotFound) {
			return apierrors.NotFoundError(c, "Agent")
		}
		return apierrors.InternalError(c, err)
	}
	return c.JSON(http.StatusOK, agent)
}

// ListAgents returns the roster; ?active=true narrows to active agents.
// GET /api/v1/agents
func (h *AgentHandler) ListAgents(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var (
		agents []*roster.Agent
		err    error
	)
	if c.QueryParam("active") == "true" {
		agents, err = h.agents.ListActive(ctx)
	} else {
		agents, err = h.agents.List(ctx)
	}
	if err != nil {
		return apierrors.InternalError(c, err)
	}
	if agents == nil {
		agents = []*roster.Agent{}
	}
	return c.JSON(http.StatusOK, agents)
}

// UpdateAgent applies a partial edit to an agent. Deactivating an agent or
// shrinking capacity never touches existing assignments.
// PATCH /api/v1/agents/:id
func (h *AgentHandler) UpdateAgent(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.UpdateAgentRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	agent, err := h.agents.Update(ctx, c.Param("id"), roster.Patch{
		Name:              req.Name,
		Active:            req.Active,
		AutoAssignEnabled: req.AutoAssignEnabled,
		Languages:         req.Languages,
		DailyCapacity:     req.DailyCapacity,
	})
	if err != nil {
		if errors.Is(err, roster.ErrAgentNotFound) {
			return apierrors.NotFoundError(c, "Agent")
		}
		return apierrors.ValidationError(c, err)
	}
	return c.JSON(http.StatusOK, agent)
}

// GetAgentLeads returns the leads currently assigned to an agent.
// GET /api/v1/agents/:id/leads
func (h *AgentHandler) GetAgentLeads(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	agentID := c.Param("id")
	if _, err := h.agents.Get(ctx, agentID); err != nil {
		if errors.Is(err, roster.ErrAgentNotFound) {
			return apierrors.NotFoundError(c, "Agent")
		}
		return apierrors.InternalError(c, err)
	}

	assigned, err := h.leadStore.ListAssignedTo(ctx, agentID)
	if err != nil {
		return apierrors.InternalError(c, err)
	}
	if assigned == nil {
		assigned = []*leads.Lead{}
	}
	return c.JSON(http.StatusOK, assigned)
}
