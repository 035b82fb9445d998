package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/mehdierdemdede/leadflow/pkg/api/errors"
	"github.com/mehdierdemdede/leadflow/pkg/leads"
	"github.com/mehdierdemdede/leadflow/pkg/metrics"
	"github.com/mehdierdemdede/leadflow/pkg/models"
)

// LeadHandler handles lead CRUD endpoints.
type LeadHandler struct {
	service   *leads.Service
	store     leads.Store
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewLeadHandler creates a new lead handler.
func NewLeadHandler(service *leads.Service, store leads.Store, m *metrics.Metrics) *LeadHandler {
	return &LeadHandler{
		service:   service,
		store:     store,
		metrics:   m,
		validator: validator.New(),
	}
}

// CreateLead ingests a new lead.
// POST /api/v1/leads
func (h *LeadHandler) CreateLead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.CreateLeadRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	lead, err := h.service.Create(ctx, leads.CreateLeadParams{
		Name:     req.Name,
		Language: req.Language,
		Phone:    req.Phone,
		Email:    req.Email,
		Country:  req.Country,
	})
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordLeadCreated()
	}
	return c.JSON(http.StatusCreated, lead)
}

// GetLead returns one lead by ID.
// GET /api/v1/leads/:id
func (h *LeadHandler) GetLead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	lead, err := h.service.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			return apierrors.NotFoundError(c, "Lead")
		}
		return apierrors.InternalError(c, err)
	}
	return c.JSON(http.StatusOK, lead)
}

// ListLeads returns all leads; ?unassigned=true narrows to the unassigned pool.
// GET /api/v1/leads
func (h *LeadHandler) ListLeads(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var (
		result []*leads.Lead
		err    error
	)
	if c.QueryParam("unassigned") == "true" {
		result, err = h.store.ListUnassigned(ctx)
	} else {
		result, err = h.service.List(ctx)
	}
	if err != nil {
		return apierrors.InternalError(c, err)
	}
	if result == nil {
		result = []*leads.Lead{}
	}
	return c.JSON(http.StatusOK, result)
}

// UpdateLeadStatus moves a lead through the pipeline.
// PATCH /api/v1/leads/:id/status
func (h *LeadHandler) UpdateLeadStatus(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.UpdateLeadStatusRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	lead, err := h.service.UpdateStatus(ctx, c.Param("id"), leads.Status(req.Status))
	if err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			return apierrors.NotFoundError(c, "Lead")
		}
		return apierrors.ValidationError(c, err)
	}
	return c.JSON(http.StatusOK, lead)
}
