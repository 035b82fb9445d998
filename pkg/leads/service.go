package leads

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"

	"github.com/mehdierdemdede/leadflow/pkg/langcode"
	"github.com/mehdierdemdede/leadflow/pkg/logger"
)

// Service handles lead ingestion and lifecycle updates.
type Service struct {
	store Store
	log   logger.Logger
}

// NewService creates a new lead service.
func NewService(store Store, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{store: store, log: log}
}

// CreateLeadParams holds the fields accepted at ingestion.
type CreateLeadParams struct {
	Name     string
	Language string
	Phone    string
	Email    string
	// Country is an ISO region hint ("TR", "US") used to parse national
	// phone formats. Optional when the phone is already in E.164.
	Country string
}

// Create validates and normalizes an inbound lead, then stores it with status
// uncontacted. Phone numbers are canonicalized to E.164.
func (s *Service) Create(ctx context.Context, params CreateLeadParams) (*Lead, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("lead name is required")
	}

	lang, err := langcode.Normalize(params.Language)
	if err != nil {
		return nil, err
	}

	phone := strings.TrimSpace(params.Phone)
	if phone != "" {
		num, err := phonenumbers.Parse(phone, strings.ToUpper(params.Country))
		if err != nil {
			return nil, fmt.Errorf("invalid phone number %q: %w", phone, err)
		}
		if !phonenumbers.IsValidNumber(num) {
			return nil, fmt.Errorf("invalid phone number %q", phone)
		}
		phone = phonenumbers.Format(num, phonenumbers.E164)
	}

	now := time.Now().UTC()
	lead := &Lead{
		ID:        uuid.New().String(),
		Name:      params.Name,
		Language:  lang,
		Phone:     phone,
		Email:     strings.TrimSpace(params.Email),
		Status:    StatusUncontacted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Put(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to store lead: %w", err)
	}

	s.log.Info("lead created", "lead_id", lead.ID, "language", lead.Language)
	return lead, nil
}

// Get returns a lead by ID.
func (s *Service) Get(ctx context.Context, id string) (*Lead, error) {
	return s.store.Get(ctx, id)
}

// List returns all leads.
func (s *Service) List(ctx context.Context) ([]*Lead, error) {
	return s.store.List(ctx)
}

// UpdateStatus moves a lead to a new lifecycle status.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Lead, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid lead status %q", status)
	}

	lead, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.log.Info("lead status updated", "lead_id", id, "status", status)
	return lead, nil
}
