package models

// CreateAgentRequest registers a new agent on the roster
type CreateAgentRequest struct {
	Name              string   `json:"name" validate:"required,min=2"`
	Email             string   `json:"email" validate:"omitempty,email"`
	Languages []string `json:"languages" validate:"required,min=1,dive,min=2"`
	// Pointer so an explicit 0 (benched agent) survives validation; the
	// handler rejects a missing value.
	DailyCapacity     *int  `json:"daily_capacity" validate:"omitempty,min=0,max=1000"`
	AutoAssignEnabled *bool `json:"auto_assign_enabled,omitempty"`
}

// UpdateAgentRequest partially edits an agent; omitted fields are untouched
type UpdateAgentRequest struct {
	Name              *string   `json:"name,omitempty" validate:"omitempty,min=2"`
	Active            *bool     `json:"active,omitempty"`
	AutoAssignEnabled *bool     `json:"auto_assign_enabled,omitempty"`
	Languages         *[]string `json:"languages,omitempty" validate:"omitempty,min=1,dive,min=2"`
	DailyCapacity     *int      `json:"daily_capacity,omitempty" validate:"omitempty,min=0,max=1000"`
}
