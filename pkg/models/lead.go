package models

// CreateLeadRequest ingests a new lead
type CreateLeadRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Language string `json:"language" validate:"required,min=2"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Country  string `json:"country,omitempty" validate:"omitempty,len=2"`
}

// UpdateLeadStatusRequest moves a lead through the pipeline
type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=uncontacted hot sold not_interested blocked wrong_info"`
}

// ManualAssignRequest assigns a lead to a named agent
type ManualAssignRequest struct {
	AgentID string `json:"agent_id" validate:"required"`
}

// BulkAssignRequest assigns a batch of leads to one agent
type BulkAssignRequest struct {
	LeadIDs []string `json:"lead_ids" validate:"required,min=1,dive,required"`
	AgentID string   `json:"agent_id" validate:"required"`
}
