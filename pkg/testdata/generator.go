// Package testdata generates realistic agents and leads for local
// development and load testing.
package testdata

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/mehdierdemdede/leadflow/pkg/leads"
	"github.com/mehdierdemdede/leadflow/pkg/roster"
)

// AgentGeneratorConfig configures agent generation parameters
type AgentGeneratorConfig struct {
	Count       int
	Languages   []string // pool to draw from; each agent gets 1-3
	MinCapacity int
	MaxCapacity int
	// InactiveChance is the probability an agent is created inactive.
	InactiveChance float64
	// ManualOnlyChance is the probability auto-assign is disabled.
	ManualOnlyChance float64
}

// DefaultAgentConfig returns a spread that exercises every eligibility branch.
func DefaultAgentConfig(count int) AgentGeneratorConfig {
	return AgentGeneratorConfig{
		Count:            count,
		Languages:        []string{"en", "de", "tr", "es", "fr", "ru"},
		MinCapacity:      3,
		MaxCapacity:      15,
		InactiveChance:   0.1,
		ManualOnlyChance: 0.15,
	}
}

// GenerateAgents seeds the roster with fake agents.
func GenerateAgents(ctx context.Context, store roster.Store, cfg AgentGeneratorConfig) ([]*roster.Agent, error) {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"en"}
	}
	if cfg.MaxCapacity < cfg.MinCapacity {
		cfg.MaxCapacity = cfg.MinCapacity
	}

	agents := make([]*roster.Agent, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		langs := pickLanguages(cfg.Languages)

		agent, err := store.Create(ctx, roster.CreateParams{
			Name:              gofakeit.Name(),
			Email:             gofakeit.Email(),
			Languages:         langs,
			DailyCapacity:     cfg.MinCapacity + rand.Intn(cfg.MaxCapacity-cfg.MinCapacity+1),
			AutoAssignEnabled: rand.Float64() >= cfg.ManualOnlyChance,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create agent %d: %w", i, err)
		}

		if rand.Float64() < cfg.InactiveChance {
			inactive := false
			agent, err = store.Update(ctx, agent.ID, roster.Patch{Active: &inactive})
			if err != nil {
				return nil, err
			}
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

// LeadGeneratorConfig configures lead generation parameters
type LeadGeneratorConfig struct {
	Count     int
	Languages []string
	// PhoneChance is the probability a lead has a phone number.
	PhoneChance float64
	// EmailChance is the probability a lead has an email.
	EmailChance float64
}

// DefaultLeadConfig mirrors the shape of real inbound traffic.
func DefaultLeadConfig(count int) LeadGeneratorConfig {
	return LeadGeneratorConfig{
		Count:       count,
		Languages:   []string{"en", "de", "tr", "es"},
		PhoneChance: 0.8,
		EmailChance: 0.6,
	}
}

// GenerateLeads seeds the lead service with fake unassigned leads.
func GenerateLeads(ctx context.Context, svc *leads.Service, cfg LeadGeneratorConfig) ([]*leads.Lead, error) {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"en"}
	}

	out := make([]*leads.Lead, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		params := leads.CreateLeadParams{
			Name:     gofakeit.Name(),
			Language: cfg.Languages[rand.Intn(len(cfg.Languages))],
		}
		if rand.Float64() < cfg.PhoneChance {
			// gofakeit phone formats are not reliably parseable; use a
			// known-valid E.164 block instead.
			params.Phone = fmt.Sprintf("+1415555%04d", rand.Intn(10000))
		}
		if rand.Float64() < cfg.EmailChance {
			params.Email = gofakeit.Email()
		}

		lead, err := svc.Create(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("failed to create lead %d: %w", i, err)
		}
		out = append(out, lead)
	}
	return out, nil
}

func pickLanguages(pool []string) []string {
	n := 1 + rand.Intn(3)
	if n > len(pool) {
		n = len(pool)
	}
	idx := rand.Perm(len(pool))[:n]
	langs := make([]string, 0, n)
	for _, i := range idx {
		langs = append(langs, pool[i])
	}
	return langs
}
