package client

import (
	"context"
	"fmt"
	"net/http"
)

// WorkcellType distinguishes execution targets that can schedule a
// subset of instructions from those that cannot.
type WorkcellType string

const (
	// WorkcellStandard schedules any subset of instructions.
	WorkcellStandard WorkcellType = "standard"
	// WorkcellIntegration packages work into a single downloadable
	// archive and only accepts all-or-nothing submissions.
	WorkcellIntegration WorkcellType = "integration"
)

// Workcell is a physical or virtual execution target.
type Workcell struct {
	ID         string       `json:"id"`
	WorkcellID string       `json:"workcell_id"` // external key
	Name       string       `json:"name"`
	Type       WorkcellType `json:"type"`
	IsTest     bool         `json:"is_test"`
}

// Session is a logical grouping on a workcell a schedule request can
// attach to.
type Session struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// WorkcellsService exposes workcell and session listing.
type WorkcellsService struct {
	client *Client
}

// List fetches the workcells available to a lab.
func (s *WorkcellsService) List(ctx context.Context, labID string) ([]Workcell, error) {
	endpoint := s.client.resolve(fmt.Sprintf("/labs/%s/workcells", labID))

	var payload []Workcell
	if err := s.client.do(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, fmt.Errorf("list workcells: %w", err)
	}

	return payload, nil
}

// Sessions fetches the open sessions on a workcell.
func (s *WorkcellsService) Sessions(ctx context.Context, workcellID string) ([]Session, error) {
	endpoint := s.client.resolve(fmt.Sprintf("/workcells/%s/sessions", workcellID))

	var payload []Session
	if err := s.client.do(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return payload, nil
}
