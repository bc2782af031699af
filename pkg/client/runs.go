package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labops/runcontrol/internal/run"
)

// RunsService exposes run and instruction completion operations.
type RunsService struct {
	client *Client
}

// Get fetches the full run aggregate with its ordered instructions.
// A failure here is terminal for the view; callers do not retry.
func (s *RunsService) Get(ctx context.Context, runID string) (*run.Run, error) {
	endpoint := s.client.resolve(fmt.Sprintf("%s/runs/%s", s.client.prefix(), runID))

	var payload run.Run
	if err := s.client.do(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	return &payload, nil
}

// CompleteInstruction marks a single instruction complete and returns
// the updated instruction.
func (s *RunsService) CompleteInstruction(ctx context.Context, runID, instructionID string) (*run.Instruction, error) {
	endpoint := s.client.resolve(fmt.Sprintf(
		"%s/runs/%s/instructions/%s/complete",
		s.client.prefix(), runID, instructionID))

	var payload run.Instruction
	if err := s.client.do(ctx, http.MethodPost, endpoint, nil, &payload); err != nil {
		return nil, fmt.Errorf("complete instruction: %w", err)
	}

	return &payload, nil
}

// UndoInstruction clears an instruction's completion timestamp and
// returns the updated instruction.
func (s *RunsService) UndoInstruction(ctx context.Context, runID, instructionID string) (*run.Instruction, error) {
	endpoint := s.client.resolve(fmt.Sprintf(
		"%s/runs/%s/instructions/%s/undo",
		s.client.prefix(), runID, instructionID))

	var payload run.Instruction
	if err := s.client.do(ctx, http.MethodPost, endpoint, nil, &payload); err != nil {
		return nil, fmt.Errorf("undo instruction: %w", err)
	}

	return &payload, nil
}
