package schedule

import (
	"context"
	"errors"
	"sync"

	"github.com/labops/runcontrol/pkg/client"
	"github.com/labops/runcontrol/pkg/log"
)

// Confirmer is the confirmation dialog collaborator: it is handed the
// pending soft-constraint warnings and later reports the operator's
// decision by calling Accept or Decline on the gate.
type Confirmer interface {
	ConfirmWarnings(warnings map[string]string)
}

// WarningsGate wraps the coordinator's submit path. The first attempt
// always goes out unforced; a soft-constraint rejection parks the
// request and opens the confirmation dialog instead of surfacing an
// error. Accepting resubmits the identical parameters with force set.
type WarningsGate struct {
	coord     *Coordinator
	confirmer Confirmer

	mu       sync.Mutex
	pending  *client.SubmitRequest
	warnings map[string]string
}

// NewWarningsGate wraps a coordinator.
func NewWarningsGate(coord *Coordinator, confirmer Confirmer) *WarningsGate {
	return &WarningsGate{coord: coord, confirmer: confirmer}
}

// Submit attempts an unforced submission, intercepting warnings
// rejections. Hard failures pass through to the caller.
func (g *WarningsGate) Submit(ctx context.Context, req client.SubmitRequest) error {
	req.Force = false

	err := g.coord.Submit(ctx, req)

	var warnings *client.WarningsError
	if errors.As(err, &warnings) {
		g.mu.Lock()
		g.pending = &req
		g.warnings = warnings.Warnings
		g.mu.Unlock()

		if g.confirmer != nil {
			g.confirmer.ConfirmWarnings(warnings.Warnings)
		}
		return nil
	}

	return err
}

// Pending returns the warnings awaiting an operator decision.
func (g *WarningsGate) Pending() (map[string]string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.warnings, g.pending != nil
}

// Accept resubmits the parked request with identical parameters plus
// force. Warnings on a forced submission are ignored by contract and
// never reopen the dialog.
func (g *WarningsGate) Accept(ctx context.Context) error {
	g.mu.Lock()
	pending := g.pending
	g.pending = nil
	g.warnings = nil
	g.mu.Unlock()

	if pending == nil {
		return errors.New("no pending warnings to accept")
	}

	forced := *pending
	forced.Force = true

	err := g.coord.Submit(ctx, forced)

	var warnings *client.WarningsError
	if errors.As(err, &warnings) {
		log.Warn("forced submission still reported warnings",
			"run", forced.RunID, "count", len(warnings.Warnings))
		return nil
	}

	return err
}

// Decline discards the parked request. No further action is taken.
func (g *WarningsGate) Decline() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = nil
	g.warnings = nil
}
