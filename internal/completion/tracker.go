// Package completion derives how far sequential completion has
// progressed through a run's ordered instructions and detects
// convergence of bulk mark-complete operations.
package completion

import (
	"github.com/labops/runcontrol/internal/run"
)

// Notifier receives the one-time signal that every instruction of the
// run has completed since bulk completion started.
type Notifier interface {
	AllInstructionsComplete()
}

// Snapshot is a derived view over the instruction list: how deep the
// contiguous completed prefix reaches and which instruction is next.
// It is recomputed from scratch on every observed completion event,
// never stored on the run.
type Snapshot struct {
	Total              int
	LastCompletedID    string
	LastCompletedIndex int
	NextToCompleteID   string
}

// Converged reports whether the completed prefix covers the whole run.
func (s Snapshot) Converged() bool {
	return s.Total > 0 && s.LastCompletedIndex+1 == s.Total
}

// Snap scans instructions in display order. It records the last
// instruction of the completed prefix starting at index 0; the first
// non-completed instruction it meets becomes NextToCompleteID and the
// scan stops advancing the prefix. Completed instructions after a gap
// do not count.
func Snap(instructions []run.Instruction) Snapshot {
	snapshot := Snapshot{
		Total:              len(instructions),
		LastCompletedIndex: -1,
	}

	for i, instr := range instructions {
		if !instr.Completed() {
			snapshot.NextToCompleteID = instr.ID
			break
		}
		snapshot.LastCompletedIndex = i
		snapshot.LastCompletedID = instr.ID
	}

	return snapshot
}

// Tracker watches completion events against a baseline captured when
// a bulk mark-complete starts, and fires the notifier exactly once
// when the run converges. It never fails on its own; it is purely
// derived state over instructions supplied by the caller.
type Tracker struct {
	notifier   Notifier
	snapshot   Snapshot
	inProgress bool
}

// NewTracker builds a tracker with an initial snapshot of the run.
func NewTracker(r run.Run, notifier Notifier) *Tracker {
	return &Tracker{
		notifier: notifier,
		snapshot: Snap(r.Sorted()),
	}
}

// Snapshot returns the last stored snapshot.
func (t *Tracker) Snapshot() Snapshot {
	return t.snapshot
}

// InProgress reports whether a bulk completion is being tracked.
func (t *Tracker) InProgress() bool {
	return t.inProgress
}

// StartBulkComplete captures the current snapshot as the baseline and
// begins watching for convergence. Starting against an already fully
// completed run is a no-op, and so is a run with no instructions —
// there is nothing left to converge on; convergence reached before
// the start never notifies.
func (t *Tracker) StartBulkComplete(r run.Run) {
	t.snapshot = Snap(r.Sorted())
	t.inProgress = t.snapshot.Total > 0 && !t.snapshot.Converged()
}

// OnCompletionEvent recomputes the snapshot after an external
// completion event. While a bulk completion is in progress, a
// structurally different snapshot replaces the stored one; reaching
// convergence stops tracking and notifies exactly once.
func (t *Tracker) OnCompletionEvent(r run.Run) {
	next := Snap(r.Sorted())

	if !t.inProgress {
		t.snapshot = next
		return
	}

	if next != t.snapshot {
		t.snapshot = next
	}

	if next.Converged() {
		t.inProgress = false
		if t.notifier != nil {
			t.notifier.AllInstructionsComplete()
		}
	}
}
