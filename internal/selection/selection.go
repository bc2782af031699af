// Package selection tracks which instructions of a run are chosen for
// dispatch and which are flagged for human execution.
package selection

import (
	"sort"

	"github.com/labops/runcontrol/internal/run"
)

// DrawerNotifier is told when the selection transitions between empty
// and non-empty, so the dispatch drawer can open or close. It is not
// called on every toggle.
type DrawerNotifier interface {
	OpenDrawer()
	CloseDrawer()
}

// Model owns the ephemeral selection state for one run view: the
// selected set, the shift-range anchor, and per-instruction human
// execution overrides. It is driven from a single event loop and
// holds no locks.
type Model struct {
	run      run.Run
	drawer   DrawerNotifier
	selected map[int]bool
	human    map[int]bool
	anchor   int
	anchored bool
}

// New builds an empty selection over the given run.
func New(r run.Run, drawer DrawerNotifier) *Model {
	return &Model{
		run:      r,
		drawer:   drawer,
		selected: make(map[int]bool),
		human:    make(map[int]bool),
	}
}

// SetRun replaces the run the selection is tracked against. Any
// instruction that has completed since the last copy is dropped from
// the selected set; a completed instruction can never stay selected.
func (m *Model) SetRun(r run.Run) {
	m.transition(func() {
		m.run = r
		for seq := range m.selected {
			if instr, ok := r.Instruction(seq); ok && instr.Completed() {
				delete(m.selected, seq)
			}
		}
	})
}

// Toggle flips the selected flag for seq. With shiftHeld and an
// existing anchor, the resulting value is applied to every sequence
// number in [min(anchor, seq), max(anchor, seq)); completed
// instructions are forced unselected regardless of the computed
// value. The anchor moves to seq unconditionally.
func (m *Model) Toggle(seq int, shiftHeld bool) {
	m.transition(func() {
		value := !m.selected[seq]
		m.setSelected(seq, value)

		if shiftHeld && m.anchored {
			lo, hi := ordered(m.anchor, seq)
			for s := lo; s < hi; s++ {
				m.setSelected(s, value)
			}
		}

		m.anchor = seq
		m.anchored = true
	})
}

// SelectAll selects every non-completed instruction when nothing is
// selected, and clears the selection otherwise.
func (m *Model) SelectAll() {
	m.transition(func() {
		if m.count() > 0 {
			m.selected = make(map[int]bool)
			return
		}

		for _, instr := range m.run.Instructions {
			if !instr.Completed() {
				m.selected[instr.SequenceNo] = true
			}
		}
	})
}

// ToggleHuman flips the human execution override for seq, with the
// same shift-range semantics as Toggle but without the completed
// exclusion. The stored override flips relative to the instruction's
// current effective mode.
func (m *Model) ToggleHuman(seq int, shiftHeld bool) {
	value := true
	if instr, ok := m.run.Instruction(seq); ok {
		value = !m.EffectiveHuman(instr)
	}
	m.human[seq] = value

	if shiftHeld && m.anchored {
		lo, hi := ordered(m.anchor, seq)
		for s := lo; s < hi; s++ {
			m.human[s] = value
		}
	}

	m.anchor = seq
	m.anchored = true
}

// EffectiveHuman resolves whether an instruction executes by hand:
// an explicit override for this view wins, then the operation's
// declared default, then the instruction's own default.
func (m *Model) EffectiveHuman(instr run.Instruction) bool {
	if value, ok := m.human[instr.SequenceNo]; ok {
		return value
	}
	if instr.Operation.XHuman != nil {
		return *instr.Operation.XHuman
	}
	return instr.IsHumanByDefault
}

// Selected reports whether seq is selected.
func (m *Model) Selected(seq int) bool {
	return m.selected[seq]
}

// Count returns the number of selected instructions.
func (m *Model) Count() int {
	return m.count()
}

// Sequences returns the selected sequence numbers in order.
func (m *Model) Sequences() []int {
	seqs := make([]int, 0, len(m.selected))
	for seq, on := range m.selected {
		if on {
			seqs = append(seqs, seq)
		}
	}
	sort.Ints(seqs)
	return seqs
}

// HumanSequences returns the selected sequence numbers whose
// effective execution mode is human, in order.
func (m *Model) HumanSequences() []int {
	seqs := make([]int, 0)
	for _, seq := range m.Sequences() {
		if instr, ok := m.run.Instruction(seq); ok && m.EffectiveHuman(instr) {
			seqs = append(seqs, seq)
		}
	}
	return seqs
}

// Anchor returns the current range anchor, if one exists.
func (m *Model) Anchor() (int, bool) {
	return m.anchor, m.anchored
}

func (m *Model) setSelected(seq int, value bool) {
	if instr, ok := m.run.Instruction(seq); !ok || instr.Completed() {
		value = false
	}

	if value {
		m.selected[seq] = true
	} else {
		delete(m.selected, seq)
	}
}

func (m *Model) count() int {
	count := 0
	for _, on := range m.selected {
		if on {
			count++
		}
	}
	return count
}

// transition runs a mutation and notifies the drawer exactly on the
// empty to non-empty boundary in either direction.
func (m *Model) transition(mutate func()) {
	before := m.count()
	mutate()
	after := m.count()

	if m.drawer == nil {
		return
	}

	switch {
	case before == 0 && after > 0:
		m.drawer.OpenDrawer()
	case before > 0 && after == 0:
		m.drawer.CloseDrawer()
	}
}

func ordered(a, b int) (int, int) {
	if a <= b {
		return a, b
	}
	return b, a
}
