package selection

import (
	"testing"
	"time"

	"github.com/labops/runcontrol/internal/run"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type drawerSpy struct {
	opens  int
	closes int
}

func (d *drawerSpy) OpenDrawer()  { d.opens++ }
func (d *drawerSpy) CloseDrawer() { d.closes++ }

func testRun(total int, completedSeqs ...int) run.Run {
	completed := make(map[int]bool, len(completedSeqs))
	for _, seq := range completedSeqs {
		completed[seq] = true
	}

	r := run.Run{ID: "r1", Status: run.StatusInProgress}
	now := time.Now().UTC()

	for seq := 0; seq < total; seq++ {
		instr := run.Instruction{
			ID:         "i" + string(rune('a'+seq)),
			SequenceNo: seq,
			Operation:  run.Operation{Kind: "spin"},
		}
		if completed[seq] {
			at := now
			instr.CompletedAt = &at
		}
		r.Instructions = append(r.Instructions, instr)
	}

	return r
}

type SelectionSuite struct {
	suite.Suite
	drawer *drawerSpy
}

func TestSelectionSuite(t *testing.T) {
	suite.Run(t, new(SelectionSuite))
}

func (s *SelectionSuite) SetupTest() {
	s.drawer = &drawerSpy{}
}

func (s *SelectionSuite) TestShiftRangeSelect() {
	m := New(testRun(10), s.drawer)

	m.Toggle(3, false)
	m.Toggle(7, true)

	s.Equal([]int{3, 4, 5, 6, 7}, m.Sequences())

	anchor, ok := m.Anchor()
	s.Require().True(ok)
	s.Equal(7, anchor)
}

func (s *SelectionSuite) TestShiftRangeSkipsCompleted() {
	m := New(testRun(10, 4, 5), s.drawer)

	m.Toggle(3, false)
	m.Toggle(7, true)

	s.Equal([]int{3, 6, 7}, m.Sequences())
	s.False(m.Selected(4))
	s.False(m.Selected(5))
}

func (s *SelectionSuite) TestToggleCompletedStaysUnselected() {
	m := New(testRun(4, 2), s.drawer)

	m.Toggle(2, false)

	s.False(m.Selected(2))
	s.Zero(m.Count())
}

func (s *SelectionSuite) TestShiftWithoutAnchorActsAsPlainToggle() {
	m := New(testRun(5), s.drawer)

	m.Toggle(2, true)

	s.Equal([]int{2}, m.Sequences())
}

func (s *SelectionSuite) TestRangeAssignmentIsIdempotent() {
	m := New(testRun(10), s.drawer)

	m.Toggle(1, false)
	m.Toggle(1, false) // back to empty, anchor stays 1
	m.Toggle(6, true)
	first := m.Sequences()

	m2 := New(testRun(10), s.drawer)
	m2.Toggle(1, false)
	m2.Toggle(1, false)
	m2.Toggle(6, true)

	s.Equal(first, m2.Sequences())
	s.Equal([]int{1, 2, 3, 4, 5, 6}, first)
}

func (s *SelectionSuite) TestSelectAllTogglesBetweenNoneAndAll() {
	m := New(testRun(6, 0, 1), s.drawer)

	m.SelectAll()
	s.Equal([]int{2, 3, 4, 5}, m.Sequences())

	m.SelectAll()
	s.Zero(m.Count())
}

func (s *SelectionSuite) TestSelectAllClearsPartialSelection() {
	m := New(testRun(6), s.drawer)

	m.Toggle(2, false)
	m.SelectAll()

	s.Zero(m.Count())
}

func (s *SelectionSuite) TestDrawerNotifiedOnBoundaryOnly() {
	m := New(testRun(6), s.drawer)

	m.Toggle(1, false)
	s.Equal(1, s.drawer.opens)

	m.Toggle(2, false)
	m.Toggle(3, false)
	s.Equal(1, s.drawer.opens)
	s.Zero(s.drawer.closes)

	m.Toggle(1, false)
	m.Toggle(2, false)
	s.Zero(s.drawer.closes)

	m.Toggle(3, false)
	s.Equal(1, s.drawer.closes)
}

func (s *SelectionSuite) TestSetRunDropsNewlyCompleted() {
	r := testRun(5)
	m := New(r, s.drawer)
	m.SelectAll()
	s.Equal(5, m.Count())

	m.SetRun(testRun(5, 0, 1))

	s.Equal([]int{2, 3, 4}, m.Sequences())
}

func (s *SelectionSuite) TestSetRunClosingSelectionClosesDrawer() {
	m := New(testRun(2), s.drawer)
	m.Toggle(0, false)
	m.Toggle(1, false)

	m.SetRun(testRun(2, 0, 1))

	s.Zero(m.Count())
	s.Equal(1, s.drawer.closes)
}

func (s *SelectionSuite) TestToggleHumanIgnoresCompleted() {
	m := New(testRun(6, 2), s.drawer)

	m.Toggle(0, false)
	m.ToggleHuman(4, true)

	for seq := 0; seq < 4; seq++ {
		instr, ok := m.run.Instruction(seq)
		s.Require().True(ok)
		s.True(m.EffectiveHuman(instr), "seq %d", seq)
	}
}

func TestEffectiveHumanResolutionOrder(t *testing.T) {
	r := testRun(3)
	yes := true
	r.Instructions[1].Operation.XHuman = &yes
	r.Instructions[2].IsHumanByDefault = true

	m := New(r, nil)

	assert.False(t, m.EffectiveHuman(r.Instructions[0]))
	assert.True(t, m.EffectiveHuman(r.Instructions[1]))
	assert.True(t, m.EffectiveHuman(r.Instructions[2]))

	// explicit override wins over both defaults
	m.ToggleHuman(1, false)
	assert.False(t, m.EffectiveHuman(r.Instructions[1]))

	m.ToggleHuman(0, false)
	assert.True(t, m.EffectiveHuman(r.Instructions[0]))
}

func TestHumanSequences(t *testing.T) {
	r := testRun(4)
	m := New(r, nil)

	m.Toggle(0, false)
	m.Toggle(2, false)
	m.ToggleHuman(2, false)

	require.Equal(t, []int{0, 2}, m.Sequences())
	assert.Equal(t, []int{2}, m.HumanSequences())
}
