package completion

import (
	"testing"
	"time"

	"github.com/labops/runcontrol/internal/run"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type notifierSpy struct {
	fired int
}

func (n *notifierSpy) AllInstructionsComplete() { n.fired++ }

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
		}
		if completed[seq] {
			at := now
			instr.CompletedAt = &at
		}
		r.Instructions = append(r.Instructions, instr)
	}

	return r
}

func complete(r run.Run, seq int) run.Run {
	instr, _ := r.Instruction(seq)
	at := time.Now().UTC()
	instr.CompletedAt = &at
	return r.WithInstruction(instr)
}

func TestSnapEmptyRun(t *testing.T) {
	snapshot := Snap(nil)
	assert.Equal(t, -1, snapshot.LastCompletedIndex)
	assert.False(t, snapshot.Converged())
}

func TestSnapNoPrefix(t *testing.T) {
	snapshot := Snap(testRun(4).Sorted())
	assert.Equal(t, -1, snapshot.LastCompletedIndex)
	assert.Empty(t, snapshot.LastCompletedID)
	assert.Equal(t, "ia", snapshot.NextToCompleteID)
}

func TestSnapContiguousPrefix(t *testing.T) {
	snapshot := Snap(testRun(5, 0, 1, 2).Sorted())
	assert.Equal(t, 2, snapshot.LastCompletedIndex)
	assert.Equal(t, "ic", snapshot.LastCompletedID)
	assert.Equal(t, "id", snapshot.NextToCompleteID)
}

func TestSnapStopsAtGap(t *testing.T) {
	// 0 and 1 done, 2 pending, 3 done: prefix ends at 1.
	snapshot := Snap(testRun(5, 0, 1, 3).Sorted())
	assert.Equal(t, 1, snapshot.LastCompletedIndex)
	assert.Equal(t, "ib", snapshot.LastCompletedID)
	assert.Equal(t, "ic", snapshot.NextToCompleteID)
	assert.False(t, snapshot.Converged())
}

func TestSnapAllComplete(t *testing.T) {
	snapshot := Snap(testRun(3, 0, 1, 2).Sorted())
	assert.True(t, snapshot.Converged())
	assert.Empty(t, snapshot.NextToCompleteID)
}

type TrackerSuite struct {
	suite.Suite
	notifier *notifierSpy
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerSuite))
}

func (s *TrackerSuite) SetupTest() {
	s.notifier = &notifierSpy{}
}

func (s *TrackerSuite) TestBulkCompleteConvergesOnce() {
	r := testRun(10, 0, 1, 2)
	tracker := NewTracker(r, s.notifier)

	tracker.StartBulkComplete(r)
	s.Require().True(tracker.InProgress())
	s.Equal("id", tracker.Snapshot().NextToCompleteID)

	for seq := 3; seq < 10; seq++ {
		r = complete(r, seq)
		tracker.OnCompletionEvent(r)
	}

	s.False(tracker.InProgress())
	s.Equal(1, s.notifier.fired)
	s.True(tracker.Snapshot().Converged())
}

func (s *TrackerSuite) TestNeverDoubleFires() {
	r := testRun(3, 0, 1)
	tracker := NewTracker(r, s.notifier)
	tracker.StartBulkComplete(r)

	r = complete(r, 2)
	tracker.OnCompletionEvent(r)
	tracker.OnCompletionEvent(r)
	tracker.OnCompletionEvent(r)

	s.Equal(1, s.notifier.fired)
}

func (s *TrackerSuite) TestStartAgainstConvergedRunIsNoop() {
	r := testRun(3, 0, 1, 2)
	tracker := NewTracker(r, s.notifier)

	tracker.StartBulkComplete(r)
	s.False(tracker.InProgress())

	tracker.OnCompletionEvent(r)
	s.Zero(s.notifier.fired)
}

func (s *TrackerSuite) TestStartAgainstEmptyRunIsNoop() {
	r := testRun(0)
	tracker := NewTracker(r, s.notifier)

	tracker.StartBulkComplete(r)
	s.False(tracker.InProgress(), "nothing to converge on")

	tracker.OnCompletionEvent(r)
	s.Zero(s.notifier.fired)
}

func (s *TrackerSuite) TestNoNotificationWithoutStart() {
	r := testRun(2, 0)
	tracker := NewTracker(r, s.notifier)

	r = complete(r, 1)
	tracker.OnCompletionEvent(r)

	s.Zero(s.notifier.fired)
	s.True(tracker.Snapshot().Converged())
}

func (s *TrackerSuite) TestOutOfOrderEventsStillConverge() {
	r := testRun(4)
	tracker := NewTracker(r, s.notifier)
	tracker.StartBulkComplete(r)

	// events arrive out of sequence order
	for _, seq := range []int{2, 0, 3, 1} {
		r = complete(r, seq)
		tracker.OnCompletionEvent(r)
	}

	s.Equal(1, s.notifier.fired)
	s.False(tracker.InProgress())
}

func (s *TrackerSuite) TestSnapshotUpdatedDuringProgress() {
	r := testRun(4)
	tracker := NewTracker(r, s.notifier)
	tracker.StartBulkComplete(r)

	r = complete(r, 0)
	tracker.OnCompletionEvent(r)

	snapshot := tracker.Snapshot()
	require.Equal(s.T(), 0, snapshot.LastCompletedIndex)
	s.Equal("ia", snapshot.LastCompletedID)
	s.Equal("ib", snapshot.NextToCompleteID)
}
