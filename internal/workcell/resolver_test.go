package workcell

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/labops/runcontrol/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWorkcells = []client.Workcell{
	{ID: "1", WorkcellID: "wc-main", Name: "Main", Type: client.WorkcellStandard},
	{ID: "2", WorkcellID: "wc-int", Name: "Integration", Type: client.WorkcellIntegration},
	{ID: "3", WorkcellID: "wc-virt", Name: "Virtual", Type: client.WorkcellStandard, IsTest: true},
}

func TestEligibleFullSelectionReturnsAll(t *testing.T) {
	got := Eligible(testWorkcells, 5, 5)
	assert.Len(t, got, 3)
}

func TestEligiblePartialSelectionExcludesIntegration(t *testing.T) {
	got := Eligible(testWorkcells, 3, 5)

	require.Len(t, got, 2)
	for _, wc := range got {
		assert.NotEqual(t, client.WorkcellIntegration, wc.Type)
	}
}

func TestEligibleEmptySelection(t *testing.T) {
	got := Eligible(testWorkcells, 0, 5)
	assert.Len(t, got, 2)
}

type listerSpy struct {
	mu       sync.Mutex
	calls    int
	sessions []client.Session
	err      error
}

func (l *listerSpy) Sessions(_ context.Context, _ string) ([]client.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.sessions, l.err
}

func (l *listerSpy) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestSessionsForCachesPerWorkcell(t *testing.T) {
	lister := &listerSpy{sessions: []client.Session{{ID: "s1", Label: "morning"}}}
	r := NewResolver(lister)

	first, err := r.SessionsFor(context.Background(), "wc-main")
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = r.SessionsFor(context.Background(), "wc-main")
	require.NoError(t, err)
	assert.Equal(t, 1, lister.count())
}

func TestSessionsForConcurrentLookups(t *testing.T) {
	lister := &listerSpy{sessions: []client.Session{{ID: "s1"}}}
	r := NewResolver(lister)

	// session fetches run on their own goroutines in the console; two
	// quick workcell switches must not corrupt the cache
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		workcellID := "wc-main"
		if i%2 == 0 {
			workcellID = "wc-int"
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			sessions, err := r.SessionsFor(context.Background(), workcellID)
			assert.NoError(t, err)
			assert.Len(t, sessions, 1)
		}()
	}
	wg.Wait()

	// every call either hit the cache or refetched after an
	// invalidation; never more fetches than calls
	assert.LessOrEqual(t, lister.count(), 20)
	assert.GreaterOrEqual(t, lister.count(), 1)
}

func TestSessionsForInvalidatesOnWorkcellChange(t *testing.T) {
	lister := &listerSpy{}
	r := NewResolver(lister)

	_, err := r.SessionsFor(context.Background(), "wc-main")
	require.NoError(t, err)

	_, err = r.SessionsFor(context.Background(), "wc-int")
	require.NoError(t, err)

	// returning to the first workcell refetches; its cache was reset
	_, err = r.SessionsFor(context.Background(), "wc-main")
	require.NoError(t, err)

	assert.Equal(t, 3, lister.count())
}

func TestSessionsForPropagatesError(t *testing.T) {
	lister := &listerSpy{err: errors.New("listing failed")}
	r := NewResolver(lister)

	_, err := r.SessionsFor(context.Background(), "wc-main")
	assert.Error(t, err)
}
