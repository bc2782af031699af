package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/labops/runcontrol/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type getterSpy struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (g *getterSpy) Get(_ context.Context) (*client.SchedulerStats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail {
		return nil, errors.New("unreachable")
	}
	return &client.SchedulerStats{QueueDepth: g.calls}, nil
}

func (g *getterSpy) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestPollerDeliversUpdates(t *testing.T) {
	getter := &getterSpy{}

	var mu sync.Mutex
	var latest *client.SchedulerStats

	p := NewPoller(getter, 10*time.Millisecond, func(s *client.SchedulerStats) {
		mu.Lock()
		latest = s
		mu.Unlock()
	})
	p.Start()
	defer p.Close()

	require.Eventually(t, func() bool {
		return getter.count() >= 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, latest)
	assert.GreaterOrEqual(t, latest.QueueDepth, 1)
}

func TestPollerSurvivesFetchFailure(t *testing.T) {
	getter := &getterSpy{fail: true}

	var mu sync.Mutex
	updated := false

	p := NewPoller(getter, 10*time.Millisecond, func(*client.SchedulerStats) {
		mu.Lock()
		updated = true
		mu.Unlock()
	})
	p.Start()
	defer p.Close()

	require.Eventually(t, func() bool {
		return getter.count() >= 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, updated, "no update expected on failure")
}

func TestPollerCloseStops(t *testing.T) {
	getter := &getterSpy{}
	p := NewPoller(getter, 5*time.Millisecond, nil)
	p.Start()

	require.Eventually(t, func() bool {
		return getter.count() >= 1
	}, time.Second, time.Millisecond)

	p.Close()
	p.Close() // idempotent
	settled := getter.count()

	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, getter.count(), settled+1)
}
