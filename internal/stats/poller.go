// Package stats refreshes scheduler statistics on a fixed interval,
// independent of any schedule request in flight.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/labops/runcontrol/pkg/client"
	"github.com/labops/runcontrol/pkg/log"
)

// Getter fetches current scheduler statistics. client.StatsService
// satisfies it.
type Getter interface {
	Get(ctx context.Context) (*client.SchedulerStats, error)
}

// Poller fetches stats every interval and hands them to onUpdate.
// It runs on its own ticker and never shares the schedule request
// poll queue; a slow stats fetch must not delay request polling and
// vice versa.
type Poller struct {
	getter   Getter
	interval time.Duration
	onUpdate func(*client.SchedulerStats)

	stop chan struct{}
	once sync.Once
}

// NewPoller builds a poller. A non-positive interval defaults to 10s.
func NewPoller(getter Getter, interval time.Duration, onUpdate func(*client.SchedulerStats)) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &Poller{
		getter:   getter,
		interval: interval,
		onUpdate: onUpdate,
		stop:     make(chan struct{}),
	}
}

// Start fetches once immediately, then loops until Close. Fetch
// failures are logged and the loop keeps going.
func (p *Poller) Start() {
	go func() {
		p.refresh()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.refresh()
			}
		}
	}()
}

// Close stops the loop. Safe to call more than once.
func (p *Poller) Close() {
	p.once.Do(func() { close(p.stop) })
}

func (p *Poller) refresh() {
	stats, err := p.getter.Get(context.Background())
	if err != nil {
		log.Warn("scheduler stats refresh failed", "error", err)
		return
	}

	if p.onUpdate != nil {
		p.onUpdate(stats)
	}
}
