package schedule

import (
	"sync"
	"time"
)

// countdown is a cancellable delay timer. Remaining time is recomputed
// from wall-clock elapsed time on every tick rather than counted down
// tick by tick, so paused or delayed timer callbacks cannot stretch
// the delay. Go's time package carries a monotonic reading, making
// the elapsed computation drift-free. Elapsing is edge-triggered
// exactly once.
type countdown struct {
	duration time.Duration
	tick     time.Duration
	started  time.Time

	mu       sync.Mutex
	stop     chan struct{}
	stopped  bool
}

// startCountdown begins ticking and invokes onElapsed from the timer
// goroutine once the duration has passed. Cancel prevents the
// callback if it has not fired yet.
func startCountdown(duration, tick time.Duration, onElapsed func()) *countdown {
	if tick <= 0 {
		tick = time.Second
	}

	c := &countdown{
		duration: duration,
		tick:     tick,
		started:  time.Now(),
		stop:     make(chan struct{}),
	}

	go c.loop(onElapsed)
	return c
}

func (c *countdown) loop(onElapsed func()) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if time.Since(c.started) < c.duration {
				continue
			}
			// claim the edge before firing so Cancel cannot race a
			// second fire
			if !c.finish() {
				return
			}
			onElapsed()
			return
		}
	}
}

// Remaining returns how much of the delay is left, floored at zero.
func (c *countdown) Remaining() time.Duration {
	remaining := c.duration - time.Since(c.started)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Cancel deterministically stops the countdown. It reports whether
// the timer was still pending; a false return means onElapsed already
// fired or the countdown was cancelled before.
func (c *countdown) Cancel() bool {
	return c.finish()
}

func (c *countdown) finish() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return false
	}
	c.stopped = true
	close(c.stop)
	return true
}
