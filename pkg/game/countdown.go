package game

import (
	"sync"
	"time"
)

// Countdown is the per-session wall-clock timer. It ticks down once per
// interval while running and unpaused; reaching zero fires onExpire exactly
// once. Pause and Resume couple it to AI playback so the clock never runs
// while the user is listening instead of talking.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	paused    bool
	stopped   bool
	started   bool

	interval time.Duration
	onExpire func()
	done     chan struct{}
}

// NewCountdown creates a countdown holding seconds ticks. The interval is
// the wall-clock length of one tick; production uses time.Second, tests
// shrink it. onExpire runs on the timer goroutine.
func NewCountdown(seconds int, interval time.Duration, onExpire func()) *Countdown {
	if seconds <= 0 {
		seconds = 120
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{
		remaining: seconds,
		interval:  interval,
		onExpire:  onExpire,
		done:      make(chan struct{}),
	}
}

// Start launches the ticking goroutine. Subsequent calls are no-ops.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run()
}

func (c *Countdown) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.tick() {
				c.onExpire()
				return
			}
		}
	}
}

// tick decrements the counter and reports whether it just expired.
func (c *Countdown) tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused || c.stopped || c.remaining <= 0 {
		return false
	}
	c.remaining--
	if c.remaining == 0 {
		c.stopped = true
		return true
	}
	return false
}

// Pause freezes the counter. Safe to call repeatedly.
func (c *Countdown) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Resume unfreezes the counter. The next tick lands within one interval.
func (c *Countdown) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
}

// Stop halts the countdown permanently without firing onExpire.
func (c *Countdown) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()
	close(c.done)
}

// Remaining returns the ticks left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}
