package game

import (
	"testing"
	"time"
)

func TestCountdownTicksDown(t *testing.T) {
	c := NewCountdown(5, 5*time.Millisecond, func() {})
	c.Start()
	defer c.Stop()

	deadline := time.After(500 * time.Millisecond)
	for c.Remaining() > 2 {
		select {
		case <-deadline:
			t.Fatalf("remaining stuck at %d", c.Remaining())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestCountdownPauseFreezesClock(t *testing.T) {
	c := NewCountdown(100, 5*time.Millisecond, func() {})
	c.Start()
	defer c.Stop()

	c.Pause()
	before := c.Remaining()
	time.Sleep(50 * time.Millisecond)
	if got := c.Remaining(); got != before {
		t.Fatalf("remaining moved from %d to %d while paused", before, got)
	}

	// After resuming, a tick must land within one interval plus slack.
	c.Resume()
	time.Sleep(30 * time.Millisecond)
	if got := c.Remaining(); got >= before {
		t.Fatalf("remaining = %d after resume, want < %d", got, before)
	}
}

func TestCountdownExpiryFiresOnce(t *testing.T) {
	fired := make(chan struct{}, 2)
	c := NewCountdown(2, time.Millisecond, func() { fired <- struct{}{} })
	c.Start()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("onExpire never fired")
	}

	time.Sleep(20 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("onExpire fired twice")
	default:
	}
	if c.Remaining() != 0 {
		t.Fatalf("remaining = %d after expiry, want 0", c.Remaining())
	}
}

func TestCountdownStopPreventsExpiry(t *testing.T) {
	fired := make(chan struct{}, 1)
	c := NewCountdown(2, 5*time.Millisecond, func() { fired <- struct{}{} })
	c.Start()
	c.Stop()

	time.Sleep(50 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("onExpire fired after Stop")
	default:
	}
}
