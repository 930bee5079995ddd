package attempt

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultSeconds is the countdown length used when none is configured.
	DefaultSeconds = 300
	// DefaultTick is the interval between countdown decrements.
	DefaultTick = time.Second
)

// Countdown decrements once per tick and calls onExpire exactly once when it
// reaches zero. Stop tears it down without firing expiry.
type Countdown struct {
	remaining atomic.Int64
	tick      time.Duration
	onTick    func(remaining int)
	onExpire  func()

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewCountdown creates a countdown of seconds ticks. Non-positive values fall
// back to DefaultSeconds and DefaultTick. Either callback may be nil.
func NewCountdown(seconds int, tick time.Duration, onTick func(remaining int), onExpire func()) *Countdown {
	if seconds <= 0 {
		seconds = DefaultSeconds
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	c := &Countdown{
		tick:     tick,
		onTick:   onTick,
		onExpire: onExpire,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.remaining.Store(int64(seconds))
	return c
}

// Start runs the countdown in its own goroutine.
func (c *Countdown) Start(ctx context.Context) {
	go c.Run(ctx)
}

// Run blocks until the countdown expires, is stopped, or ctx is cancelled.
func (c *Countdown) Run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			left := int(c.remaining.Add(-1))
			if c.stopped() {
				return
			}
			if c.onTick != nil {
				c.onTick(left)
			}
			if left <= 0 {
				if c.onExpire != nil && !c.stopped() {
					c.onExpire()
				}
				return
			}
		}
	}
}

// Stop halts the countdown without firing expiry. Safe to call repeatedly.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Remaining returns the number of ticks left.
func (c *Countdown) Remaining() int {
	n := c.remaining.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Done is closed once the run loop has exited.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

func (c *Countdown) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}
