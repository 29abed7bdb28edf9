package verification

import (
	"fmt"
	"sync"
	"time"
)

// countdownMessage renders the text shown while a failed session waits to close.
func countdownMessage(base string, remaining int) string {
	return fmt.Sprintf("%s Auto closing in %ds...", base, remaining)
}

// Countdown decrements once per tick from its start value and fires the
// expire callback when it reaches zero. Cancel stops it before that.
type Countdown struct {
	tick     time.Duration
	onTick   func(remaining int)
	onExpire func()

	mu        sync.Mutex
	remaining int
	stopped   bool
	stop      chan struct{}

	// beforeTick runs between the decrement and the tick callback.
	beforeTick func()
}

// StartCountdown begins counting down from seconds. onTick receives every
// decremented value above zero; onExpire runs once when zero is reached.
func StartCountdown(seconds int, tick time.Duration, onTick func(remaining int), onExpire func()) *Countdown {
	c := newCountdown(seconds, tick, onTick, onExpire)
	go c.run()
	return c
}

func newCountdown(seconds int, tick time.Duration, onTick func(remaining int), onExpire func()) *Countdown {
	if tick <= 0 {
		tick = time.Second
	}
	return &Countdown{
		tick:      tick,
		onTick:    onTick,
		onExpire:  onExpire,
		remaining: seconds,
		stop:      make(chan struct{}),
	}
}

func (c *Countdown) run() {
	timer := time.NewTimer(c.tick)
	defer timer.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-timer.C:
		}

		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			return
		}
		c.remaining--
		remaining := c.remaining
		expired := remaining <= 0
		if expired {
			c.stopped = true
		}
		c.mu.Unlock()

		if expired {
			if c.onExpire != nil {
				c.onExpire()
			}
			return
		}

		if c.beforeTick != nil {
			c.beforeTick()
		}

		// A Cancel since the decrement suppresses this tick.
		c.mu.Lock()
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			return
		}

		if c.onTick != nil {
			c.onTick(remaining)
		}
		timer.Reset(c.tick)
	}
}

// Remaining returns the current value.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Cancel stops the countdown. Safe to call more than once and from inside
// its own callbacks.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stop)
}
