package canopen

import (
	"sort"
	"sync"
	"time"
)

// Timer is a scheduled callback owned by a Clock. The zero value is not
// usable; obtain one from Clock.NewTimer.
type Timer struct {
	clock    *Clock
	seq      uint64
	deadline time.Duration
	period   time.Duration
	callback func(now time.Duration) error
	armed    bool
}

// Stop cancels the timer. Stopping an already-stopped timer is a no-op, and
// is race-free as long as it is called from the clock's own callbacks or
// between SetTime calls (the single-threaded cooperative model of §5).
func (t *Timer) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.clock.remove(t)
}

// Reset reschedules the timer to fire `in` after the clock's current time,
// rearming it if it had fired and was not periodic.
func (t *Timer) Reset(in time.Duration) {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.clock.remove(t)
	t.deadline = t.clock.now + in
	t.clock.insert(t)
}

// Clock is a cooperative scheduler for the timers created through NewTimer.
// The protocol services in this module (heartbeat, NMT, PDO) do not use it:
// their timeouts and periods run on time.AfterFunc. Advancing it via
// SetTime fires every timer whose deadline has been reached, in deadline
// order with ties broken by registration order. A periodic timer is
// re-armed — its deadline advanced by its period — before its callback
// runs, so the callback may legally cancel it.
//
// Clock never fails internally: a callback returning a non-nil error is
// counted (see Errors) but never stops sibling timers due at the same
// deadline.
type Clock struct {
	mu      sync.Mutex
	now     time.Duration
	nextSeq uint64
	timers  []*Timer
	// Errors accumulates callback errors seen during the most recent
	// SetTime call, most recent last. Cleared at the start of each SetTime.
	Errors []error
}

// NewClock returns a Clock initialized to t0.
func NewClock(t0 time.Duration) *Clock {
	return &Clock{now: t0}
}

// Now returns the clock's current time.
func (c *Clock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewTimer schedules callback to run once the clock reaches now+in. If
// period is non-zero the timer is periodic: it is rearmed by period every
// time it fires.
func (c *Clock) NewTimer(in time.Duration, period time.Duration, callback func(now time.Duration) error) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSeq++
	t := &Timer{
		clock:    c,
		seq:      c.nextSeq,
		deadline: c.now + in,
		period:   period,
		callback: callback,
	}
	c.insert(t)
	return t
}

// insert requires c.mu held.
func (c *Clock) insert(t *Timer) {
	t.armed = true
	idx := sort.Search(len(c.timers), func(i int) bool {
		if c.timers[i].deadline != t.deadline {
			return c.timers[i].deadline > t.deadline
		}
		return c.timers[i].seq > t.seq
	})
	c.timers = append(c.timers, nil)
	copy(c.timers[idx+1:], c.timers[idx:])
	c.timers[idx] = t
}

// remove requires c.mu held.
func (c *Clock) remove(t *Timer) {
	if !t.armed {
		return
	}
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			break
		}
	}
	t.armed = false
}

// SetTime advances the clock's notion of current time, firing every timer
// whose deadline is <= t. If t equals the current time, only timers already
// due at that time fire. Panics if t moves backwards, since the
// invariant is that callbacks observe a monotonically non-decreasing clock.
func (c *Clock) SetTime(t time.Duration) {
	c.mu.Lock()
	if t < c.now {
		c.mu.Unlock()
		panic("canopen: Clock.SetTime moved backwards")
	}
	c.now = t
	c.Errors = nil
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if len(c.timers) == 0 || c.timers[0].deadline > t {
			c.mu.Unlock()
			return
		}
		due := c.timers[0]
		c.timers = c.timers[1:]
		due.armed = false
		if due.period > 0 {
			due.deadline += due.period
			c.insert(due)
		}
		c.mu.Unlock()

		if err := due.callback(t); err != nil {
			c.mu.Lock()
			c.Errors = append(c.Errors, err)
			c.mu.Unlock()
		}
	}
}
