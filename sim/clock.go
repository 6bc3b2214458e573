package sim

import "sync"

// Tick is the unit of the kernel clock. One tick corresponds to one timer
// interrupt.
type Tick uint64

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() Tick
}

// A Clock is a monotonic tick counter shared by all the harts of a machine.
// Reading the clock takes a short lock, the same way xv6 reads ticks under
// tickslock.
type Clock struct {
	lock  sync.Mutex
	ticks Tick
}

// NewClock creates a clock that starts at tick 0.
func NewClock() *Clock {
	return &Clock{}
}

// CurrentTime returns the number of ticks elapsed since the clock is created.
func (c *Clock) CurrentTime() Tick {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.ticks
}

// Advance moves the clock forward by n ticks and returns the new time.
func (c *Clock) Advance(n Tick) Tick {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.ticks += n

	return c.ticks
}
