package faulttrace

import (
	"sort"
	"sync"

	"github.com/sarchlab/demandpaging/kernel"
	"github.com/sarchlab/demandpaging/sim"
)

// Counter counts the fault handler events by hook position, and the faults
// by kind.
type Counter struct {
	lock   sync.Mutex
	events map[string]uint64
	kinds  map[kernel.FaultKind]uint64
}

// NewCounter creates a Counter with every count at zero.
func NewCounter() *Counter {
	return &Counter{
		events: make(map[string]uint64),
		kinds:  make(map[kernel.FaultKind]uint64),
	}
}

// Func counts the event.
func (c *Counter) Func(ctx sim.HookCtx) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.events[ctx.Pos.Name]++

	if d, ok := ctx.Detail.(kernel.PageFaultDetail); ok {
		c.kinds[d.Kind]++
	}
}

// Count returns how many times the hook position has been reached.
func (c *Counter) Count(pos *sim.HookPos) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.events[pos.Name]
}

// FaultCount returns how many faults of the kind have been handled.
func (c *Counter) FaultCount(kind kernel.FaultKind) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.kinds[kind]
}

// EventCount is the count of one hook position.
type EventCount struct {
	Event string `json:"event"`
	Count uint64 `json:"count"`
}

// Counts returns all the counts ordered by event name.
func (c *Counter) Counts() []EventCount {
	c.lock.Lock()
	defer c.lock.Unlock()

	counts := make([]EventCount, 0, len(c.events))
	for name, n := range c.events {
		counts = append(counts, EventCount{Event: name, Count: n})
	}

	sort.Slice(counts, func(i, j int) bool {
		return counts[i].Event < counts[j].Event
	})

	return counts
}
