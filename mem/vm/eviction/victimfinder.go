// Package eviction decides which resident heap page leaves memory when a
// process reaches its resident-page budget.
package eviction

import (
	"github.com/sarchlab/demandpaging/mem/vm/residency"
	"github.com/sarchlab/demandpaging/sim"
)

// A VictimFinder decides which resident entry should be evicted.
type VictimFinder interface {
	// FindVictim returns the slot index of the victim. It returns false only
	// when no entry is resident.
	FindVictim(tracker *residency.Tracker, now sim.Tick) (int, bool)
}

// WorkingSetVictimFinder prefers the oldest page outside the working-set
// window. When every resident page was loaded within the window, it falls
// back to the least recently loaded page.
type WorkingSetVictimFinder struct {
	Window sim.Tick
}

// NewWorkingSetVictimFinder returns a victim finder with the given window.
func NewWorkingSetVictimFinder(window sim.Tick) *WorkingSetVictimFinder {
	return &WorkingSetVictimFinder{Window: window}
}

// FindVictim runs the working-set pass, then the LRU pass if needed.
func (f *WorkingSetVictimFinder) FindVictim(
	tracker *residency.Tracker,
	now sim.Tick,
) (int, bool) {
	victim := oldestResident(tracker, func(e *residency.Entry) bool {
		return now >= e.LastAccess && now-e.LastAccess > f.Window
	})

	if victim >= 0 {
		return victim, true
	}

	return NewLRUVictimFinder().FindVictim(tracker, now)
}

// LRUVictimFinder evicts the least recently loaded resident page.
type LRUVictimFinder struct{}

// NewLRUVictimFinder returns a newly constructed LRU victim finder.
func NewLRUVictimFinder() *LRUVictimFinder {
	return &LRUVictimFinder{}
}

// FindVictim returns the resident entry with the smallest load time.
func (f *LRUVictimFinder) FindVictim(
	tracker *residency.Tracker,
	_ sim.Tick,
) (int, bool) {
	victim := oldestResident(tracker, func(*residency.Entry) bool {
		return true
	})

	return victim, victim >= 0
}

// oldestResident returns the first resident entry with the smallest load
// time among those accepted by the filter, or -1.
func oldestResident(
	tracker *residency.Tracker,
	accept func(e *residency.Entry) bool,
) int {
	victim := -1

	for i := 0; i < tracker.Capacity(); i++ {
		e := tracker.At(i)
		if !e.Resident || !accept(e) {
			continue
		}

		if victim < 0 || e.LastAccess < tracker.At(victim).LastAccess {
			victim = i
		}
	}

	return victim
}
