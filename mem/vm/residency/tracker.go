// Package residency records, for each heap page of a process, whether the
// page is resident, when it was last loaded, and where its swapped copy is.
package residency

import (
	"log"
	"math"

	"github.com/sarchlab/demandpaging/sim"
)

const (
	// UnusedAddr marks a tracker slot that does not track any page.
	UnusedAddr = uint64(math.MaxUint64)

	// NoBlock marks an entry that has no valid copy in swap.
	NoBlock = uint64(math.MaxUint64)
)

// An Entry tracks one heap page.
type Entry struct {
	Addr       uint64
	Resident   bool
	SwapStart  uint64
	LastAccess sim.Tick
}

// Swapped reports whether the entry has a valid copy in swap.
func (e *Entry) Swapped() bool {
	return e.SwapStart != NoBlock
}

// A Tracker is a fixed-capacity table of entries, scanned linearly. There is
// at most one entry per address, and an entry is reused in place across
// evict and reload cycles.
//
// A tracker belongs to one process and is only touched by the fault handler
// of that process, so it is not synchronized.
type Tracker struct {
	entries []Entry
}

// NewTracker creates a tracker with capacity unused slots.
func NewTracker(capacity int) *Tracker {
	t := &Tracker{entries: make([]Entry, capacity)}

	for i := range t.entries {
		t.entries[i] = Entry{
			Addr:      UnusedAddr,
			SwapStart: NoBlock,
		}
	}

	return t
}

// Capacity returns the number of slots.
func (t *Tracker) Capacity() int {
	return len(t.entries)
}

// At returns the entry at slot i.
func (t *Tracker) At(i int) *Entry {
	return &t.entries[i]
}

// Lookup returns the entry that tracks addr.
func (t *Tracker) Lookup(addr uint64) (*Entry, bool) {
	for i := range t.entries {
		if t.entries[i].Addr == addr {
			return &t.entries[i], true
		}
	}

	return nil, false
}

// Claim returns the entry of addr, taking the first unused slot if addr is
// not tracked yet. It returns false when the tracker is full.
func (t *Tracker) Claim(addr uint64) (*Entry, bool) {
	if addr == UnusedAddr {
		log.Panicf("cannot track the reserved address 0x%x", addr)
	}

	free := -1

	for i := range t.entries {
		switch t.entries[i].Addr {
		case addr:
			return &t.entries[i], true
		case UnusedAddr:
			if free < 0 {
				free = i
			}
		}
	}

	if free < 0 {
		return nil, false
	}

	t.entries[free].Addr = addr

	return &t.entries[free], true
}

// IsSwapped reports whether addr is tracked and has a copy in swap.
func (t *Tracker) IsSwapped(addr uint64) bool {
	e, found := t.Lookup(addr)
	return found && e.Swapped()
}

// MarkLoaded records that the page of the entry is mapped again.
func (t *Tracker) MarkLoaded(e *Entry, now sim.Tick) {
	e.Resident = true
	e.LastAccess = now
}

// MarkEvicted records that the page of the entry now lives in the swap slot
// that starts at blockIndex.
func (t *Tracker) MarkEvicted(e *Entry, blockIndex uint64) {
	e.Resident = false
	e.SwapStart = blockIndex
}

// MarkRetrieved records that the swap copy of the entry has been read back
// and its slot released.
func (t *Tracker) MarkRetrieved(e *Entry) {
	e.SwapStart = NoBlock
}

// NumResident counts the resident entries.
func (t *Tracker) NumResident() int {
	n := 0

	for i := range t.entries {
		if t.entries[i].Resident {
			n++
		}
	}

	return n
}

// NumTracked counts the slots in use.
func (t *Tracker) NumTracked() int {
	n := 0

	for i := range t.entries {
		if t.entries[i].Addr != UnusedAddr {
			n++
		}
	}

	return n
}

// Snapshot returns a copy of the slots in use.
func (t *Tracker) Snapshot() []Entry {
	entries := make([]Entry, 0)

	for _, e := range t.entries {
		if e.Addr != UnusedAddr {
			entries = append(entries, e)
		}
	}

	return entries
}
