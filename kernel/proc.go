package kernel

import (
	"errors"
	"sync"

	"github.com/sarchlab/demandpaging/mem/vm"
	"github.com/sarchlab/demandpaging/mem/vm/residency"
)

var (
	// ErrHeapLimit is returned when the heap would outgrow the heap tracker.
	ErrHeapLimit = errors.New("heap limit reached")

	// ErrHeapShrink is returned when sbrk is asked to shrink the heap.
	ErrHeapShrink = errors.New("heap shrinking is not supported")
)

// A Proc holds the fields of a process that the fault handler reads and
// writes. Faults of one process are handled one at a time.
type Proc struct {
	lock sync.Mutex

	PID        vm.PID
	Name       string
	PageTable  vm.PageTable
	CowEnabled bool

	HeapTracker       *residency.Tracker
	ResidentHeapPages int

	// The heap occupies [HeapBase, HeapTop). Heap pages are mapped only when
	// touched.
	HeapBase uint64
	HeapTop  uint64
}

// Sbrk grows the heap by n bytes without mapping anything and returns the old
// top of the heap.
func (p *Proc) Sbrk(n int64) (uint64, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if n < 0 {
		return 0, ErrHeapShrink
	}

	oldTop := p.HeapTop
	newTop := oldTop + uint64(n)

	pages := (vm.PageRoundUp(newTop) - p.HeapBase) / vm.PageSize
	if newTop < oldTop || pages > uint64(p.HeapTracker.Capacity()) {
		return 0, ErrHeapLimit
	}

	p.HeapTop = newTop

	return oldTop, nil
}

// InHeap reports whether the page at addr belongs to the heap.
func (p *Proc) InHeap(addr uint64) bool {
	return addr >= p.HeapBase && addr < vm.PageRoundUp(p.HeapTop)
}

// ProcStats is a consistent view of a process.
type ProcStats struct {
	PID               vm.PID
	Name              string
	CowEnabled        bool
	HeapBase          uint64
	HeapTop           uint64
	ResidentHeapPages int
	MappedPages       int
	Heap              []residency.Entry
}

// Stats returns the current state of the process.
func (p *Proc) Stats() ProcStats {
	p.lock.Lock()
	defer p.lock.Unlock()

	return ProcStats{
		PID:               p.PID,
		Name:              p.Name,
		CowEnabled:        p.CowEnabled,
		HeapBase:          p.HeapBase,
		HeapTop:           p.HeapTop,
		ResidentHeapPages: p.ResidentHeapPages,
		MappedPages:       p.PageTable.NumMappedPages(),
		Heap:              p.HeapTracker.Snapshot(),
	}
}
