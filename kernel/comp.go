// Package kernel resolves the page faults of user processes. It loads program
// pages on demand, keeps each process's resident heap within a budget by
// evicting pages to swap, and hands write-protection faults to the
// copy-on-write resolver.
package kernel

import (
	"log"

	"github.com/sarchlab/demandpaging/loader"
	"github.com/sarchlab/demandpaging/mem/swap"
	"github.com/sarchlab/demandpaging/mem/vm"
	"github.com/sarchlab/demandpaging/mem/vm/eviction"
	"github.com/sarchlab/demandpaging/sim"
)

// A CowResolver resolves a write-protection fault on a copy-on-write page.
type CowResolver interface {
	ResolveCowFault(pt vm.PageTable, vAddr uint64) error
}

// Comp is the page-fault handler of a machine. All the harts of the machine
// share one Comp, and with it the swap area.
type Comp struct {
	*sim.HookableBase

	name string

	clock         sim.TimeTeller
	physMem       *vm.PhysicalMemory
	images        loader.FS
	swapAllocator *swap.SlotAllocator
	stager        *swap.Stager
	victimFinder  eviction.VictimFinder
	cowResolver   CowResolver

	maxResidentHeapPages int
	heapTrackerCapacity  int
}

// Name returns the name of the handler.
func (c *Comp) Name() string {
	return c.name
}

// Clock returns the clock that stamps page loads.
func (c *Comp) Clock() sim.TimeTeller {
	return c.clock
}

// PhysicalMemory returns the frame pool behind the user page tables.
func (c *Comp) PhysicalMemory() *vm.PhysicalMemory {
	return c.physMem
}

// Images returns the file system executables are read from.
func (c *Comp) Images() loader.FS {
	return c.images
}

// SwapAllocator returns the allocator of the swap area.
func (c *Comp) SwapAllocator() *swap.SlotAllocator {
	return c.swapAllocator
}

// MaxResidentHeapPages returns the resident heap budget of each process.
func (c *Comp) MaxResidentHeapPages() int {
	return c.maxResidentHeapPages
}

// HeapTrackerCapacity returns the number of heap pages a process can track.
func (c *Comp) HeapTrackerCapacity() int {
	return c.heapTrackerCapacity
}

// Classify decides which path resolves a fault.
//
// A store to a mapped, non-writable page of a copy-on-write process is a cow
// fault. A fault on a heap page that is not resident is a heap fault.
// Everything else is looked up in the executable.
func (c *Comp) Classify(p *Proc, trap Trap) FaultKind {
	addr := vm.PageRoundDown(trap.Addr)

	if p.CowEnabled && trap.Cause == CauseStorePageFault {
		page, found := p.PageTable.Find(addr)
		if found && !page.Perm.Has(vm.PermW) {
			return FaultKindCow
		}
	}

	if p.InHeap(addr) {
		entry, tracked := p.HeapTracker.Lookup(addr)
		if !tracked || !entry.Resident {
			return FaultKindHeap
		}
	}

	return FaultKindProgramImage
}

// HandlePageFault resolves a fault of process p. On return, either the page
// is mapped, or nothing visible has changed and the hart will fault again.
// Broken kernel invariants panic.
func (c *Comp) HandlePageFault(p *Proc, trap Trap) {
	p.lock.Lock()
	defer p.lock.Unlock()

	addr := vm.PageRoundDown(trap.Addr)
	kind := c.Classify(p, trap)

	c.invokeHook(HookPosPageFault, p,
		PageFaultDetail{Addr: addr, Cause: trap.Cause, Kind: kind})

	switch kind {
	case FaultKindCow:
		c.handleCowFault(p, addr)
	case FaultKindHeap:
		c.handleHeapFault(p, addr)
	case FaultKindProgramImage:
		if !c.handleProgramImageFault(p, addr) {
			return
		}
	default:
		log.Panicf("unknown fault kind %v", kind)
	}

	p.PageTable.InvalidateTranslationCache()
}

func (c *Comp) handleCowFault(p *Proc, addr uint64) {
	err := c.cowResolver.ResolveCowFault(p.PageTable, addr)
	c.invokeHook(HookPosCowFault, p, CowDetail{Addr: addr, Err: err})
}

func (c *Comp) invokeHook(pos *sim.HookPos, p *Proc, detail any) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Now:    c.clock.CurrentTime(),
		Item:   p,
		Detail: detail,
	})
}
