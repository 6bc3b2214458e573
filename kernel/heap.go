package kernel

import (
	"log"

	"github.com/sarchlab/demandpaging/mem/vm"
	"github.com/sarchlab/demandpaging/mem/vm/residency"
)

const heapPerm = vm.PermR | vm.PermW | vm.PermU

func (c *Comp) handleHeapFault(p *Proc, addr uint64) {
	entry, ok := p.HeapTracker.Claim(addr)
	if !ok {
		log.Panicf("pid %d: heap tracker is full, cannot track 0x%x",
			p.PID, addr)
	}

	loadFromDisk := p.HeapTracker.IsSwapped(addr)

	switch {
	case p.ResidentHeapPages > c.maxResidentHeapPages:
		log.Panicf("pid %d: %d resident heap pages exceed the budget of %d",
			p.PID, p.ResidentHeapPages, c.maxResidentHeapPages)
	case p.ResidentHeapPages == c.maxResidentHeapPages:
		c.evictPage(p)
	}

	err := p.PageTable.MapRange(addr, addr+vm.PageSize, heapPerm)
	if err != nil {
		log.Panicf("pid %d: cannot map heap page 0x%x: %v", p.PID, addr, err)
	}

	if loadFromDisk {
		c.retrievePage(p, entry)
	}

	p.HeapTracker.MarkLoaded(entry, c.clock.CurrentTime())
	p.ResidentHeapPages++
}

// evictPage moves one resident heap page of p to swap.
func (c *Comp) evictPage(p *Proc) {
	idx, found := c.victimFinder.FindVictim(p.HeapTracker, c.clock.CurrentTime())
	if !found {
		log.Panicf("pid %d: eviction requested with no resident heap page",
			p.PID)
	}

	victim := p.HeapTracker.At(idx)
	block := c.swapAllocator.Allocate()

	c.invokeHook(HookPosEvictPage, p, SwapDetail{Addr: victim.Addr, Block: block})

	c.stager.WritePageToDisk(p.PageTable, victim.Addr, block)
	p.PageTable.Unmap(victim.Addr, 1, true)
	p.HeapTracker.MarkEvicted(victim, block)
	p.ResidentHeapPages--
}

// retrievePage reads the swapped copy of entry back into its freshly mapped
// page and gives the swap slot back.
func (c *Comp) retrievePage(p *Proc, entry *residency.Entry) {
	block := entry.SwapStart
	if !c.swapAllocator.InUse(block) {
		log.Panicf("pid %d: page 0x%x is recorded in free swap slot %d",
			p.PID, entry.Addr, block)
	}

	c.invokeHook(HookPosRetrievePage, p, SwapDetail{Addr: entry.Addr, Block: block})

	c.stager.ReadPageFromDisk(p.PageTable, block, entry.Addr)
	c.swapAllocator.Release(block)
	p.HeapTracker.MarkRetrieved(entry)
}

// duplicateSwapSlot gives child a private copy of the swap slot at block. The
// page passes through a temporary mapping at addr in the child.
func (c *Comp) duplicateSwapSlot(child *Proc, addr, block uint64) uint64 {
	err := child.PageTable.MapRange(addr, addr+vm.PageSize, heapPerm)
	if err != nil {
		log.Panicf("pid %d: cannot stage swap slot %d: %v", child.PID, block, err)
	}

	c.stager.ReadPageFromDisk(child.PageTable, block, addr)

	newBlock := c.swapAllocator.Allocate()
	c.stager.WritePageToDisk(child.PageTable, addr, newBlock)
	child.PageTable.Unmap(addr, 1, true)

	return newBlock
}
