package kernel

import (
	"log"

	"github.com/sarchlab/demandpaging/loader"
	"github.com/sarchlab/demandpaging/mem/disk"
	"github.com/sarchlab/demandpaging/mem/swap"
	"github.com/sarchlab/demandpaging/mem/vm"
	"github.com/sarchlab/demandpaging/mem/vm/eviction"
	"github.com/sarchlab/demandpaging/sim"
)

// PhysicalMemoryBase is where the default frame pool starts.
const PhysicalMemoryBase = 0x80000000

// A Builder can build fault handlers.
type Builder struct {
	clock        sim.TimeTeller
	physMem      *vm.PhysicalMemory
	numFrames    int
	images       loader.FS
	blockCache   disk.BlockCache
	swapBackend  disk.Backend
	swapDev      uint32
	swapStart    uint64
	swapBlocks   uint64
	victimFinder eviction.VictimFinder
	cowResolver  CowResolver

	maxResidentHeapPages int
	heapTrackerCapacity  int
	workingSetWindow     sim.Tick
}

// MakeBuilder creates a builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		numFrames:            2048,
		swapDev:              1,
		swapStart:            0,
		swapBlocks:           1024,
		maxResidentHeapPages: 100,
		heapTrackerCapacity:  1000,
		workingSetWindow:     50,
	}
}

// WithClock sets the clock that stamps heap page loads.
func (b Builder) WithClock(clock sim.TimeTeller) Builder {
	b.clock = clock
	return b
}

// WithPhysicalMemory sets the frame pool. If not set, a pool of NumFrames
// frames is created at PhysicalMemoryBase.
func (b Builder) WithPhysicalMemory(m *vm.PhysicalMemory) Builder {
	b.physMem = m
	return b
}

// WithNumFrames sets the size of the default frame pool.
func (b Builder) WithNumFrames(n int) Builder {
	b.numFrames = n
	return b
}

// WithImages sets the file system that executables are loaded from.
func (b Builder) WithImages(fs loader.FS) Builder {
	b.images = fs
	return b
}

// WithBlockCache sets the block cache that swap traffic goes through. The
// swap device must already be attached to the cache.
func (b Builder) WithBlockCache(c disk.BlockCache) Builder {
	b.blockCache = c
	return b
}

// WithSwapBackend sets the device that backs the default block cache. It is
// ignored when a block cache is given.
func (b Builder) WithSwapBackend(backend disk.Backend) Builder {
	b.swapBackend = backend
	return b
}

// WithSwapDevice sets the device number of the swap area.
func (b Builder) WithSwapDevice(dev uint32) Builder {
	b.swapDev = dev
	return b
}

// WithSwapStart sets the first block of the swap area on the device.
func (b Builder) WithSwapStart(block uint64) Builder {
	b.swapStart = block
	return b
}

// WithSwapBlocks sets the size of the swap area in blocks. It must be a
// multiple of the blocks per page.
func (b Builder) WithSwapBlocks(n uint64) Builder {
	b.swapBlocks = n
	return b
}

// WithVictimFinder replaces the working-set victim finder.
func (b Builder) WithVictimFinder(f eviction.VictimFinder) Builder {
	b.victimFinder = f
	return b
}

// WithCowResolver sets the resolver of copy-on-write faults.
func (b Builder) WithCowResolver(r CowResolver) Builder {
	b.cowResolver = r
	return b
}

// WithMaxResidentHeapPages sets how many heap pages a process may keep in
// memory.
func (b Builder) WithMaxResidentHeapPages(n int) Builder {
	b.maxResidentHeapPages = n
	return b
}

// WithHeapTrackerCapacity sets how many heap pages a process can track.
func (b Builder) WithHeapTrackerCapacity(n int) Builder {
	b.heapTrackerCapacity = n
	return b
}

// WithWorkingSetWindow sets the working-set window of the default victim
// finder, in ticks.
func (b Builder) WithWorkingSetWindow(window sim.Tick) Builder {
	b.workingSetWindow = window
	return b
}

// Build creates a fault handler with the given name.
func (b Builder) Build(name string) *Comp {
	b.mustBeValid()

	c := &Comp{
		name:                 name,
		clock:                b.clock,
		physMem:              b.physMem,
		images:               b.images,
		victimFinder:         b.victimFinder,
		cowResolver:          b.cowResolver,
		maxResidentHeapPages: b.maxResidentHeapPages,
		heapTrackerCapacity:  b.heapTrackerCapacity,
	}
	c.HookableBase = sim.NewHookableBase()

	if c.clock == nil {
		c.clock = sim.NewClock()
	}

	if c.physMem == nil {
		c.physMem = vm.NewPhysicalMemory(PhysicalMemoryBase, b.numFrames)
	}

	if c.images == nil {
		c.images = loader.NewMemFS()
	}

	if c.victimFinder == nil {
		c.victimFinder = eviction.NewWorkingSetVictimFinder(b.workingSetWindow)
	}

	if c.cowResolver == nil {
		c.cowResolver = vm.NewCopyOnWriteResolver(c.physMem)
	}

	c.swapAllocator = swap.NewSlotAllocator(b.swapBlocks)
	c.stager = swap.NewStager(b.buildBlockCache(), b.swapDev, b.swapStart)

	return c
}

func (b Builder) buildBlockCache() disk.BlockCache {
	if b.blockCache != nil {
		return b.blockCache
	}

	backend := b.swapBackend
	if backend == nil {
		backend = disk.NewStorage(b.swapStart + b.swapBlocks)
	}

	if backend.NumBlocks() < b.swapStart+b.swapBlocks {
		log.Panicf("swap area [%d, %d) does not fit on a device of %d blocks",
			b.swapStart, b.swapStart+b.swapBlocks, backend.NumBlocks())
	}

	cache := disk.NewBufferCache()
	cache.AttachDevice(b.swapDev, backend)

	return cache
}

func (b Builder) mustBeValid() {
	if b.maxResidentHeapPages <= 0 {
		log.Panicf("resident heap budget must be positive, got %d",
			b.maxResidentHeapPages)
	}

	if b.heapTrackerCapacity < b.maxResidentHeapPages {
		log.Panicf("heap tracker capacity %d is below the budget %d",
			b.heapTrackerCapacity, b.maxResidentHeapPages)
	}

	if b.swapBlocks == 0 || b.swapBlocks%swap.BlocksPerSlot != 0 {
		log.Panicf("swap area of %d blocks is not a whole number of slots",
			b.swapBlocks)
	}
}
