// Package swap implements the disk-backed swap area: the allocator of
// page-sized swap slots and the staging path that moves pages between user
// address spaces and swap blocks.
package swap

import (
	"log"
	"sync"

	"github.com/Workiva/go-datastructures/bitarray"
	"github.com/sarchlab/demandpaging/mem/disk"
	"github.com/sarchlab/demandpaging/mem/vm"
)

// BlocksPerSlot is the number of contiguous disk blocks that hold one page.
const BlocksPerSlot = vm.PageSize / disk.BlockSize

// A SlotAllocator tracks which blocks of the swap area are in use. A slot of
// BlocksPerSlot blocks is always either entirely free or entirely used.
//
// The allocator is shared by all processes. Allocate and Release are atomic
// with respect to each other.
type SlotAllocator struct {
	lock      sync.Mutex
	bits      bitarray.BitArray
	numBlocks uint64
	usedSlots int
}

// NewSlotAllocator creates an allocator for a swap area of numBlocks blocks,
// all free.
func NewSlotAllocator(numBlocks uint64) *SlotAllocator {
	if numBlocks == 0 || numBlocks%BlocksPerSlot != 0 {
		log.Panicf("swap area of %d blocks is not a whole number of %d-block slots",
			numBlocks, BlocksPerSlot)
	}

	return &SlotAllocator{
		bits:      bitarray.NewBitArray(numBlocks),
		numBlocks: numBlocks,
	}
}

// Allocate marks the first fully free slot as used and returns the index of
// its first block. Running out of swap is not recoverable and panics.
func (a *SlotAllocator) Allocate() uint64 {
	a.lock.Lock()
	defer a.lock.Unlock()

	for start := uint64(0); start < a.numBlocks; start += BlocksPerSlot {
		if !a.slotIsFree(start) {
			continue
		}

		a.setSlot(start)
		a.usedSlots++

		return start
	}

	log.Panicf("no swap slot available: all %d slots are in use", a.NumSlots())

	return 0
}

// Release marks the slot that starts at blockIndex as free. Releasing a slot
// that is not fully in use means the bookkeeping is corrupted and panics.
func (a *SlotAllocator) Release(blockIndex uint64) {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.slotMustBeAligned(blockIndex)

	for b := blockIndex; b < blockIndex+BlocksPerSlot; b++ {
		if !a.bit(b) {
			log.Panicf("release of swap slot %d: block %d is free",
				blockIndex, b)
		}
	}

	for b := blockIndex; b < blockIndex+BlocksPerSlot; b++ {
		if err := a.bits.ClearBit(b); err != nil {
			log.Panic(err)
		}
	}

	a.usedSlots--
}

// InUse reports whether the slot that starts at blockIndex is allocated.
func (a *SlotAllocator) InUse(blockIndex uint64) bool {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.slotMustBeAligned(blockIndex)

	return a.bit(blockIndex)
}

// NumSlots returns the capacity of the swap area in slots.
func (a *SlotAllocator) NumSlots() int {
	return int(a.numBlocks / BlocksPerSlot)
}

// NumFreeSlots returns the number of slots that can still be allocated.
func (a *SlotAllocator) NumFreeSlots() int {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.NumSlots() - a.usedSlots
}

// UsedSlots returns the first block of every allocated slot, in increasing
// order.
func (a *SlotAllocator) UsedSlots() []uint64 {
	a.lock.Lock()
	defer a.lock.Unlock()

	slots := make([]uint64, 0, a.usedSlots)
	for _, b := range a.bits.ToNums() {
		if b%BlocksPerSlot == 0 {
			slots = append(slots, b)
		}
	}

	return slots
}

func (a *SlotAllocator) slotIsFree(start uint64) bool {
	for b := start; b < start+BlocksPerSlot; b++ {
		if a.bit(b) {
			return false
		}
	}

	return true
}

func (a *SlotAllocator) setSlot(start uint64) {
	for b := start; b < start+BlocksPerSlot; b++ {
		if err := a.bits.SetBit(b); err != nil {
			log.Panic(err)
		}
	}
}

func (a *SlotAllocator) bit(b uint64) bool {
	set, err := a.bits.GetBit(b)
	if err != nil {
		log.Panic(err)
	}

	return set
}

func (a *SlotAllocator) slotMustBeAligned(blockIndex uint64) {
	if blockIndex%BlocksPerSlot != 0 || blockIndex >= a.numBlocks {
		log.Panicf("block %d does not start a swap slot", blockIndex)
	}
}
