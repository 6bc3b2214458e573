package vm

import (
	"errors"
	"log"
	"sync"
)

// Page geometry shared by the whole machine.
const (
	Log2PageSize = 12
	PageSize     = uint64(1) << Log2PageSize
)

// ErrOutOfMemory is returned when no free physical frame is left.
var ErrOutOfMemory = errors.New("out of physical memory")

// PageRoundDown aligns addr to the start of its page.
func PageRoundDown(addr uint64) uint64 {
	return addr &^ (PageSize - 1)
}

// PageRoundUp aligns addr to the start of the next page, unless it is already
// aligned.
func PageRoundUp(addr uint64) uint64 {
	return (addr + PageSize - 1) &^ (PageSize - 1)
}

// PhysicalMemory is the pool of page frames that backs all the user page
// tables of a machine.
//
// Frames are allocated on first use and reference counted, so that a frame
// can be shared by several page tables until a copy-on-write fault splits it.
// PhysicalMemory is safe for concurrent use.
type PhysicalMemory struct {
	lock      sync.Mutex
	base      uint64
	numFrames int
	frames    map[uint64][]byte
	refCounts map[uint64]int
	freeList  []uint64
}

// NewPhysicalMemory creates a pool of numFrames frames whose physical
// addresses start at base.
func NewPhysicalMemory(base uint64, numFrames int) *PhysicalMemory {
	if base%PageSize != 0 {
		log.Panicf("physical memory base 0x%x is not page aligned", base)
	}

	m := &PhysicalMemory{
		base:      base,
		numFrames: numFrames,
		frames:    make(map[uint64][]byte),
		refCounts: make(map[uint64]int),
		freeList:  make([]uint64, 0, numFrames),
	}

	for i := numFrames - 1; i >= 0; i-- {
		m.freeList = append(m.freeList, base+uint64(i)*PageSize)
	}

	return m
}

// AllocFrame takes a frame from the free list and fills it with zeros.
func (m *PhysicalMemory) AllocFrame() (uint64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if len(m.freeList) == 0 {
		return 0, ErrOutOfMemory
	}

	pAddr := m.freeList[len(m.freeList)-1]
	m.freeList = m.freeList[:len(m.freeList)-1]

	frame, ok := m.frames[pAddr]
	if !ok {
		frame = make([]byte, PageSize)
		m.frames[pAddr] = frame
	} else {
		clear(frame)
	}

	m.refCounts[pAddr] = 1

	return pAddr, nil
}

// Share adds a reference to an allocated frame.
func (m *PhysicalMemory) Share(pAddr uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.frameMustBeAllocated(pAddr)
	m.refCounts[pAddr]++
}

// FreeFrame drops a reference to a frame. The frame returns to the free list
// when the last reference is dropped.
func (m *PhysicalMemory) FreeFrame(pAddr uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.frameMustBeAllocated(pAddr)

	m.refCounts[pAddr]--
	if m.refCounts[pAddr] > 0 {
		return
	}

	delete(m.refCounts, pAddr)
	m.freeList = append(m.freeList, pAddr)
}

// RefCount returns the number of page tables that map the frame.
func (m *PhysicalMemory) RefCount(pAddr uint64) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.refCounts[PageRoundDown(pAddr)]
}

// NumFreeFrames returns the number of frames that can still be allocated.
func (m *PhysicalMemory) NumFreeFrames() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.freeList)
}

// NumFrames returns the capacity of the pool.
func (m *PhysicalMemory) NumFrames() int {
	return m.numFrames
}

// Read copies len(dst) bytes starting at pAddr. The range must stay within a
// single frame.
func (m *PhysicalMemory) Read(pAddr uint64, dst []byte) {
	frame, offset := m.locate(pAddr, uint64(len(dst)))
	copy(dst, frame[offset:])
}

// Write copies src into memory starting at pAddr. The range must stay within
// a single frame.
func (m *PhysicalMemory) Write(pAddr uint64, src []byte) {
	frame, offset := m.locate(pAddr, uint64(len(src)))
	copy(frame[offset:], src)
}

func (m *PhysicalMemory) locate(pAddr, length uint64) ([]byte, uint64) {
	base := PageRoundDown(pAddr)
	offset := pAddr - base

	if offset+length > PageSize {
		log.Panicf("access [0x%x, 0x%x) crosses a frame boundary",
			pAddr, pAddr+length)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.frameMustBeAllocated(base)

	return m.frames[base], offset
}

func (m *PhysicalMemory) frameMustBeAllocated(pAddr uint64) {
	if m.refCounts[pAddr] <= 0 {
		log.Panicf("frame 0x%x is not allocated", pAddr)
	}
}
