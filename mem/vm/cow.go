package vm

import (
	"errors"
	"fmt"
	"log"
)

// ErrNotCopyOnWrite is returned when a write-protection fault hits a page
// that is not marked copy-on-write.
var ErrNotCopyOnWrite = errors.New("page is not copy-on-write")

// CopyOnWriteResolver splits shared copy-on-write frames on the first write.
type CopyOnWriteResolver struct {
	mem *PhysicalMemory
}

// NewCopyOnWriteResolver creates a CopyOnWriteResolver over the frame pool
// that backs the page tables it resolves faults for.
func NewCopyOnWriteResolver(mem *PhysicalMemory) *CopyOnWriteResolver {
	return &CopyOnWriteResolver{mem: mem}
}

// ResolveCowFault gives the faulting address space a private writable copy
// of the page at vAddr and drops its reference to the shared frame. A frame
// that has no other user is made writable in place. On error the shared
// mapping is left as it was.
func (r *CopyOnWriteResolver) ResolveCowFault(pt PageTable, vAddr uint64) error {
	vAddr = PageRoundDown(vAddr)

	page, found := pt.Find(vAddr)
	if !found {
		return fmt.Errorf("cow 0x%x: %w", vAddr, ErrNotMapped)
	}

	if !page.Perm.Has(PermCOW) {
		return fmt.Errorf("cow 0x%x: %w", vAddr, ErrNotCopyOnWrite)
	}

	perm := (page.Perm &^ PermCOW) | PermW

	if r.mem.RefCount(page.PAddr) == 1 {
		r.remap(pt, page, perm)
		return nil
	}

	buf := make([]byte, PageSize)
	if err := pt.CopyIn(buf, vAddr); err != nil {
		return err
	}

	// The unmapped page keeps its reference until the copy is in place.
	pt.Unmap(vAddr, 1, false)

	if err := pt.MapRange(vAddr, vAddr+PageSize, perm); err != nil {
		r.remap(pt, page, page.Perm)
		return fmt.Errorf("cow 0x%x: %w", vAddr, err)
	}

	if err := pt.CopyOut(vAddr, buf); err != nil {
		pt.Unmap(vAddr, 1, true)
		r.remap(pt, page, page.Perm)

		return fmt.Errorf("cow 0x%x: %w", vAddr, err)
	}

	r.mem.FreeFrame(page.PAddr)

	return nil
}

// remap maps page.PAddr at page.VAddr with perm, handing over the reference
// held by the old mapping.
func (r *CopyOnWriteResolver) remap(pt PageTable, page Page, perm Perm) {
	if _, found := pt.Find(page.VAddr); found {
		pt.Unmap(page.VAddr, 1, false)
	}

	if err := pt.MapFrame(page.VAddr, page.PAddr, perm); err != nil {
		log.Panicf("cow 0x%x: cannot restore frame 0x%x: %v",
			page.VAddr, page.PAddr, err)
	}

	r.mem.FreeFrame(page.PAddr)
}
