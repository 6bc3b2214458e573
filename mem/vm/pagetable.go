// Package vm provides the page-table primitives that the fault handler relies
// on: a pool of physical frames, per-process page tables, and the
// copy-on-write resolver.
package vm

import (
	"container/list"
	"errors"
	"fmt"
	"log"
	"sync"
)

// PID stands for Process ID.
type PID uint32

var (
	// ErrNotMapped is returned when a kernel copy touches an address that has
	// no user mapping.
	ErrNotMapped = errors.New("address not mapped")

	// ErrAlreadyMapped is returned when mapping over a valid page.
	ErrAlreadyMapped = errors.New("address already mapped")
)

// A Page is an entry in the page table, maintaining the information about how
// to translate a virtual address to a physical address.
type Page struct {
	PID   PID
	VAddr uint64
	PAddr uint64
	Perm  Perm
	Valid bool
}

// A PageTable holds the mapping of one address space.
type PageTable interface {
	// PID returns the process that owns the address space.
	PID() PID

	// MapRange maps every page in [PageRoundDown(vStart), vEnd) to a newly
	// allocated zeroed frame. If a frame cannot be allocated, the pages
	// mapped by the call are released and the error is returned.
	MapRange(vStart, vEnd uint64, perm Perm) error

	// MapFrame maps one page to an existing frame and takes a reference to
	// the frame.
	MapFrame(vAddr, pAddr uint64, perm Perm) error

	// Unmap removes numPages mappings starting at vAddr. Unmapping a page that
	// is not mapped is a kernel bug and panics.
	Unmap(vAddr uint64, numPages uint64, freePhysical bool)

	// CopyIn copies len(dst) bytes from the user address src.
	CopyIn(dst []byte, srcVAddr uint64) error

	// CopyOut copies src to the user address dst.
	CopyOut(dstVAddr uint64, src []byte) error

	// Find returns the page that contains the given virtual address.
	Find(vAddr uint64) (Page, bool)

	// Translate models the hardware page walk for a user access. It consults
	// the translation cache before walking the table.
	Translate(vAddr uint64, access Access) (pAddr uint64, ok bool)

	// InvalidateTranslationCache drops all cached translations.
	InvalidateTranslationCache()

	// NumMappedPages returns the number of valid pages.
	NumMappedPages() int

	// Pages returns the mapped pages in the order they were mapped.
	Pages() []Page
}

// NewPageTable creates an empty page table whose frames come from mem.
func NewPageTable(pid PID, mem *PhysicalMemory) PageTable {
	return &pageTableImpl{
		pid:          pid,
		mem:          mem,
		entries:      list.New(),
		entriesTable: make(map[uint64]*list.Element),
		tlb:          make(map[uint64]Page),
	}
}

// pageTableImpl keeps the pages in a doubly linked list in mapping order and
// indexes them by page-aligned virtual address.
type pageTableImpl struct {
	sync.Mutex
	pid          PID
	mem          *PhysicalMemory
	entries      *list.List
	entriesTable map[uint64]*list.Element
	tlb          map[uint64]Page
}

func (pt *pageTableImpl) PID() PID {
	return pt.pid
}

func (pt *pageTableImpl) MapRange(vStart, vEnd uint64, perm Perm) error {
	pt.Lock()
	defer pt.Unlock()

	var mapped []uint64

	for a := PageRoundDown(vStart); a < vEnd; a += PageSize {
		if _, found := pt.entriesTable[a]; found {
			pt.rollback(mapped)
			return fmt.Errorf("map 0x%x: %w", a, ErrAlreadyMapped)
		}

		pAddr, err := pt.mem.AllocFrame()
		if err != nil {
			pt.rollback(mapped)
			return fmt.Errorf("map 0x%x: %w", a, err)
		}

		pt.insert(Page{PID: pt.pid, VAddr: a, PAddr: pAddr, Perm: perm, Valid: true})
		mapped = append(mapped, a)
	}

	return nil
}

func (pt *pageTableImpl) rollback(mapped []uint64) {
	for _, a := range mapped {
		page := pt.remove(a)
		pt.mem.FreeFrame(page.PAddr)
	}
}

func (pt *pageTableImpl) MapFrame(vAddr, pAddr uint64, perm Perm) error {
	pt.Lock()
	defer pt.Unlock()

	vAddr = PageRoundDown(vAddr)
	if _, found := pt.entriesTable[vAddr]; found {
		return fmt.Errorf("map 0x%x: %w", vAddr, ErrAlreadyMapped)
	}

	pt.mem.Share(pAddr)
	pt.insert(Page{PID: pt.pid, VAddr: vAddr, PAddr: pAddr, Perm: perm, Valid: true})

	return nil
}

func (pt *pageTableImpl) Unmap(vAddr uint64, numPages uint64, freePhysical bool) {
	pt.Lock()
	defer pt.Unlock()

	if vAddr%PageSize != 0 {
		log.Panicf("unmap: 0x%x is not aligned", vAddr)
	}

	for i := uint64(0); i < numPages; i++ {
		a := vAddr + i*PageSize
		pt.pageMustExist(a)

		page := pt.remove(a)
		if freePhysical {
			pt.mem.FreeFrame(page.PAddr)
		}
	}
}

func (pt *pageTableImpl) CopyIn(dst []byte, srcVAddr uint64) error {
	return pt.copy(srcVAddr, uint64(len(dst)), func(pAddr uint64, done, n uint64) {
		pt.mem.Read(pAddr, dst[done:done+n])
	})
}

func (pt *pageTableImpl) CopyOut(dstVAddr uint64, src []byte) error {
	return pt.copy(dstVAddr, uint64(len(src)), func(pAddr uint64, done, n uint64) {
		pt.mem.Write(pAddr, src[done:done+n])
	})
}

// copy walks the table page by page, without the translation cache, the way
// the kernel accesses user memory.
func (pt *pageTableImpl) copy(
	vAddr, length uint64,
	move func(pAddr uint64, done, n uint64),
) error {
	pt.Lock()
	defer pt.Unlock()

	done := uint64(0)
	for done < length {
		va := vAddr + done
		base := PageRoundDown(va)

		page, found := pt.find(base)
		if !found || !page.Perm.Has(PermU) {
			return fmt.Errorf("copy 0x%x: %w", va, ErrNotMapped)
		}

		n := min(PageSize-(va-base), length-done)
		move(page.PAddr+(va-base), done, n)
		done += n
	}

	return nil
}

func (pt *pageTableImpl) Find(vAddr uint64) (Page, bool) {
	pt.Lock()
	defer pt.Unlock()

	return pt.find(PageRoundDown(vAddr))
}

func (pt *pageTableImpl) Translate(vAddr uint64, access Access) (uint64, bool) {
	pt.Lock()
	defer pt.Unlock()

	base := PageRoundDown(vAddr)

	page, cached := pt.tlb[base]
	if !cached {
		var found bool

		page, found = pt.find(base)
		if !found {
			return 0, false
		}

		pt.tlb[base] = page
	}

	if !page.Perm.Has(access.Required()) {
		return 0, false
	}

	return page.PAddr + (vAddr - base), true
}

func (pt *pageTableImpl) InvalidateTranslationCache() {
	pt.Lock()
	defer pt.Unlock()

	clear(pt.tlb)
}

func (pt *pageTableImpl) NumMappedPages() int {
	pt.Lock()
	defer pt.Unlock()

	return pt.entries.Len()
}

func (pt *pageTableImpl) Pages() []Page {
	pt.Lock()
	defer pt.Unlock()

	pages := make([]Page, 0, pt.entries.Len())
	for e := pt.entries.Front(); e != nil; e = e.Next() {
		pages = append(pages, e.Value.(Page))
	}

	return pages
}

func (pt *pageTableImpl) insert(page Page) {
	elem := pt.entries.PushBack(page)
	pt.entriesTable[page.VAddr] = elem
}

func (pt *pageTableImpl) remove(vAddr uint64) Page {
	elem := pt.entriesTable[vAddr]
	pt.entries.Remove(elem)
	delete(pt.entriesTable, vAddr)

	return elem.Value.(Page)
}

func (pt *pageTableImpl) find(vAddr uint64) (Page, bool) {
	elem, found := pt.entriesTable[vAddr]
	if found {
		return elem.Value.(Page), true
	}

	return Page{}, false
}

func (pt *pageTableImpl) pageMustExist(vAddr uint64) {
	_, found := pt.entriesTable[vAddr]
	if !found {
		log.Panicf("unmap: page 0x%x does not exist", vAddr)
	}
}
