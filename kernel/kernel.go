package kernel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sarchlab/demandpaging/loader"
	"github.com/sarchlab/demandpaging/mem/vm"
	"github.com/sarchlab/demandpaging/mem/vm/residency"
)

// Kernel is the process table of a machine. Its processes share one fault
// handler.
type Kernel struct {
	lock    sync.Mutex
	handler *Comp
	procs   map[vm.PID]*Proc
	nextPID vm.PID
}

// NewKernel creates a kernel whose processes fault into handler.
func NewKernel(handler *Comp) *Kernel {
	return &Kernel{
		handler: handler,
		procs:   make(map[vm.PID]*Proc),
		nextPID: 1,
	}
}

// Handler returns the fault handler of the kernel.
func (k *Kernel) Handler() *Comp {
	return k.handler
}

// Spawn creates a process that runs the executable name. Nothing is mapped:
// program pages come in on the first touch, and the empty heap starts at the
// first page above the image.
func (k *Kernel) Spawn(name string) (*Proc, error) {
	ip, err := k.handler.images.Open(name)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}

	end, err := loader.ImageEnd(ip)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}

	p := k.newProc(name)
	p.HeapBase = vm.PageRoundUp(end)
	p.HeapTop = p.HeapBase

	k.add(p)

	return p, nil
}

// Fork creates a copy of parent. Mapped pages are shared copy-on-write by both
// processes, and each swapped heap page gets its own slot for the child.
func (k *Kernel) Fork(parent *Proc) (*Proc, error) {
	parent.lock.Lock()
	defer parent.lock.Unlock()

	child := k.newProc(parent.Name)
	child.CowEnabled = true
	child.HeapBase = parent.HeapBase
	child.HeapTop = parent.HeapTop
	child.ResidentHeapPages = parent.ResidentHeapPages

	if err := k.sharePages(parent, child); err != nil {
		k.release(child)
		return nil, err
	}

	for _, e := range parent.HeapTracker.Snapshot() {
		entry, _ := child.HeapTracker.Claim(e.Addr)
		if e.Resident {
			child.HeapTracker.MarkLoaded(entry, e.LastAccess)
		}

		if e.Swapped() {
			block := k.handler.duplicateSwapSlot(child, e.Addr, e.SwapStart)
			child.HeapTracker.MarkEvicted(entry, block)
		}
	}

	parent.CowEnabled = true
	parent.PageTable.InvalidateTranslationCache()

	k.add(child)

	return child, nil
}

func (k *Kernel) sharePages(parent, child *Proc) error {
	for _, page := range parent.PageTable.Pages() {
		perm := page.Perm
		if perm.Has(vm.PermW) {
			perm = (perm &^ vm.PermW) | vm.PermCOW

			parent.PageTable.Unmap(page.VAddr, 1, false)
			if err := parent.PageTable.MapFrame(page.VAddr, page.PAddr, perm); err != nil {
				return err
			}

			// MapFrame took a new reference for the parent.
			k.handler.physMem.FreeFrame(page.PAddr)
		}

		if err := child.PageTable.MapFrame(page.VAddr, page.PAddr, perm); err != nil {
			return err
		}
	}

	return nil
}

// Proc returns the process with the given PID.
func (k *Kernel) Proc(pid vm.PID) (*Proc, bool) {
	k.lock.Lock()
	defer k.lock.Unlock()

	p, found := k.procs[pid]

	return p, found
}

// Procs returns the live processes ordered by PID.
func (k *Kernel) Procs() []*Proc {
	k.lock.Lock()
	defer k.lock.Unlock()

	procs := make([]*Proc, 0, len(k.procs))
	for _, p := range k.procs {
		procs = append(procs, p)
	}

	sort.Slice(procs, func(i, j int) bool {
		return procs[i].PID < procs[j].PID
	})

	return procs
}

// Exit frees the frames and swap slots of p and removes it from the process
// table.
func (k *Kernel) Exit(p *Proc) {
	p.lock.Lock()
	defer p.lock.Unlock()

	k.release(p)

	k.lock.Lock()
	delete(k.procs, p.PID)
	k.lock.Unlock()
}

func (k *Kernel) release(p *Proc) {
	for _, page := range p.PageTable.Pages() {
		p.PageTable.Unmap(page.VAddr, 1, true)
	}

	for i := 0; i < p.HeapTracker.Capacity(); i++ {
		e := p.HeapTracker.At(i)
		if e.Addr == residency.UnusedAddr {
			continue
		}

		if e.Swapped() {
			k.handler.swapAllocator.Release(e.SwapStart)
			p.HeapTracker.MarkRetrieved(e)
		}

		e.Resident = false
	}

	p.ResidentHeapPages = 0
	p.PageTable.InvalidateTranslationCache()
}

func (k *Kernel) newProc(name string) *Proc {
	k.lock.Lock()
	pid := k.nextPID
	k.nextPID++
	k.lock.Unlock()

	return &Proc{
		PID:         pid,
		Name:        name,
		PageTable:   vm.NewPageTable(pid, k.handler.physMem),
		HeapTracker: residency.NewTracker(k.handler.heapTrackerCapacity),
	}
}

func (k *Kernel) add(p *Proc) {
	k.lock.Lock()
	defer k.lock.Unlock()

	k.procs[p.PID] = p
}
