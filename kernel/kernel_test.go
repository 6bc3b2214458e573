package kernel

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/demandpaging/loader"
	"github.com/sarchlab/demandpaging/mem/disk"
	"github.com/sarchlab/demandpaging/mem/vm"
)

var _ = Describe("Builder", func() {
	It("should build with the default configuration", func() {
		handler := MakeBuilder().Build("Handler")

		Expect(handler.Name()).To(Equal("Handler"))
		Expect(handler.MaxResidentHeapPages()).To(Equal(100))
		Expect(handler.HeapTrackerCapacity()).To(Equal(1000))
		Expect(handler.SwapAllocator().NumSlots()).To(Equal(256))
		Expect(handler.PhysicalMemory().NumFrames()).To(Equal(2048))
		Expect(handler.Clock().CurrentTime()).To(BeZero())
	})

	It("should reject a budget of zero", func() {
		Expect(func() {
			MakeBuilder().WithMaxResidentHeapPages(0).Build("Handler")
		}).To(Panic())
	})

	It("should reject a tracker smaller than the budget", func() {
		Expect(func() {
			MakeBuilder().
				WithMaxResidentHeapPages(10).
				WithHeapTrackerCapacity(9).
				Build("Handler")
		}).To(Panic())
	})

	It("should reject a swap area that is not a whole number of slots", func() {
		Expect(func() {
			MakeBuilder().WithSwapBlocks(6).Build("Handler")
		}).To(Panic())
	})

	It("should reject a device too small for the swap area", func() {
		Expect(func() {
			MakeBuilder().
				WithSwapBackend(disk.NewStorage(100)).
				WithSwapStart(8).
				WithSwapBlocks(96).
				Build("Handler")
		}).To(Panic())
	})
})

var _ = Describe("Kernel", func() {
	var (
		images *loader.MemFS
		k      *Kernel
	)

	BeforeEach(func() {
		images = loader.NewMemFS()
		images.Add("prog", testImage())

		k = NewKernel(MakeBuilder().
			WithImages(images).
			WithHeapTrackerCapacity(200).
			Build("Handler"))
	})

	It("should not spawn a missing executable", func() {
		_, err := k.Spawn("missing")

		Expect(err).To(MatchError(loader.ErrNotFound))
		Expect(k.Procs()).To(BeEmpty())
	})

	It("should list processes by PID", func() {
		p1, _ := k.Spawn("prog")
		p2, _ := k.Spawn("prog")

		Expect(k.Procs()).To(Equal([]*Proc{p1, p2}))

		found, ok := k.Proc(p2.PID)
		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(p2))

		k.Exit(p1)

		_, ok = k.Proc(p1.PID)
		Expect(ok).To(BeFalse())
	})

	It("should grow the heap without mapping", func() {
		p, _ := k.Spawn("prog")

		old, err := p.Sbrk(100)
		Expect(err).NotTo(HaveOccurred())
		Expect(old).To(Equal(uint64(heapBase)))

		old, err = p.Sbrk(int64(vm.PageSize))
		Expect(err).NotTo(HaveOccurred())
		Expect(old).To(Equal(uint64(heapBase + 100)))

		Expect(p.InHeap(heapBase + vm.PageSize)).To(BeTrue())
		Expect(p.InHeap(heapBase + 2*vm.PageSize)).To(BeFalse())
		Expect(p.PageTable.NumMappedPages()).To(BeZero())
	})

	It("should refuse to shrink the heap", func() {
		p, _ := k.Spawn("prog")

		_, err := p.Sbrk(-1)

		Expect(err).To(MatchError(ErrHeapShrink))
	})

	It("should refuse a heap larger than the tracker", func() {
		p, _ := k.Spawn("prog")

		_, err := p.Sbrk(int64(201 * vm.PageSize))

		Expect(err).To(MatchError(ErrHeapLimit))
		Expect(p.HeapTop).To(Equal(uint64(heapBase)))
	})

	It("should report process stats", func() {
		p, _ := k.Spawn("prog")
		_, _ = p.Sbrk(int64(vm.PageSize))
		k.Handler().HandlePageFault(p, Trap{Addr: heapBase, Cause: CauseLoadPageFault})

		stats := p.Stats()

		Expect(stats.PID).To(Equal(p.PID))
		Expect(stats.Name).To(Equal("prog"))
		Expect(stats.ResidentHeapPages).To(Equal(1))
		Expect(stats.MappedPages).To(Equal(1))
		Expect(stats.Heap).To(HaveLen(1))
		Expect(stats.Heap[0].Addr).To(Equal(uint64(heapBase)))
	})
})

var _ = Describe("Cause", func() {
	It("should map accesses to causes", func() {
		Expect(CauseFor(vm.AccessWrite)).To(Equal(CauseStorePageFault))
		Expect(CauseFor(vm.AccessRead)).To(Equal(CauseLoadPageFault))
		Expect(CauseFor(vm.AccessExec)).To(Equal(CauseInstructionPageFault))
		Expect(CauseStorePageFault.String()).To(Equal("store page fault"))
		Expect(FaultKindHeap.String()).To(Equal("heap"))
	})
})
