package workload

import (
	"debug/elf"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/demandpaging/kernel"
	"github.com/sarchlab/demandpaging/loader"
	"github.com/sarchlab/demandpaging/mem/vm"
	"github.com/sarchlab/demandpaging/sim"
)

type countingProgress struct {
	finished uint64
}

func (c *countingProgress) IncrementFinished(amount uint64) {
	c.finished += amount
}

var _ = Describe("Workloads", func() {
	var (
		images  *loader.MemFS
		handler *kernel.Comp
		k       *kernel.Kernel
		h       *kernel.Hart
		p       *kernel.Proc
	)

	BeforeEach(func() {
		text := make([]byte, vm.PageSize+20)
		for i := range text {
			text[i] = byte(i * 7)
		}

		images = loader.NewMemFS()
		images.Add("prog", loader.MakeImageBuilder().
			WithSegment(loader.Segment{
				Flags: elf.PF_R | elf.PF_X,
				VAddr: 0x1000,
				Data:  text,
			}).
			WithSegment(loader.Segment{
				Flags:   elf.PF_R | elf.PF_W,
				VAddr:   0x3000,
				Data:    []byte("hello"),
				MemSize: vm.PageSize + 1,
			}).
			Build())

		clock := sim.NewClock()
		handler = kernel.MakeBuilder().
			WithClock(clock).
			WithImages(images).
			WithMaxResidentHeapPages(4).
			WithHeapTrackerCapacity(16).
			WithSwapBlocks(64).
			Build("Handler")
		k = kernel.NewKernel(handler)
		h = kernel.NewHart(k, clock)

		var err error
		p, err = k.Spawn("prog")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should keep every heap page over the budget", func() {
		progress := &countingProgress{}
		w := HeapStress{Pages: 10, Value: 5, Progress: progress}

		start, err := w.Run(h, p)

		Expect(err).NotTo(HaveOccurred())
		Expect(start).To(Equal(p.HeapBase))
		Expect(progress.finished).To(Equal(w.TotalPages()))
		Expect(p.ResidentHeapPages).To(Equal(4))
		Expect(p.HeapTracker.NumTracked()).To(Equal(10))
	})

	It("should fail when the heap cannot grow", func() {
		_, err := HeapStress{Pages: 17, Value: 1}.Run(h, p)

		Expect(err).To(MatchError(kernel.ErrHeapLimit))
	})

	It("should read the image back through the page tables", func() {
		pages, err := ImageTouch{Images: images}.Run(h, p)

		Expect(err).NotTo(HaveOccurred())
		Expect(pages).To(Equal(4))
	})

	It("should notice a page that differs from the image", func() {
		Expect(h.Load(p, 0x3000)).To(Equal(byte('h')))
		Expect(h.Store(p, 0x3000, 'j')).To(Succeed())

		_, err := ImageTouch{Images: images}.Run(h, p)

		Expect(err).To(MatchError(ErrCorrupted))
	})
})
