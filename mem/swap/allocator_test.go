package swap

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SlotAllocator", func() {
	var a *SlotAllocator

	BeforeEach(func() {
		a = NewSlotAllocator(16)
	})

	It("should hold a page per slot", func() {
		Expect(BlocksPerSlot).To(Equal(uint64(4)))
		Expect(a.NumSlots()).To(Equal(4))
		Expect(a.NumFreeSlots()).To(Equal(4))
	})

	It("should refuse areas that are not whole slots", func() {
		Expect(func() { NewSlotAllocator(10) }).To(Panic())
		Expect(func() { NewSlotAllocator(0) }).To(Panic())
	})

	It("should hand out the lowest free slot", func() {
		Expect(a.Allocate()).To(Equal(uint64(0)))
		Expect(a.Allocate()).To(Equal(uint64(4)))
		Expect(a.Allocate()).To(Equal(uint64(8)))

		a.Release(4)

		Expect(a.Allocate()).To(Equal(uint64(4)))
		Expect(a.UsedSlots()).To(Equal([]uint64{0, 4, 8}))
	})

	It("should track slots in use", func() {
		s := a.Allocate()

		Expect(a.InUse(s)).To(BeTrue())
		Expect(a.NumFreeSlots()).To(Equal(3))

		a.Release(s)

		Expect(a.InUse(s)).To(BeFalse())
		Expect(a.NumFreeSlots()).To(Equal(4))
	})

	It("should panic when swap is exhausted", func() {
		for i := 0; i < 4; i++ {
			a.Allocate()
		}

		Expect(func() { a.Allocate() }).To(Panic())
	})

	It("should panic when releasing a free slot", func() {
		Expect(func() { a.Release(8) }).To(Panic())
	})

	It("should panic on misaligned slots", func() {
		a.Allocate()

		Expect(func() { a.Release(2) }).To(Panic())
		Expect(func() { a.InUse(3) }).To(Panic())
		Expect(func() { a.InUse(16) }).To(Panic())
	})

	It("should give concurrent callers disjoint slots", func() {
		a = NewSlotAllocator(1024)

		var (
			wg    sync.WaitGroup
			lock  sync.Mutex
			slots = make(map[uint64]bool)
		)

		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				for j := 0; j < 32; j++ {
					s := a.Allocate()

					lock.Lock()
					Expect(slots).NotTo(HaveKey(s))
					slots[s] = true
					lock.Unlock()
				}
			}()
		}
		wg.Wait()

		Expect(slots).To(HaveLen(256))
		Expect(a.NumFreeSlots()).To(Equal(0))
	})
})
