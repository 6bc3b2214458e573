package eviction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/demandpaging/mem/vm/residency"
	"github.com/sarchlab/demandpaging/sim"
)

func load(t *residency.Tracker, addr uint64, at sim.Tick) *residency.Entry {
	e, _ := t.Claim(addr)
	t.MarkLoaded(e, at)

	return e
}

var _ = Describe("WorkingSetVictimFinder", func() {
	var (
		t *residency.Tracker
		f *WorkingSetVictimFinder
	)

	BeforeEach(func() {
		t = residency.NewTracker(8)
		f = NewWorkingSetVictimFinder(50)
	})

	It("should find nothing without resident pages", func() {
		e := load(t, 0x1000, 0)
		t.MarkEvicted(e, 0)

		_, found := f.FindVictim(t, 100)

		Expect(found).To(BeFalse())
	})

	It("should pick the oldest page outside the window", func() {
		load(t, 0x1000, 30)
		load(t, 0x2000, 10)
		load(t, 0x3000, 20)
		load(t, 0x4000, 90)

		victim, found := f.FindVictim(t, 100)

		Expect(found).To(BeTrue())
		Expect(t.At(victim).Addr).To(Equal(uint64(0x2000)))
	})

	It("should not treat a page exactly at the window as outside", func() {
		load(t, 0x1000, 60)
		load(t, 0x2000, 50)

		victim, found := f.FindVictim(t, 100)

		Expect(found).To(BeTrue())
		Expect(t.At(victim).Addr).To(Equal(uint64(0x2000)))
	})

	It("should fall back to the least recently loaded page", func() {
		load(t, 0x1000, 80)
		load(t, 0x2000, 70)
		load(t, 0x3000, 95)

		victim, found := f.FindVictim(t, 100)

		Expect(found).To(BeTrue())
		Expect(t.At(victim).Addr).To(Equal(uint64(0x2000)))
	})

	It("should break ties by slot order", func() {
		load(t, 0x1000, 5)
		load(t, 0x2000, 5)

		victim, _ := f.FindVictim(t, 100)

		Expect(victim).To(Equal(0))
	})

	It("should skip evicted pages", func() {
		e := load(t, 0x1000, 0)
		t.MarkEvicted(e, 4)
		load(t, 0x2000, 90)

		victim, found := f.FindVictim(t, 100)

		Expect(found).To(BeTrue())
		Expect(t.At(victim).Addr).To(Equal(uint64(0x2000)))
	})

	It("should honor the configured window", func() {
		f = NewWorkingSetVictimFinder(5)
		load(t, 0x1000, 92)
		load(t, 0x2000, 96)

		victim, _ := f.FindVictim(t, 100)

		Expect(t.At(victim).Addr).To(Equal(uint64(0x1000)))
	})
})

var _ = Describe("LRUVictimFinder", func() {
	It("should pick the least recently loaded page", func() {
		t := residency.NewTracker(4)
		load(t, 0x1000, 3)
		load(t, 0x2000, 1)
		load(t, 0x3000, 2)

		victim, found := NewLRUVictimFinder().FindVictim(t, 3)

		Expect(found).To(BeTrue())
		Expect(t.At(victim).Addr).To(Equal(uint64(0x2000)))
	})
})
