package residency_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/demandpaging/mem/vm/residency"
)

var _ = Describe("Tracker", func() {
	var t *residency.Tracker

	BeforeEach(func() {
		t = residency.NewTracker(3)
	})

	It("should start with every slot unused", func() {
		Expect(t.Capacity()).To(Equal(3))
		Expect(t.NumTracked()).To(Equal(0))
		Expect(t.NumResident()).To(Equal(0))

		e := t.At(0)
		Expect(e.Addr).To(Equal(residency.UnusedAddr))
		Expect(e.Swapped()).To(BeFalse())
	})

	It("should claim the first unused slot", func() {
		a, ok := t.Claim(0x5000)
		Expect(ok).To(BeTrue())
		Expect(a).To(BeIdenticalTo(t.At(0)))

		b, ok := t.Claim(0x6000)
		Expect(ok).To(BeTrue())
		Expect(b).To(BeIdenticalTo(t.At(1)))
	})

	It("should keep one entry per address", func() {
		a, _ := t.Claim(0x5000)
		b, _ := t.Claim(0x5000)

		Expect(b).To(BeIdenticalTo(a))
		Expect(t.NumTracked()).To(Equal(1))
	})

	It("should fail when full", func() {
		t.Claim(0x1000)
		t.Claim(0x2000)
		t.Claim(0x3000)

		_, ok := t.Claim(0x4000)
		Expect(ok).To(BeFalse())

		_, ok = t.Claim(0x2000)
		Expect(ok).To(BeTrue())
	})

	It("should refuse the reserved address", func() {
		Expect(func() { t.Claim(residency.UnusedAddr) }).To(Panic())
	})

	It("should follow a page through evict and reload", func() {
		e, _ := t.Claim(0x5000)

		t.MarkLoaded(e, 7)
		Expect(e.Resident).To(BeTrue())
		Expect(e.LastAccess).To(BeEquivalentTo(7))
		Expect(t.NumResident()).To(Equal(1))

		t.MarkEvicted(e, 12)
		Expect(e.Resident).To(BeFalse())
		Expect(t.IsSwapped(0x5000)).To(BeTrue())
		Expect(e.SwapStart).To(Equal(uint64(12)))

		t.MarkLoaded(e, 20)
		t.MarkRetrieved(e)
		Expect(e.Resident).To(BeTrue())
		Expect(e.SwapStart).To(Equal(residency.NoBlock))
		Expect(t.IsSwapped(0x5000)).To(BeFalse())
		Expect(t.NumTracked()).To(Equal(1))
	})

	It("should look up tracked addresses only", func() {
		t.Claim(0x5000)

		_, found := t.Lookup(0x5000)
		Expect(found).To(BeTrue())

		_, found = t.Lookup(0x6000)
		Expect(found).To(BeFalse())
		Expect(t.IsSwapped(0x6000)).To(BeFalse())
	})

	It("should snapshot the slots in use", func() {
		e, _ := t.Claim(0x5000)
		t.MarkLoaded(e, 1)
		t.Claim(0x7000)

		snap := t.Snapshot()

		Expect(snap).To(HaveLen(2))
		Expect(snap[0].Addr).To(Equal(uint64(0x5000)))
		Expect(snap[0].Resident).To(BeTrue())
		Expect(snap[1].Addr).To(Equal(uint64(0x7000)))

		snap[0].Resident = false
		Expect(e.Resident).To(BeTrue())
	})
})
