package vm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PhysicalMemory", func() {
	var m *PhysicalMemory

	BeforeEach(func() {
		m = NewPhysicalMemory(0x80000000, 2)
	})

	It("should round addresses to pages", func() {
		Expect(PageRoundDown(0x1fff)).To(Equal(uint64(0x1000)))
		Expect(PageRoundUp(0x1001)).To(Equal(uint64(0x2000)))
		Expect(PageRoundUp(0x2000)).To(Equal(uint64(0x2000)))
	})

	It("should hand out frames until exhausted", func() {
		a, err := m.AllocFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(uint64(0x80000000)))

		b, err := m.AllocFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(uint64(0x80001000)))

		_, err = m.AllocFrame()
		Expect(err).To(MatchError(ErrOutOfMemory))
		Expect(m.NumFreeFrames()).To(Equal(0))
	})

	It("should zero recycled frames", func() {
		a, _ := m.AllocFrame()
		m.Write(a+8, []byte{1, 2, 3})
		m.FreeFrame(a)

		b, _ := m.AllocFrame()
		Expect(b).To(Equal(a))

		buf := make([]byte, 16)
		m.Read(b, buf)
		Expect(buf).To(Equal(make([]byte, 16)))
	})

	It("should keep shared frames until the last reference", func() {
		a, _ := m.AllocFrame()
		m.Share(a)
		Expect(m.RefCount(a)).To(Equal(2))

		m.FreeFrame(a)
		Expect(m.RefCount(a)).To(Equal(1))
		Expect(m.NumFreeFrames()).To(Equal(1))

		m.FreeFrame(a)
		Expect(m.RefCount(a)).To(Equal(0))
		Expect(m.NumFreeFrames()).To(Equal(2))
	})

	It("should panic on accesses to free frames", func() {
		Expect(func() { m.Read(0x80000000, make([]byte, 1)) }).To(Panic())
		Expect(func() { m.FreeFrame(0x80000000) }).To(Panic())
	})

	It("should panic on accesses crossing a frame", func() {
		a, _ := m.AllocFrame()

		Expect(func() { m.Write(a+PageSize-1, []byte{1, 2}) }).To(Panic())
	})
})
