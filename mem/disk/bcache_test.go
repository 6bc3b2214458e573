package disk

import (
	"bytes"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("BufferCache", func() {
	var (
		mockCtrl *gomock.Controller
		cache    *BufferCache
		storage  *Storage
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		cache = NewBufferCache()
		storage = NewStorage(16)
		cache.AttachDevice(1, storage)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should write through to the device", func() {
		b, err := cache.Read(1, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Dev).To(Equal(uint32(1)))
		Expect(b.BlockNo).To(Equal(uint64(3)))

		copy(b.Data, bytes.Repeat([]byte{4}, BlockSize))
		Expect(cache.Write(b)).To(Succeed())
		cache.Release(b)

		buf := make([]byte, BlockSize)
		Expect(storage.ReadBlock(3, buf)).To(Succeed())
		Expect(buf).To(Equal(bytes.Repeat([]byte{4}, BlockSize)))
	})

	It("should load a block from the device only once", func() {
		backend := NewMockBackend(mockCtrl)
		backend.EXPECT().NumBlocks().Return(uint64(4)).AnyTimes()
		backend.EXPECT().ReadBlock(uint64(2), gomock.Any()).Return(nil).Times(1)
		cache.AttachDevice(2, backend)

		for i := 0; i < 3; i++ {
			b, err := cache.Read(2, 2)
			Expect(err).NotTo(HaveOccurred())
			cache.Release(b)
		}
	})

	It("should report read failures and stay usable", func() {
		backend := NewMockBackend(mockCtrl)
		backend.EXPECT().NumBlocks().Return(uint64(4)).AnyTimes()
		backend.EXPECT().ReadBlock(uint64(1), gomock.Any()).
			Return(errors.New("media error"))
		backend.EXPECT().ReadBlock(uint64(1), gomock.Any()).Return(nil)
		cache.AttachDevice(2, backend)

		_, err := cache.Read(2, 1)
		Expect(err).To(HaveOccurred())

		b, err := cache.Read(2, 1)
		Expect(err).NotTo(HaveOccurred())
		cache.Release(b)
	})

	It("should reload a block after a failed write", func() {
		backend := NewMockBackend(mockCtrl)
		backend.EXPECT().NumBlocks().Return(uint64(4)).AnyTimes()
		backend.EXPECT().ReadBlock(uint64(0), gomock.Any()).Return(nil).Times(2)
		backend.EXPECT().WriteBlock(uint64(0), gomock.Any()).
			Return(errors.New("media error"))
		cache.AttachDevice(2, backend)

		b, _ := cache.Read(2, 0)
		Expect(cache.Write(b)).NotTo(Succeed())
		cache.Release(b)

		b, err := cache.Read(2, 0)
		Expect(err).NotTo(HaveOccurred())
		cache.Release(b)
	})

	It("should reject unknown devices and blocks", func() {
		_, err := cache.Read(9, 0)
		Expect(err).To(HaveOccurred())

		_, err = cache.Read(1, 16)
		Expect(err).To(MatchError(ErrBlockOutOfRange))
	})

	It("should refuse to attach a device twice", func() {
		Expect(func() { cache.AttachDevice(1, NewStorage(1)) }).To(Panic())
	})

	It("should panic on a released buffer", func() {
		b, _ := cache.Read(1, 0)
		cache.Release(b)

		Expect(func() { cache.Release(b) }).To(Panic())
		Expect(func() { cache.Write(b) }).To(Panic())
	})

	It("should hand a block to one holder at a time", func() {
		b, _ := cache.Read(1, 5)

		var wg sync.WaitGroup
		acquired := make(chan struct{})

		wg.Add(1)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()

			b2, err := cache.Read(1, 5)
			Expect(err).NotTo(HaveOccurred())
			close(acquired)
			cache.Release(b2)
		}()

		Consistently(acquired, 50*time.Millisecond).ShouldNot(BeClosed())

		cache.Release(b)
		Eventually(acquired).Should(BeClosed())
		wg.Wait()
	})
})
