package swap

import (
	"log"
	"sync"

	"github.com/sarchlab/demandpaging/mem/disk"
	"github.com/sarchlab/demandpaging/mem/vm"
)

// A Stager copies whole pages between a user address space and a swap slot
// through a kernel-owned staging buffer, one block transfer at a time.
//
// Both directions are synchronous. A failed block transfer leaves a half
// moved page behind, which has no safe state, so it panics.
type Stager struct {
	cache       disk.BlockCache
	dev         uint32
	regionStart uint64
	buffers     sync.Pool
}

// NewStager creates a stager for the swap area that starts at block
// regionStart of device dev.
func NewStager(cache disk.BlockCache, dev uint32, regionStart uint64) *Stager {
	return &Stager{
		cache:       cache,
		dev:         dev,
		regionStart: regionStart,
		buffers: sync.Pool{
			New: func() any {
				b := make([]byte, vm.PageSize)
				return &b
			},
		},
	}
}

// WritePageToDisk copies the page at srcVAddr into the slot that starts at
// blockIndex. The source mapping is left untouched.
func (s *Stager) WritePageToDisk(pt vm.PageTable, srcVAddr, blockIndex uint64) {
	staging := s.buffers.Get().(*[]byte)
	defer s.buffers.Put(staging)

	page := *staging
	if err := pt.CopyIn(page, srcVAddr); err != nil {
		log.Panicf("swap out of 0x%x: %v", srcVAddr, err)
	}

	for i := uint64(0); i < BlocksPerSlot; i++ {
		blockNo := s.regionStart + blockIndex + i

		b, err := s.cache.Read(s.dev, blockNo)
		if err != nil {
			log.Panicf("swap out of 0x%x: %v", srcVAddr, err)
		}

		copy(b.Data, page[i*disk.BlockSize:(i+1)*disk.BlockSize])

		err = s.cache.Write(b)
		s.cache.Release(b)

		if err != nil {
			log.Panicf("swap out of 0x%x: %v", srcVAddr, err)
		}
	}
}

// ReadPageFromDisk copies the slot that starts at blockIndex into the page at
// dstVAddr, which must already be mapped writable.
func (s *Stager) ReadPageFromDisk(pt vm.PageTable, blockIndex, dstVAddr uint64) {
	staging := s.buffers.Get().(*[]byte)
	defer s.buffers.Put(staging)

	page := *staging
	for i := uint64(0); i < BlocksPerSlot; i++ {
		blockNo := s.regionStart + blockIndex + i

		b, err := s.cache.Read(s.dev, blockNo)
		if err != nil {
			log.Panicf("swap in to 0x%x: %v", dstVAddr, err)
		}

		copy(page[i*disk.BlockSize:(i+1)*disk.BlockSize], b.Data)
		s.cache.Release(b)
	}

	if err := pt.CopyOut(dstVAddr, page); err != nil {
		log.Panicf("swap in to 0x%x: %v", dstVAddr, err)
	}
}
