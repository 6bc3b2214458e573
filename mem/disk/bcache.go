// Package disk provides the block-storage layer under the swap area: a buffer
// cache with per-block locking and the devices behind it.
package disk

import (
	"fmt"
	"log"
	"sync"
)

// A Buf is a block-sized buffer that belongs to one disk block.
type Buf struct {
	Dev     uint32
	BlockNo uint64
	Data    []byte

	entry *bufEntry
}

// A BlockCache hands out locked buffers for disk blocks.
type BlockCache interface {
	// Read returns a locked buffer holding the content of the block. It
	// blocks while another caller holds the same block.
	Read(dev uint32, blockNo uint64) (*Buf, error)

	// Write persists the buffer content to the device. The caller must hold
	// the buffer.
	Write(b *Buf) error

	// Release unlocks the buffer. The buffer must not be used afterwards.
	Release(b *Buf)
}

type bufKey struct {
	dev     uint32
	blockNo uint64
}

type bufEntry struct {
	lock  sync.Mutex
	valid bool
	data  []byte
}

// BufferCache is the default BlockCache. It keeps one entry per touched block
// and serializes the users of a block with the entry's lock.
type BufferCache struct {
	lock    sync.Mutex
	devices map[uint32]Backend
	entries map[bufKey]*bufEntry
}

// NewBufferCache creates a buffer cache with no device attached.
func NewBufferCache() *BufferCache {
	return &BufferCache{
		devices: make(map[uint32]Backend),
		entries: make(map[bufKey]*bufEntry),
	}
}

// AttachDevice makes a backend reachable under the device number.
func (c *BufferCache) AttachDevice(dev uint32, backend Backend) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, found := c.devices[dev]; found {
		log.Panicf("device %d is already attached", dev)
	}

	c.devices[dev] = backend
}

// Read returns the locked buffer of a block, loading it from the device on
// the first access.
func (c *BufferCache) Read(dev uint32, blockNo uint64) (*Buf, error) {
	backend, entry, err := c.get(dev, blockNo)
	if err != nil {
		return nil, err
	}

	entry.lock.Lock()

	if !entry.valid {
		if err := backend.ReadBlock(blockNo, entry.data); err != nil {
			entry.lock.Unlock()
			return nil, fmt.Errorf("read block %d on dev %d: %w",
				blockNo, dev, err)
		}

		entry.valid = true
	}

	return &Buf{Dev: dev, BlockNo: blockNo, Data: entry.data, entry: entry}, nil
}

// Write persists the buffer to its device.
func (c *BufferCache) Write(b *Buf) error {
	if b.entry == nil {
		log.Panicf("write of block %d on dev %d without holding it",
			b.BlockNo, b.Dev)
	}

	backend := c.device(b.Dev)
	if backend == nil {
		return fmt.Errorf("dev %d is not attached", b.Dev)
	}

	if err := backend.WriteBlock(b.BlockNo, b.Data); err != nil {
		b.entry.valid = false
		return fmt.Errorf("write block %d on dev %d: %w", b.BlockNo, b.Dev, err)
	}

	return nil
}

// Release unlocks the buffer.
func (c *BufferCache) Release(b *Buf) {
	if b.entry == nil {
		log.Panicf("release of block %d on dev %d without holding it",
			b.BlockNo, b.Dev)
	}

	entry := b.entry
	b.entry = nil
	b.Data = nil
	entry.lock.Unlock()
}

func (c *BufferCache) device(dev uint32) Backend {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.devices[dev]
}

func (c *BufferCache) get(dev uint32, blockNo uint64) (Backend, *bufEntry, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	backend, found := c.devices[dev]
	if !found {
		return nil, nil, fmt.Errorf("dev %d is not attached", dev)
	}

	if blockNo >= backend.NumBlocks() {
		return nil, nil, fmt.Errorf("block %d on dev %d: %w",
			blockNo, dev, ErrBlockOutOfRange)
	}

	key := bufKey{dev: dev, blockNo: blockNo}

	entry, found := c.entries[key]
	if !found {
		entry = &bufEntry{data: make([]byte, BlockSize)}
		c.entries[key] = entry
	}

	return backend, entry, nil
}
