package disk

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// BlockSize is the number of bytes in a disk block.
const BlockSize = 1024

// ErrBlockOutOfRange is returned when a block number is beyond the device.
var ErrBlockOutOfRange = errors.New("block out of range")

// A Backend stores the blocks of one device.
type Backend interface {
	ReadBlock(blockNo uint64, dst []byte) error
	WriteBlock(blockNo uint64, src []byte) error
	NumBlocks() uint64
}

// A Storage is an in-memory Backend.
//
// The storage manages the data in blocks. For the blocks that are never
// written, no memory is allocated and reads return zeros.
type Storage struct {
	lock      sync.Mutex
	numBlocks uint64
	data      map[uint64][]byte
}

// NewStorage creates a storage with the given number of blocks.
func NewStorage(numBlocks uint64) *Storage {
	return &Storage{
		numBlocks: numBlocks,
		data:      make(map[uint64][]byte),
	}
}

// NumBlocks returns the capacity of the storage in blocks.
func (s *Storage) NumBlocks() uint64 {
	return s.numBlocks
}

// ReadBlock copies the content of a block into dst.
func (s *Storage) ReadBlock(blockNo uint64, dst []byte) error {
	if err := s.checkRange(blockNo, dst); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	unit, ok := s.data[blockNo]
	if !ok {
		clear(dst)
		return nil
	}

	copy(dst, unit)

	return nil
}

// WriteBlock replaces the content of a block with src.
func (s *Storage) WriteBlock(blockNo uint64, src []byte) error {
	if err := s.checkRange(blockNo, src); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	unit, ok := s.data[blockNo]
	if !ok {
		unit = make([]byte, BlockSize)
		s.data[blockNo] = unit
	}

	copy(unit, src)

	return nil
}

func (s *Storage) checkRange(blockNo uint64, buf []byte) error {
	if blockNo >= s.numBlocks {
		return fmt.Errorf("block %d of %d: %w", blockNo, s.numBlocks,
			ErrBlockOutOfRange)
	}

	if len(buf) != BlockSize {
		return fmt.Errorf("buffer of %d bytes, want %d", len(buf), BlockSize)
	}

	return nil
}

// A FileStorage is a Backend that keeps the blocks in a host file.
type FileStorage struct {
	file      *os.File
	numBlocks uint64
}

// OpenFileStorage opens or creates the file at path and sizes it to hold
// numBlocks blocks.
func OpenFileStorage(path string, numBlocks uint64) (*FileStorage, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open disk image %s: %w", path, err)
	}

	if err := f.Truncate(int64(numBlocks * BlockSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("size disk image %s: %w", path, err)
	}

	return &FileStorage{file: f, numBlocks: numBlocks}, nil
}

// NumBlocks returns the capacity of the file in blocks.
func (s *FileStorage) NumBlocks() uint64 {
	return s.numBlocks
}

// ReadBlock reads one block from the file.
func (s *FileStorage) ReadBlock(blockNo uint64, dst []byte) error {
	if blockNo >= s.numBlocks {
		return fmt.Errorf("block %d of %d: %w", blockNo, s.numBlocks,
			ErrBlockOutOfRange)
	}

	_, err := s.file.ReadAt(dst[:BlockSize], int64(blockNo*BlockSize))

	return err
}

// WriteBlock writes one block to the file.
func (s *FileStorage) WriteBlock(blockNo uint64, src []byte) error {
	if blockNo >= s.numBlocks {
		return fmt.Errorf("block %d of %d: %w", blockNo, s.numBlocks,
			ErrBlockOutOfRange)
	}

	_, err := s.file.WriteAt(src[:BlockSize], int64(blockNo*BlockSize))

	return err
}

// Close closes the underlying file.
func (s *FileStorage) Close() error {
	return s.file.Close()
}
