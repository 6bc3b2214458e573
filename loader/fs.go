// Package loader reads executable images: it opens them by name, decodes their
// ELF program headers, and checks the headers before the kernel trusts them.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned when no executable has the requested name.
var ErrNotFound = errors.New("executable not found")

// An Inode gives positional read access to one executable.
type Inode interface {
	// ReadAt reads up to len(dst) bytes at offset off and returns the number
	// of bytes read. Reading past the end returns fewer bytes and no error.
	ReadAt(dst []byte, off uint64) (int, error)

	// Size returns the length of the file in bytes.
	Size() uint64
}

// An FS resolves executable names.
type FS interface {
	Open(name string) (Inode, error)
}

// MemFS is an FS that keeps the executables in memory.
type MemFS struct {
	lock  sync.RWMutex
	files map[string][]byte
}

// NewMemFS creates an empty MemFS.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

// Add stores an executable under name, replacing any previous one.
func (fs *MemFS) Add(name string, image []byte) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.files[name] = image
}

// Open returns the inode of an executable.
func (fs *MemFS) Open(name string) (Inode, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	image, found := fs.files[name]
	if !found {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	return memInode(image), nil
}

type memInode []byte

func (ip memInode) ReadAt(dst []byte, off uint64) (int, error) {
	if off >= uint64(len(ip)) {
		return 0, nil
	}

	return copy(dst, ip[off:]), nil
}

func (ip memInode) Size() uint64 {
	return uint64(len(ip))
}

// DirFS is an FS backed by a host directory.
type DirFS struct {
	root string
}

// NewDirFS creates a DirFS rooted at dir.
func NewDirFS(dir string) *DirFS {
	return &DirFS{root: dir}
}

// Open stats the executable. Every ReadAt opens the host file again.
func (fs *DirFS) Open(name string) (Inode, error) {
	path := filepath.Join(fs.root, filepath.Base(name))

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	if err != nil {
		return nil, err
	}

	return &fileInode{path: path, size: uint64(info.Size())}, nil
}

type fileInode struct {
	path string
	size uint64
}

func (ip *fileInode) ReadAt(dst []byte, off uint64) (int, error) {
	f, err := os.Open(ip.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := f.ReadAt(dst, int64(off))
	if errors.Is(err, io.EOF) {
		err = nil
	}

	return n, err
}

func (ip *fileInode) Size() uint64 {
	return ip.size
}
