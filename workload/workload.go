// Package workload drives processes through a hart to exercise the fault
// handler end to end.
package workload

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/sarchlab/demandpaging/kernel"
	"github.com/sarchlab/demandpaging/loader"
	"github.com/sarchlab/demandpaging/mem/vm"
)

// ErrCorrupted is returned when memory reads back something other than what
// the workload expects.
var ErrCorrupted = errors.New("memory corrupted")

// A Progress is told how many pages a workload has finished.
type Progress interface {
	IncrementFinished(amount uint64)
}

// HeapStress grows the heap of a process by Pages pages, writes Value to
// every byte, and then reads every byte back.
type HeapStress struct {
	Pages    int
	Value    byte
	Progress Progress
}

// TotalPages returns how many page visits Run makes.
func (w HeapStress) TotalPages() uint64 {
	return 2 * uint64(w.Pages)
}

// Run runs the workload on p. It returns the start of the region it used.
func (w HeapStress) Run(h *kernel.Hart, p *kernel.Proc) (uint64, error) {
	start, err := p.Sbrk(int64(w.Pages) * int64(vm.PageSize))
	if err != nil {
		return 0, err
	}

	page := bytes.Repeat([]byte{w.Value}, int(vm.PageSize))

	for i := 0; i < w.Pages; i++ {
		addr := start + uint64(i)*vm.PageSize
		if err := h.StoreBytes(p, addr, page); err != nil {
			return start, err
		}

		w.progress()
	}

	buf := make([]byte, vm.PageSize)

	for i := 0; i < w.Pages; i++ {
		addr := start + uint64(i)*vm.PageSize
		if err := h.LoadBytes(p, addr, buf); err != nil {
			return start, err
		}

		if j := w.firstMismatch(buf); j >= 0 {
			return start, fmt.Errorf("0x%x holds %d, want %d: %w",
				addr+uint64(j), buf[j], w.Value, ErrCorrupted)
		}

		w.progress()
	}

	return start, nil
}

func (w HeapStress) firstMismatch(buf []byte) int {
	for i, b := range buf {
		if b != w.Value {
			return i
		}
	}

	return -1
}

func (w HeapStress) progress() {
	if w.Progress != nil {
		w.Progress.IncrementFinished(1)
	}
}

// ImageTouch reads every page of every loadable segment of the executable of
// a process and compares it with the image. Bytes past the file part of a
// segment must read as zero.
type ImageTouch struct {
	Images loader.FS
}

// Run runs the workload on p and returns the number of pages checked.
func (w ImageTouch) Run(h *kernel.Hart, p *kernel.Proc) (int, error) {
	ip, err := w.Images.Open(p.Name)
	if err != nil {
		return 0, err
	}

	segments, err := loader.LoadSegments(ip)
	if err != nil {
		return 0, err
	}

	pages := 0
	got := make([]byte, vm.PageSize)
	want := make([]byte, vm.PageSize)

	for _, ph := range segments {
		for off := uint64(0); off < ph.Memsz; off += vm.PageSize {
			n := min(vm.PageSize, ph.Memsz-off)
			addr := ph.Vaddr + off

			if err := h.LoadBytes(p, addr, got[:n]); err != nil {
				return pages, err
			}

			fileLeft := ph.Filesz - min(off, ph.Filesz)
			if err := expected(ip, ph.Off+off, fileLeft, want[:n]); err != nil {
				return pages, err
			}

			if !bytes.Equal(got[:n], want[:n]) {
				return pages, fmt.Errorf("page 0x%x differs from the image: %w",
					addr, ErrCorrupted)
			}

			pages++
		}
	}

	return pages, nil
}

// expected fills dst with what a segment page must hold: fileLeft bytes of
// the file from off, zeros after that.
func expected(ip loader.Inode, off, fileLeft uint64, dst []byte) error {
	clear(dst)

	n := min(uint64(len(dst)), fileLeft)
	if n == 0 {
		return nil
	}

	read, err := ip.ReadAt(dst[:n], off)
	if err != nil {
		return err
	}

	if uint64(read) != n {
		return loader.ErrShortRead
	}

	return nil
}
