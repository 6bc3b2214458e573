package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sarchlab/demandpaging/mem/vm"
)

// Sizes of the on-disk ELF64 structures.
const (
	HeaderSize     = 64
	ProgHeaderSize = 56
)

// Validation failures. Any of them makes the image untrusted.
var (
	ErrShortRead          = errors.New("short read")
	ErrBadMagic           = errors.New("bad ELF magic")
	ErrMemSmallerThanFile = errors.New("segment memsz smaller than filesz")
	ErrAddressOverflow    = errors.New("segment vaddr+memsz overflows")
	ErrUnalignedSegment   = errors.New("segment vaddr not page aligned")
	ErrNoSegment          = errors.New("no loadable segment covers the address")
)

// ReadHeader decodes the ELF64 file header of an image.
func ReadHeader(ip Inode) (elf.Header64, error) {
	var hdr elf.Header64

	if err := readStruct(ip, 0, HeaderSize, &hdr); err != nil {
		return hdr, fmt.Errorf("elf header: %w", err)
	}

	if string(hdr.Ident[:len(elf.ELFMAG)]) != elf.ELFMAG {
		return hdr, ErrBadMagic
	}

	if elf.Class(hdr.Ident[elf.EI_CLASS]) != elf.ELFCLASS64 {
		return hdr, fmt.Errorf("class %v: %w", elf.Class(hdr.Ident[elf.EI_CLASS]),
			ErrBadMagic)
	}

	return hdr, nil
}

// ReadProgHeader decodes the program header at file offset off.
func ReadProgHeader(ip Inode, off uint64) (elf.Prog64, error) {
	var ph elf.Prog64

	if err := readStruct(ip, off, ProgHeaderSize, &ph); err != nil {
		return ph, fmt.Errorf("program header at 0x%x: %w", off, err)
	}

	return ph, nil
}

func readStruct(ip Inode, off uint64, size int, v any) error {
	buf := make([]byte, size)

	n, err := ip.ReadAt(buf, off)
	if err != nil {
		return err
	}

	if n != size {
		return ErrShortRead
	}

	return binary.Read(bytes.NewReader(buf), binary.LittleEndian, v)
}

// ValidateProgHeader checks the invariants a loadable segment must hold.
func ValidateProgHeader(ph elf.Prog64) error {
	if ph.Memsz < ph.Filesz {
		return ErrMemSmallerThanFile
	}

	if ph.Vaddr+ph.Memsz < ph.Vaddr {
		return ErrAddressOverflow
	}

	if ph.Vaddr%vm.PageSize != 0 {
		return ErrUnalignedSegment
	}

	return nil
}

// FindSegment walks the program headers of an image in order and returns the
// loadable segment that covers addr. Every loadable segment visited before
// the covering one must be valid.
func FindSegment(ip Inode, addr uint64) (elf.Prog64, error) {
	hdr, err := ReadHeader(ip)
	if err != nil {
		return elf.Prog64{}, err
	}

	off := hdr.Phoff
	for i := 0; i < int(hdr.Phnum); i, off = i+1, off+ProgHeaderSize {
		ph, err := ReadProgHeader(ip, off)
		if err != nil {
			return elf.Prog64{}, err
		}

		if elf.ProgType(ph.Type) != elf.PT_LOAD {
			continue
		}

		if err := ValidateProgHeader(ph); err != nil {
			return elf.Prog64{}, fmt.Errorf("segment %d: %w", i, err)
		}

		if ph.Vaddr <= addr && addr < ph.Vaddr+ph.Memsz {
			return ph, nil
		}
	}

	return elf.Prog64{}, fmt.Errorf("0x%x: %w", addr, ErrNoSegment)
}

// LoadSegments returns all the loadable segments of an image, validated.
func LoadSegments(ip Inode) ([]elf.Prog64, error) {
	hdr, err := ReadHeader(ip)
	if err != nil {
		return nil, err
	}

	var segments []elf.Prog64

	off := hdr.Phoff
	for i := 0; i < int(hdr.Phnum); i, off = i+1, off+ProgHeaderSize {
		ph, err := ReadProgHeader(ip, off)
		if err != nil {
			return nil, err
		}

		if elf.ProgType(ph.Type) != elf.PT_LOAD {
			continue
		}

		if err := ValidateProgHeader(ph); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}

		segments = append(segments, ph)
	}

	return segments, nil
}

// ImageEnd returns the first page boundary above every loadable segment.
func ImageEnd(ip Inode) (uint64, error) {
	segments, err := LoadSegments(ip)
	if err != nil {
		return 0, err
	}

	end := uint64(0)
	for _, ph := range segments {
		end = max(end, vm.PageRoundUp(ph.Vaddr+ph.Memsz))
	}

	return end, nil
}

// PermFromFlags converts segment flags into user page permissions. Loaded
// pages are always readable by the user.
func PermFromFlags(flags uint32) vm.Perm {
	perm := vm.PermR | vm.PermU

	if elf.ProgFlag(flags)&elf.PF_X != 0 {
		perm |= vm.PermX
	}

	if elf.ProgFlag(flags)&elf.PF_W != 0 {
		perm |= vm.PermW
	}

	return perm
}
