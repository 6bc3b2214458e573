package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"log"

	"github.com/sarchlab/demandpaging/mem/vm"
)

// A Segment describes one program header of an image being built.
type Segment struct {
	Type    elf.ProgType
	Flags   elf.ProgFlag
	VAddr   uint64
	Data    []byte
	MemSize uint64
}

// ImageBuilder assembles a minimal ELF64 executable. Segment contents are
// placed at page-aligned file offsets after the headers.
type ImageBuilder struct {
	entry    uint64
	segments []Segment
}

// MakeImageBuilder creates an ImageBuilder.
func MakeImageBuilder() ImageBuilder {
	return ImageBuilder{}
}

// WithEntry sets the entry point.
func (b ImageBuilder) WithEntry(entry uint64) ImageBuilder {
	b.entry = entry
	return b
}

// WithSegment appends a segment. A zero MemSize means the segment has no
// zero-filled tail. A zero Type means PT_LOAD.
func (b ImageBuilder) WithSegment(s Segment) ImageBuilder {
	if s.Type == elf.PT_NULL {
		s.Type = elf.PT_LOAD
	}

	if s.MemSize == 0 {
		s.MemSize = uint64(len(s.Data))
	}

	b.segments = append(append([]Segment(nil), b.segments...), s)

	return b
}

// Build returns the bytes of the image.
func (b ImageBuilder) Build() []byte {
	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     b.entry,
		Phoff:     HeaderSize,
		Ehsize:    HeaderSize,
		Phentsize: ProgHeaderSize,
		Phnum:     uint16(len(b.segments)),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	offsets := make([]uint64, len(b.segments))
	next := vm.PageRoundUp(HeaderSize + ProgHeaderSize*uint64(len(b.segments)))

	for i, s := range b.segments {
		offsets[i] = next
		next = vm.PageRoundUp(next + uint64(len(s.Data)))
	}

	var out bytes.Buffer

	mustWrite(&out, hdr)

	for i, s := range b.segments {
		mustWrite(&out, elf.Prog64{
			Type:   uint32(s.Type),
			Flags:  uint32(s.Flags),
			Off:    offsets[i],
			Vaddr:  s.VAddr,
			Paddr:  s.VAddr,
			Filesz: uint64(len(s.Data)),
			Memsz:  s.MemSize,
			Align:  vm.PageSize,
		})
	}

	image := make([]byte, next)
	copy(image, out.Bytes())

	for i, s := range b.segments {
		copy(image[offsets[i]:], s.Data)
	}

	return image
}

func mustWrite(out *bytes.Buffer, v any) {
	if err := binary.Write(out, binary.LittleEndian, v); err != nil {
		log.Panic(err)
	}
}
