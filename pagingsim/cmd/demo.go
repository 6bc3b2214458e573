package cmd

import (
	"debug/elf"

	"github.com/sarchlab/demandpaging/loader"
	"github.com/sarchlab/demandpaging/mem/vm"
)

// Layout of the demo executable.
const (
	demoTextAddr = 0x1000
	demoDataAddr = 0x4000
	demoTextSize = 2*vm.PageSize + 300
	demoDataSize = 512
	demoDataMem  = 2 * vm.PageSize
)

// demoImage returns an executable with a text segment that spans three pages
// and a data segment whose second page lies entirely in the zero-filled tail.
func demoImage() []byte {
	text := make([]byte, demoTextSize)
	for i := range text {
		text[i] = byte(i*7 + 3)
	}

	data := make([]byte, demoDataSize)
	for i := range data {
		data[i] = byte(0xa0 + i%16)
	}

	return loader.MakeImageBuilder().
		WithEntry(demoTextAddr).
		WithSegment(loader.Segment{
			Flags: elf.PF_R | elf.PF_X,
			VAddr: demoTextAddr,
			Data:  text,
		}).
		WithSegment(loader.Segment{
			Flags:   elf.PF_R | elf.PF_W,
			VAddr:   demoDataAddr,
			Data:    data,
			MemSize: demoDataMem,
		}).
		Build()
}
