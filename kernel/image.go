package kernel

import (
	"fmt"

	"github.com/sarchlab/demandpaging/loader"
	"github.com/sarchlab/demandpaging/mem/vm"
)

// handleProgramImageFault maps the faulting page from the executable of p.
// The program headers are read again on every fault. It returns false when
// the fault is left unresolved, in which case nothing has been mapped.
func (c *Comp) handleProgramImageFault(p *Proc, addr uint64) bool {
	ip, err := c.images.Open(p.Name)
	if err != nil {
		return c.unresolved(p, addr, err)
	}

	ph, err := loader.FindSegment(ip, addr)
	if err != nil {
		return c.unresolved(p, addr, err)
	}

	perm := loader.PermFromFlags(ph.Flags)
	if err := p.PageTable.MapRange(addr, addr+vm.PageSize, perm); err != nil {
		return c.unresolved(p, addr, err)
	}

	segOffset := addr - ph.Vaddr
	fileOffset := ph.Off + segOffset
	size := uint64(0)

	if segOffset < ph.Filesz {
		size = min(vm.PageSize, ph.Filesz-segOffset)

		if err := c.populate(p, ip, addr, fileOffset, size); err != nil {
			p.PageTable.Unmap(addr, 1, true)
			return c.unresolved(p, addr, err)
		}
	}

	c.invokeHook(HookPosLoadSegment, p,
		SegmentDetail{Addr: addr, Offset: fileOffset, Size: size})

	return true
}

func (c *Comp) populate(
	p *Proc,
	ip loader.Inode,
	addr, fileOffset, size uint64,
) error {
	buf := make([]byte, size)

	n, err := ip.ReadAt(buf, fileOffset)
	if err != nil {
		return err
	}

	if uint64(n) != size {
		return fmt.Errorf("segment data at 0x%x: %w", fileOffset,
			loader.ErrShortRead)
	}

	return p.PageTable.CopyOut(addr, buf)
}

func (c *Comp) unresolved(p *Proc, addr uint64, err error) bool {
	c.invokeHook(HookPosFaultUnresolved, p, UnresolvedDetail{Addr: addr, Err: err})
	return false
}
