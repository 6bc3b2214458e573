package kernel

import (
	"errors"
	"fmt"

	"github.com/sarchlab/demandpaging/mem/vm"
	"github.com/sarchlab/demandpaging/sim"
)

// ErrSegmentationFault is returned when an access still misses after the
// fault handler has run.
var ErrSegmentationFault = errors.New("segmentation fault")

// MaxTrapsPerAccess bounds how many times one access may trap.
const MaxTrapsPerAccess = 3

// A Hart runs the user accesses of processes. Every access is translated
// through the process page table, and a miss traps into the fault handler
// before the access is retried.
//
// The hart advances the clock by one tick every AccessesPerTick bytes
// accessed, standing in for the timer interrupt.
type Hart struct {
	kernel *Kernel
	clock  *sim.Clock

	AccessesPerTick uint64
	accesses        uint64
}

// NewHart creates a hart that drives clock. clock may be nil, in which case
// time does not pass.
func NewHart(k *Kernel, clock *sim.Clock) *Hart {
	return &Hart{
		kernel:          k,
		clock:           clock,
		AccessesPerTick: 4096,
	}
}

// Load reads one byte.
func (h *Hart) Load(p *Proc, vAddr uint64) (byte, error) {
	var b [1]byte
	err := h.LoadBytes(p, vAddr, b[:])

	return b[0], err
}

// Fetch reads one instruction byte.
func (h *Hart) Fetch(p *Proc, vAddr uint64) (byte, error) {
	var b [1]byte
	err := h.transfer(p, vAddr, b[:], vm.AccessExec)

	return b[0], err
}

// Store writes one byte.
func (h *Hart) Store(p *Proc, vAddr uint64, v byte) error {
	return h.StoreBytes(p, vAddr, []byte{v})
}

// LoadBytes reads len(dst) bytes starting at vAddr.
func (h *Hart) LoadBytes(p *Proc, vAddr uint64, dst []byte) error {
	return h.transfer(p, vAddr, dst, vm.AccessRead)
}

// StoreBytes writes src starting at vAddr.
func (h *Hart) StoreBytes(p *Proc, vAddr uint64, src []byte) error {
	return h.transfer(p, vAddr, src, vm.AccessWrite)
}

func (h *Hart) transfer(p *Proc, vAddr uint64, buf []byte, access vm.Access) error {
	mem := h.kernel.handler.physMem

	for done := uint64(0); done < uint64(len(buf)); {
		a := vAddr + done
		n := min(uint64(len(buf))-done, vm.PageRoundDown(a)+vm.PageSize-a)

		pAddr, err := h.translate(p, a, access)
		if err != nil {
			return err
		}

		chunk := buf[done : done+n]
		if access == vm.AccessWrite {
			mem.Write(pAddr, chunk)
		} else {
			mem.Read(pAddr, chunk)
		}

		h.tick(n)
		done += n
	}

	return nil
}

func (h *Hart) translate(p *Proc, vAddr uint64, access vm.Access) (uint64, error) {
	for traps := 0; ; traps++ {
		pAddr, ok := p.PageTable.Translate(vAddr, access)
		if ok {
			return pAddr, nil
		}

		if traps == MaxTrapsPerAccess {
			return 0, fmt.Errorf("pid %d: %s at 0x%x: %w",
				p.PID, CauseFor(access), vAddr, ErrSegmentationFault)
		}

		h.kernel.handler.HandlePageFault(p, Trap{Addr: vAddr, Cause: CauseFor(access)})
	}
}

func (h *Hart) tick(n uint64) {
	if h.clock == nil || h.AccessesPerTick == 0 {
		return
	}

	before := h.accesses / h.AccessesPerTick
	h.accesses += n
	after := h.accesses / h.AccessesPerTick

	if after > before {
		h.clock.Advance(sim.Tick(after - before))
	}
}
