// Package faulttrace observes the fault handler through its hooks. It can
// log events, record them into a database, or count them.
package faulttrace

import (
	"log"

	"github.com/sarchlab/demandpaging/kernel"
	"github.com/sarchlab/demandpaging/sim"
)

// LogHook prints one line per fault handler event.
type LogHook struct {
	sim.LogHookBase
}

// NewLogHook creates a LogHook that writes to logger.
func NewLogHook(logger *log.Logger) *LogHook {
	return &LogHook{LogHookBase: sim.NewLogHookBase(logger)}
}

// Func writes the event to the log.
func (h *LogHook) Func(ctx sim.HookCtx) {
	p, ok := ctx.Item.(*kernel.Proc)
	if !ok {
		return
	}

	switch d := ctx.Detail.(type) {
	case kernel.PageFaultDetail:
		h.Printf("[pagefault] pid %d (%s) va 0x%x", p.PID, p.Name, d.Addr)
	case kernel.SwapDetail:
		h.logSwap(ctx.Pos, d)
	case kernel.SegmentDetail:
		h.Printf("[loadseg] va 0x%x off 0x%x size %d", d.Addr, d.Offset, d.Size)
	case kernel.CowDetail:
		if d.Err != nil {
			h.Printf("[cow] pid %d va 0x%x: %v", p.PID, d.Addr, d.Err)
			return
		}

		h.Printf("[cow] pid %d va 0x%x", p.PID, d.Addr)
	case kernel.UnresolvedDetail:
		h.Printf("[unresolved] pid %d va 0x%x: %v", p.PID, d.Addr, d.Err)
	}
}

func (h *LogHook) logSwap(pos *sim.HookPos, d kernel.SwapDetail) {
	switch pos {
	case kernel.HookPosEvictPage:
		h.Printf("[evict] va 0x%x -> block %d", d.Addr, d.Block)
	case kernel.HookPosRetrievePage:
		h.Printf("[retrieve] block %d -> va 0x%x", d.Block, d.Addr)
	}
}
