package faulttrace

import (
	"github.com/sarchlab/demandpaging/datarecording"
	"github.com/sarchlab/demandpaging/kernel"
	"github.com/sarchlab/demandpaging/sim"
)

// Table names used by the DBTracer.
const (
	TablePageFaults   = "page_faults"
	TableSwapEvents   = "swap_events"
	TableSegmentLoads = "segment_loads"
	TableCowFaults    = "cow_faults"
	TableUnresolved   = "unresolved_faults"
)

type pageFaultEntry struct {
	ID    string
	Time  uint64
	PID   uint32
	Proc  string
	Addr  uint64
	Cause uint64
	Kind  string
}

type swapEntry struct {
	ID    string
	Time  uint64
	PID   uint32
	What  string
	Addr  uint64
	Block uint64
}

type segmentLoadEntry struct {
	ID     string
	Time   uint64
	PID    uint32
	Addr   uint64
	Offset uint64
	Size   uint64
}

type faultErrorEntry struct {
	ID    string
	Time  uint64
	PID   uint32
	Addr  uint64
	Error string
}

// DBTracer records the fault handler events into a database.
type DBTracer struct {
	recorder    datarecording.DataRecorder
	idGenerator sim.IDGenerator
}

// NewDBTracer creates a DBTracer and the tables it writes to.
func NewDBTracer(recorder datarecording.DataRecorder) *DBTracer {
	t := &DBTracer{
		recorder:    recorder,
		idGenerator: sim.GetIDGenerator(),
	}

	recorder.CreateTable(TablePageFaults, pageFaultEntry{})
	recorder.CreateTable(TableSwapEvents, swapEntry{})
	recorder.CreateTable(TableSegmentLoads, segmentLoadEntry{})
	recorder.CreateTable(TableCowFaults, faultErrorEntry{})
	recorder.CreateTable(TableUnresolved, faultErrorEntry{})

	return t
}

// Func records the event.
func (t *DBTracer) Func(ctx sim.HookCtx) {
	p, ok := ctx.Item.(*kernel.Proc)
	if !ok {
		return
	}

	id := t.idGenerator.Generate()
	now := uint64(ctx.Now)
	pid := uint32(p.PID)

	switch d := ctx.Detail.(type) {
	case kernel.PageFaultDetail:
		t.recorder.InsertData(TablePageFaults, pageFaultEntry{
			ID:    id,
			Time:  now,
			PID:   pid,
			Proc:  p.Name,
			Addr:  d.Addr,
			Cause: uint64(d.Cause),
			Kind:  d.Kind.String(),
		})
	case kernel.SwapDetail:
		t.recorder.InsertData(TableSwapEvents, swapEntry{
			ID:    id,
			Time:  now,
			PID:   pid,
			What:  ctx.Pos.Name,
			Addr:  d.Addr,
			Block: d.Block,
		})
	case kernel.SegmentDetail:
		t.recorder.InsertData(TableSegmentLoads, segmentLoadEntry{
			ID:     id,
			Time:   now,
			PID:    pid,
			Addr:   d.Addr,
			Offset: d.Offset,
			Size:   d.Size,
		})
	case kernel.CowDetail:
		t.recorder.InsertData(TableCowFaults, faultErrorEntry{
			ID:    id,
			Time:  now,
			PID:   pid,
			Addr:  d.Addr,
			Error: errString(d.Err),
		})
	case kernel.UnresolvedDetail:
		t.recorder.InsertData(TableUnresolved, faultErrorEntry{
			ID:    id,
			Time:  now,
			PID:   pid,
			Addr:  d.Addr,
			Error: errString(d.Err),
		})
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
