package kernel

import "github.com/sarchlab/demandpaging/sim"

// Hook positions of the fault handler. The hook item is always the faulting
// *Proc.
var (
	// HookPosPageFault triggers when a fault enters the handler. The detail
	// is a PageFaultDetail.
	HookPosPageFault = &sim.HookPos{Name: "PageFault"}

	// HookPosEvictPage triggers before a victim page is written to swap.
	// The detail is a SwapDetail.
	HookPosEvictPage = &sim.HookPos{Name: "EvictPage"}

	// HookPosRetrievePage triggers before a swapped page is read back. The
	// detail is a SwapDetail.
	HookPosRetrievePage = &sim.HookPos{Name: "RetrievePage"}

	// HookPosLoadSegment triggers after a page of the executable is loaded.
	// The detail is a SegmentDetail.
	HookPosLoadSegment = &sim.HookPos{Name: "LoadSegment"}

	// HookPosCowFault triggers after the copy-on-write resolver returns. The
	// detail is a CowDetail.
	HookPosCowFault = &sim.HookPos{Name: "CowFault"}

	// HookPosFaultUnresolved triggers when the handler gives up on a fault
	// without mapping anything. The detail is an UnresolvedDetail.
	HookPosFaultUnresolved = &sim.HookPos{Name: "FaultUnresolved"}
)

// PageFaultDetail describes a fault entering the handler.
type PageFaultDetail struct {
	Addr  uint64
	Cause Cause
	Kind  FaultKind
}

// SwapDetail describes a page moving between memory and a swap slot.
type SwapDetail struct {
	Addr  uint64
	Block uint64
}

// SegmentDetail describes a page loaded from the executable.
type SegmentDetail struct {
	Addr   uint64
	Offset uint64
	Size   uint64
}

// CowDetail describes the outcome of a copy-on-write fault.
type CowDetail struct {
	Addr uint64
	Err  error
}

// UnresolvedDetail describes why a fault was left unresolved.
type UnresolvedDetail struct {
	Addr uint64
	Err  error
}
