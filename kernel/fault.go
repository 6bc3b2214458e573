package kernel

import (
	"fmt"

	"github.com/sarchlab/demandpaging/mem/vm"
)

// Cause is the trap cause code reported by the hart, using the RISC-V scause
// encoding.
type Cause uint64

// Page-fault causes.
const (
	CauseInstructionPageFault Cause = 12
	CauseLoadPageFault        Cause = 13
	CauseStorePageFault       Cause = 15
)

func (c Cause) String() string {
	switch c {
	case CauseInstructionPageFault:
		return "instruction page fault"
	case CauseLoadPageFault:
		return "load page fault"
	case CauseStorePageFault:
		return "store page fault"
	default:
		return fmt.Sprintf("cause %d", uint64(c))
	}
}

// CauseFor returns the cause a hart reports when an access misses.
func CauseFor(access vm.Access) Cause {
	switch access {
	case vm.AccessWrite:
		return CauseStorePageFault
	case vm.AccessExec:
		return CauseInstructionPageFault
	default:
		return CauseLoadPageFault
	}
}

// A Trap carries what the hart recorded about a fault: the faulting address
// (stval) and the cause (scause).
type Trap struct {
	Addr  uint64
	Cause Cause
}

// FaultKind is the classification of a page fault.
type FaultKind int

// Fault kinds.
const (
	FaultKindCow FaultKind = iota
	FaultKindHeap
	FaultKindProgramImage
)

func (k FaultKind) String() string {
	switch k {
	case FaultKindCow:
		return "cow"
	case FaultKindHeap:
		return "heap"
	case FaultKindProgramImage:
		return "program-image"
	default:
		return fmt.Sprintf("FaultKind(%d)", int(k))
	}
}
