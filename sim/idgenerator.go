package sim

import (
	"log"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator hands out the IDs of trace records and progress bars.
type IDGenerator interface {
	Generate() string
}

// SequentialIDGenerator numbers IDs from 1. Sequential IDs keep the trace of
// a run reproducible.
type SequentialIDGenerator struct {
	last atomic.Uint64
}

// Generate returns the next number.
func (g *SequentialIDGenerator) Generate() string {
	return strconv.FormatUint(g.last.Add(1), 10)
}

// XIDGenerator generates globally unique IDs, so that traces of several runs
// can be merged.
type XIDGenerator struct{}

// Generate returns a new xid.
func (XIDGenerator) Generate() string {
	return xid.New().String()
}

var defaultIDs struct {
	sync.Mutex
	generator IDGenerator
	used      bool
}

// SetIDGenerator selects the generator returned by GetIDGenerator. It must be
// called before the first ID is handed out.
func SetIDGenerator(g IDGenerator) {
	defaultIDs.Lock()
	defer defaultIDs.Unlock()

	if defaultIDs.used {
		log.Panic("cannot change the id generator after using it")
	}

	defaultIDs.generator = g
}

// GetIDGenerator returns the generator of the process, a
// SequentialIDGenerator unless another one is set.
func GetIDGenerator() IDGenerator {
	defaultIDs.Lock()
	defer defaultIDs.Unlock()

	if defaultIDs.generator == nil {
		defaultIDs.generator = &SequentialIDGenerator{}
	}

	defaultIDs.used = true

	return defaultIDs.generator
}

// UniqueName returns prefix followed by an xid, such as a default database
// file name.
func UniqueName(prefix string) string {
	return prefix + xid.New().String()
}
