package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/sarchlab/demandpaging/datarecording"
	"github.com/sarchlab/demandpaging/faulttrace"
	"github.com/sarchlab/demandpaging/kernel"
	"github.com/sarchlab/demandpaging/loader"
	"github.com/sarchlab/demandpaging/mem/disk"
	"github.com/sarchlab/demandpaging/monitoring"
	"github.com/sarchlab/demandpaging/sim"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// machineConfig holds the flags shared by the commands that run workloads.
type machineConfig struct {
	budget          int
	window          uint64
	swapBlocks      uint64
	trackerCapacity int
	frames          int
	swapFile        string
	traceDB         string
	uniqueIDs       bool
	verbose         bool
	monitor         bool
	monitorPort     int
	openBrowser     bool
}

func (c *machineConfig) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&c.budget, "budget", 100,
		"Maximum number of resident heap pages per process.")
	f.Uint64Var(&c.window, "window", 50,
		"Working-set window in ticks.")
	f.Uint64Var(&c.swapBlocks, "swap-blocks", 1024,
		"Size of the swap area in 1024-byte blocks.")
	f.IntVar(&c.trackerCapacity, "tracker-capacity", 1000,
		"Number of heap pages a process can track.")
	f.IntVar(&c.frames, "frames", 2048,
		"Number of physical frames.")
	f.StringVar(&c.swapFile, "swap-file", "",
		"Back the swap area with this file instead of memory.")
	f.StringVar(&c.traceDB, "trace-db", "",
		"Record fault handler events into this SQLite database "+
			"(without the .sqlite3 suffix).")
	f.BoolVar(&c.uniqueIDs, "unique-ids", false,
		"Give trace records globally unique IDs instead of sequence numbers.")
	f.BoolVarP(&c.verbose, "verbose", "v", false,
		"Log every fault handler event.")
	f.BoolVar(&c.monitor, "monitor", false,
		"Serve the kernel state over HTTP while running.")
	f.IntVar(&c.monitorPort, "monitor-port", 0,
		"Port of the monitoring server. 0 picks a free port.")
	f.BoolVar(&c.openBrowser, "open-browser", false,
		"Open the monitoring server in a browser.")
}

// machine is a kernel with one hart and the observers attached to its fault
// handler.
type machine struct {
	kernel  *kernel.Kernel
	hart    *kernel.Hart
	counter *faulttrace.Counter
	monitor *monitoring.Monitor
}

func (c *machineConfig) build(images loader.FS) (*machine, error) {
	clock := sim.NewClock()

	b := kernel.MakeBuilder().
		WithClock(clock).
		WithImages(images).
		WithNumFrames(c.frames).
		WithSwapBlocks(c.swapBlocks).
		WithHeapTrackerCapacity(c.trackerCapacity).
		WithMaxResidentHeapPages(c.budget).
		WithWorkingSetWindow(sim.Tick(c.window))

	if c.swapFile != "" {
		storage, err := disk.OpenFileStorage(c.swapFile, c.swapBlocks)
		if err != nil {
			return nil, err
		}

		atexit.Register(func() { storage.Close() })

		b = b.WithSwapBackend(storage)
	}

	handler := b.Build("FaultHandler")

	m := &machine{
		kernel:  kernel.NewKernel(handler),
		counter: faulttrace.NewCounter(),
	}
	m.hart = kernel.NewHart(m.kernel, clock)

	handler.AcceptHook(m.counter)

	if c.verbose {
		handler.AcceptHook(faulttrace.NewLogHook(log.New(os.Stderr, "", 0)))
	}

	if c.traceDB != "" {
		if c.uniqueIDs {
			sim.SetIDGenerator(sim.XIDGenerator{})
		}

		recorder := datarecording.New(c.traceDB)
		handler.AcceptHook(faulttrace.NewDBTracer(recorder))
	}

	if c.monitor {
		m.monitor = monitoring.NewMonitor().WithPortNumber(c.monitorPort)
		m.monitor.RegisterKernel(m.kernel)
		m.monitor.RegisterCounter(m.counter)

		url := m.monitor.StartServer()
		if c.openBrowser {
			if err := m.monitor.OpenInBrowser(url); err != nil {
				log.Printf("cannot open browser: %v", err)
			}
		}
	}

	return m, nil
}

func (m *machine) printCounts(w io.Writer) {
	for _, c := range m.counter.Counts() {
		fmt.Fprintf(w, "%-16s %d\n", c.Event, c.Count)
	}

	for _, kind := range []kernel.FaultKind{
		kernel.FaultKindCow,
		kernel.FaultKindHeap,
		kernel.FaultKindProgramImage,
	} {
		fmt.Fprintf(w, "%-16s %d\n", kind.String()+" faults",
			m.counter.FaultCount(kind))
	}
}

// imagesFrom returns a DirFS when dir is set and a MemFS otherwise.
func imagesFrom(dir string) (loader.FS, *loader.MemFS) {
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = dir
		}

		return loader.NewDirFS(abs), nil
	}

	fs := loader.NewMemFS()

	return fs, fs
}
