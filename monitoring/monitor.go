// Package monitoring serves the state of a running kernel over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sarchlab/demandpaging/faulttrace"
	"github.com/sarchlab/demandpaging/kernel"
	"github.com/sarchlab/demandpaging/mem/vm"
	"github.com/sarchlab/demandpaging/sim"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Monitor turns a kernel into a server that reports its processes, its swap
// area and the fault handler events.
type Monitor struct {
	kernel     *kernel.Kernel
	counter    *faulttrace.Counter
	portNumber int

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterKernel sets the kernel to monitor.
func (m *Monitor) RegisterKernel(k *kernel.Kernel) {
	m.kernel = k
}

// RegisterCounter sets the counter that backs the event report. The counter
// must be hooked to the fault handler by the caller.
func (m *Monitor) RegisterCounter(c *faulttrace.Counter) {
	m.counter = c
}

// CreateProgressBar creates a progress bar that the monitor reports until it
// is completed.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		id:        sim.GetIDGenerator().Generate(),
		name:      name,
		startTime: time.Now(),
		total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar stops reporting the bar.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router of the monitor API.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/procs", m.listProcs)
	r.HandleFunc("/api/proc/{pid}", m.procDetails)
	r.HandleFunc("/api/proc/{pid}/{field}", m.procField)
	r.HandleFunc("/api/swap", m.swapUsage)
	r.HandleFunc("/api/events", m.listEvents)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts serving in the background and returns the URL of the
// server.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring kernel with %s\n", url)

	handler := m.Handler()

	go func() {
		err := http.Serve(listener, handler)
		dieOnErr(err)
	}()

	return url
}

// OpenInBrowser opens the process list of the monitor in the default browser.
func (m *Monitor) OpenInBrowser(url string) error {
	return browser.OpenURL(url + "/api/procs")
}

type procSummary struct {
	PID               vm.PID `json:"pid"`
	Name              string `json:"name"`
	CowEnabled        bool   `json:"cow_enabled"`
	HeapBase          uint64 `json:"heap_base"`
	HeapTop           uint64 `json:"heap_top"`
	ResidentHeapPages int    `json:"resident_heap_pages"`
	SwappedHeapPages  int    `json:"swapped_heap_pages"`
	MappedPages       int    `json:"mapped_pages"`
}

func summarize(s kernel.ProcStats) procSummary {
	swapped := 0

	for _, e := range s.Heap {
		if e.Swapped() {
			swapped++
		}
	}

	return procSummary{
		PID:               s.PID,
		Name:              s.Name,
		CowEnabled:        s.CowEnabled,
		HeapBase:          s.HeapBase,
		HeapTop:           s.HeapTop,
		ResidentHeapPages: s.ResidentHeapPages,
		SwappedHeapPages:  swapped,
		MappedPages:       s.MappedPages,
	}
}

func (m *Monitor) listProcs(w http.ResponseWriter, _ *http.Request) {
	procs := m.kernel.Procs()

	rsp := make([]procSummary, 0, len(procs))
	for _, p := range procs {
		rsp = append(rsp, summarize(p.Stats()))
	}

	writeJSON(w, rsp)
}

func (m *Monitor) procDetails(w http.ResponseWriter, r *http.Request) {
	stats, ok := m.findProcOr404(w, mux.Vars(r)["pid"])
	if !ok {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(stats)
	serializer.SetMaxDepth(2)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) procField(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	stats, ok := m.findProcOr404(w, vars["pid"])
	if !ok {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(stats)
	serializer.SetMaxDepth(1)

	err := serializer.SetEntryPoint(strings.Split(vars["field"], "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) findProcOr404(
	w http.ResponseWriter,
	pidStr string,
) (*kernel.ProcStats, bool) {
	pid, err := strconv.ParseUint(pidStr, 10, 32)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: invalid pid %q", pidStr)

		return nil, false
	}

	p, found := m.kernel.Proc(vm.PID(pid))
	if !found {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Process not found"))
		dieOnErr(err)

		return nil, false
	}

	stats := p.Stats()

	return &stats, true
}

type swapRsp struct {
	NumSlots  int      `json:"num_slots"`
	FreeSlots int      `json:"free_slots"`
	UsedSlots []uint64 `json:"used_slots"`
}

func (m *Monitor) swapUsage(w http.ResponseWriter, _ *http.Request) {
	a := m.kernel.Handler().SwapAllocator()

	writeJSON(w, swapRsp{
		NumSlots:  a.NumSlots(),
		FreeSlots: a.NumFreeSlots(),
		UsedSlots: a.UsedSlots(),
	})
}

func (m *Monitor) listEvents(w http.ResponseWriter, _ *http.Request) {
	if m.counter == nil {
		writeJSON(w, []faulttrace.EventCount{})
		return
	}

	writeJSON(w, m.counter.Counts())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
