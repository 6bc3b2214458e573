package cmd

import (
	"fmt"

	"github.com/sarchlab/demandpaging/workload"
	"github.com/spf13/cobra"
)

var (
	runConfig machineConfig
	runPages  int
	runValue  uint8
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the heap stress workload.",
	Long: "`run` grows the heap of a process, writes a value to every byte, " +
		"and reads every byte back. With more pages than the budget, heap " +
		"pages are swapped out and back in.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fs, mem := imagesFrom("")
		mem.Add("heapstress", demoImage())

		m, err := runConfig.build(fs)
		if err != nil {
			return err
		}

		p, err := m.kernel.Spawn("heapstress")
		if err != nil {
			return err
		}

		w := workload.HeapStress{Pages: runPages, Value: runValue}

		if m.monitor != nil {
			bar := m.monitor.CreateProgressBar("heapstress", w.TotalPages())
			defer m.monitor.CompleteProgressBar(bar)

			w.Progress = bar
		}

		start, err := w.Run(m.hart, p)
		if err != nil {
			return err
		}

		stats := p.Stats()
		swap := m.kernel.Handler().SwapAllocator()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "heap stress passed: %d pages at 0x%x, value %d\n",
			runPages, start, runValue)
		fmt.Fprintf(out, "resident heap pages %d, swap slots in use %d\n",
			stats.ResidentHeapPages, swap.NumSlots()-swap.NumFreeSlots())
		m.printCounts(out)

		m.kernel.Exit(p)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runPages, "pages", 110,
		"Number of heap pages to touch.")
	runCmd.Flags().Uint8Var(&runValue, "value", 5,
		"Value written to every byte.")
	runConfig.addFlags(runCmd)
}
