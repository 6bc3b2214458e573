package cmd

import (
	"fmt"

	"github.com/sarchlab/demandpaging/workload"
	"github.com/spf13/cobra"
)

var (
	imageConfig machineConfig
	imageDir    string
	imageName   string
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Load an executable page by page and check its contents.",
	Long: "`image` reads every page of every loadable segment of an " +
		"executable through page faults and compares it with the file. " +
		"Without --dir, a built-in demo executable is used.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fs, mem := imagesFrom(imageDir)
		if mem != nil {
			mem.Add(imageName, demoImage())
		}

		m, err := imageConfig.build(fs)
		if err != nil {
			return err
		}

		p, err := m.kernel.Spawn(imageName)
		if err != nil {
			return err
		}

		pages, err := workload.ImageTouch{Images: fs}.Run(m.hart, p)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "image %s matches: %d pages, heap starts at 0x%x\n",
			imageName, pages, p.HeapBase)
		m.printCounts(out)

		m.kernel.Exit(p)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)

	imageCmd.Flags().StringVar(&imageDir, "dir", "",
		"Directory that holds the executables.")
	imageCmd.Flags().StringVar(&imageName, "name", "demo",
		"Name of the executable.")
	imageConfig.addFlags(imageCmd)
}
