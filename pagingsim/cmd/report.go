package cmd

import (
	"fmt"

	"github.com/sarchlab/demandpaging/datarecording"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report [trace.sqlite3]",
	Short: "List the tables of a trace database and their sizes.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		ctx := cmd.Context()

		tables, err := reader.ListTables(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, t := range tables {
			n, err := reader.CountRows(ctx, t)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%-20s %d\n", t, n)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
