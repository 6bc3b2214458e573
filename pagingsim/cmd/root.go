// Package cmd provides the command-line interface of pagingsim.
package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"
)

// envFlags maps flags to the environment variables that provide their
// defaults.
var envFlags = map[string]string{
	"trace-db":     "PAGINGSIM_TRACE_DB",
	"budget":       "PAGINGSIM_BUDGET",
	"window":       "PAGINGSIM_WINDOW",
	"swap-blocks":  "PAGINGSIM_SWAP_BLOCKS",
	"monitor-port": "PAGINGSIM_MONITOR_PORT",
}

var envFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pagingsim",
	Short: "pagingsim runs workloads on a demand-paging kernel.",
	Long: `pagingsim runs workloads on a simulated kernel that loads program ` +
		`pages on demand and keeps each process's resident heap within a ` +
		`budget by swapping pages to disk.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return applyEnv(cmd.Flags(), envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"File that provides PAGINGSIM_* defaults.")
}

// applyEnv loads the env file, if present, and uses the PAGINGSIM_*
// variables for the flags that are not given on the command line.
func applyEnv(flags *pflag.FlagSet, path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	for name, env := range envFlags {
		f := flags.Lookup(name)
		if f == nil || f.Changed {
			continue
		}

		value, found := os.LookupEnv(env)
		if !found {
			continue
		}

		if err := flags.Set(name, value); err != nil {
			return err
		}
	}

	return nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
