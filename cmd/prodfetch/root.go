package main

import (
	"fmt"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootFlags are shared by every subcommand
type rootFlags struct {
	configFile string
	logLevel   string
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "prodfetch",
		Short: "Resumable product image fetcher",
		Long: `prodfetch reads item codes from a CSV file, looks each one up in the
product API (falling back to a secondary endpoint when configured),
downloads the product images to a local directory or Google Drive and
records every result in a CSV checkpoint so an interrupted run resumes
where it stopped.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "config file (default is .prodfetch.yaml or $HOME/.config/prodfetch/config.yaml)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newAuthCmd(flags))
	cmd.AddCommand(newVersionCmd())

	cmd.CompletionOptions.DisableDefaultCmd = true
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "prodfetch %s (commit: %s, built: %s)\nGo Version: %s\nOS/Arch: %s/%s\n",
				version, gitCommit, buildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
