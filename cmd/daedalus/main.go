// Command daedalus applies rule-based transformations to XML documents,
// either directly from the command line or as a NATS JetStream worker.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:           "daedalus",
		Short:         "Rule-based XML transformation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newTransformCmd(&verbose))
	cmd.AddCommand(newServeCmd(&verbose))
	return cmd
}

// newLogger builds the process logger. Verbose mode switches to the
// development encoder with debug level enabled.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	config := zap.NewProductionConfig()
	return config.Build()
}
