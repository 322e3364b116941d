// Package cli implements the assistant command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Disaster restoration chat assistant",
	Long:  "Serves the restoration chat assistant over HTTP, or runs single messages through the pipeline from the shell.",
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
