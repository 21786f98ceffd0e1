// Package cli is the offline operator tool: it classifies answer fixtures
// exactly the way the intake server and the classify-tier worker do.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxctl",
		Short: "Inspect tax questionnaire answers offline",
		Long: `taxctl loads questionnaire answers from JSON or YAML files and shows
the step sequence, gate status and tier classification they produce.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewClassifyCommand())
	cmd.AddCommand(NewStepsCommand())

	return cmd
}
