package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tax-intake/internal/questionnaire"
)

// NewStepsCommand creates the steps subcommand
func NewStepsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "steps <answers-file>",
		Short: "Show the step sequence and which gates the answers pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := loadInput(args[0])
			if err != nil {
				return err
			}
			printSteps(cmd.OutOrStdout(), input.Answers, isTerminal(cmd.OutOrStdout()))
			return nil
		},
		SilenceUsage: true,
	}
}

func printSteps(w io.Writer, a questionnaire.Answers, colorOutput bool) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	if !colorOutput {
		green.DisableColor()
		red.DisableColor()
	}

	for _, step := range questionnaire.Steps(a) {
		p := questionnaire.ProgressAt(a, step)
		fmt.Fprintf(w, "%d/%d  %-18s ", p.Current, p.Total, step)
		switch {
		case step == questionnaire.StepResult:
			fmt.Fprintf(w, "-\n")
		case questionnaire.CanAdvance(step, a):
			green.Fprintf(w, "answered\n")
		default:
			red.Fprintf(w, "open\n")
		}
	}
}
