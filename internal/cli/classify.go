package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tax-intake/internal/common/logger"
	"tax-intake/internal/common/observability"
	"tax-intake/internal/questionnaire"
	classifytier "tax-intake/internal/workers/questionnaire/classify-tier"
)

type classifyOptions struct {
	asJSON   bool
	currency string
}

// NewClassifyCommand creates the classify subcommand
func NewClassifyCommand() *cobra.Command {
	opts := &classifyOptions{}

	cmd := &cobra.Command{
		Use:   "classify <answers-file>...",
		Short: "Classify one or more answer files into a pricing tier",
		Long: `Classify runs the tier classifier over each answers file and prints the
tier, its code and price, and whether the questionnaire is complete.

Files ending in .yaml or .yml are read as YAML, everything else as JSON.

Exit code: 0 if every file classified, 1 otherwise`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return classifyFiles(args, opts, cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the worker output as JSON")
	cmd.Flags().StringVar(&opts.currency, "currency", "CHF", "currency shown next to prices")

	return cmd
}

func classifyFiles(paths []string, opts *classifyOptions, w io.Writer) error {
	handler := classifytier.NewHandler(classifytier.LoadConfig(), logger.NewNoOpLogger(), observability.NewNoop())
	colorOutput := isTerminal(w)

	failed := 0
	for _, path := range paths {
		out, err := classifyFile(handler, path)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s: %v\n", path, err)
			continue
		}

		if opts.asJSON {
			body, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\n", body)
			continue
		}
		printClassification(w, path, out, opts.currency, colorOutput)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be classified", failed, len(paths))
	}
	return nil
}

func classifyFile(handler *classifytier.Handler, path string) (*classifytier.Output, error) {
	input, err := loadInput(path)
	if err != nil {
		return nil, err
	}
	return handler.Execute(context.Background(), input)
}

func printClassification(w io.Writer, path string, out *classifytier.Output, currency string, colorOutput bool) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	for _, c := range []*color.Color{cyan, green, yellow} {
		if !colorOutput {
			c.DisableColor()
		}
	}

	cyan.Fprintf(w, "=== %s ===\n", path)
	fmt.Fprintf(w, "  Tier:     %s (code %d)\n", out.Tier, out.TierCode)

	fmt.Fprintf(w, "  Price:    ")
	switch {
	case out.ManualQuote:
		yellow.Fprintf(w, "manual quote\n")
	case out.Price == nil:
		yellow.Fprintf(w, "quoted individually\n")
	default:
		green.Fprintf(w, "%s %d\n", currency, *out.Price)
	}

	fmt.Fprintf(w, "  Complete: ")
	if out.Complete {
		green.Fprintf(w, "yes\n")
	} else {
		yellow.Fprintf(w, "no\n")
	}

	fmt.Fprintf(w, "  Steps:    %s\n", joinSteps(out.Steps))
}

func joinSteps(steps []questionnaire.Step) string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = string(s)
	}
	return strings.Join(names, " > ")
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
