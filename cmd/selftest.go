// =============================================================================
// NaPTAN Import - Self-Test Command
// =============================================================================
//
// COMMAND USAGE:
//   naptan-import selftest
//
// Runs the fixed validator cases and prints one line per case. Exits
// non-zero if any case produces the wrong verdict.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"

	"github.com/ginjaninja78/naptan-xml-import/internal/validation"
	"github.com/spf13/cobra"
)

// selftestCmd represents the 'selftest' command.
var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run the validator self-test suite",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSelfTest(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(selftestCmd)
}

func runSelfTest(out io.Writer) error {
	results := validation.SelfTest()

	failed := 0
	for _, r := range results {
		mark := "✓"
		if !r.Passed() {
			mark = "✗"
			failed++
		}
		fmt.Fprintf(out, "  %s %-36s %-8s %q context=%q want=%t got=%t\n",
			mark, r.Name, r.Rule.Name(), r.Value, r.Context, r.Want, r.Got)
	}

	fmt.Fprintf(out, "\n%d passed, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		logger.Error("validator self-test failed", "failed", failed)
		return fmt.Errorf("%d self-test cases failed", failed)
	}
	return nil
}
