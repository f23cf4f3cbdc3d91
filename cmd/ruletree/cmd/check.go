package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/ruletree/internal/codec"
	"github.com/solatis/ruletree/internal/condition"
	"github.com/solatis/ruletree/internal/types"
)

type checkOptions struct {
	items   int
	maxCost int
}

var errCheckFailed = errors.New("condition tree check failed")

// NewCheckCommand creates the check command, which reports configuration
// errors, size and estimated cost of a condition tree.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:          "check <file>",
		Short:        "Check a condition tree for configuration errors and cost",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.items, "items", types.DefaultCostItems, "item count assumed for the cost estimate")
	cmd.Flags().IntVar(&opts.maxCost, "max-cost", types.DefaultMaxCost, "fail when the estimate exceeds this cost (0 disables)")

	return cmd
}

func runCheck(cmd *cobra.Command, path string, opts *checkOptions) error {
	if opts.items < 0 {
		return fmt.Errorf("--items must be non-negative, got %d", opts.items)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	root, err := codec.New(nil).DecodeFormat(data, formatOf(path, data))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	cost := condition.EstimateCost(root, opts.items)
	fmt.Fprintf(out, "nodes: %d\n", condition.Count(root))
	fmt.Fprintf(out, "depth: %d\n", condition.Depth(root))
	fmt.Fprintf(out, "cost:  %d (items=%d)\n", cost, opts.items)

	failed := false
	if err := condition.Check(root); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		failed = true
	}
	if opts.maxCost > 0 && cost > opts.maxCost {
		fmt.Fprintf(out, "error: %v: %d > %d\n", types.ErrTreeTooCostly, cost, opts.maxCost)
		failed = true
	}
	if failed {
		return errCheckFailed
	}
	fmt.Fprintln(out, "ok")
	return nil
}
