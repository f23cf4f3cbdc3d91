package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/ruletree/internal/codec"
)

type convertOptions struct {
	from   string
	to     string
	output string
}

// NewConvertCommand creates the convert command, which re-encodes a
// condition tree between JSON, XML and YAML.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:          "convert <file>",
		Short:        "Convert a condition tree between json, xml and yaml",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "input format (default: from the file extension)")
	cmd.Flags().StringVar(&opts.to, "to", "json", "output format (json, xml, yaml)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")

	return cmd
}

func runConvert(cmd *cobra.Command, path string, opts *convertOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	from := formatOf(path, data)
	if opts.from != "" {
		if from, err = codec.ParseFormat(opts.from); err != nil {
			return err
		}
	}
	to, err := codec.ParseFormat(opts.to)
	if err != nil {
		return err
	}

	out, err := codec.New(nil).Convert(data, from, to)
	if err != nil {
		return err
	}
	if to == codec.FormatJSON {
		out = append(out, '\n')
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, out, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.output, err)
		}
		return nil
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
