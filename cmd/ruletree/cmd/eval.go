package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/ruletree/internal/codec"
	"github.com/solatis/ruletree/internal/condition"
	"github.com/solatis/ruletree/internal/core/service"
	"github.com/solatis/ruletree/internal/rule"
	"github.com/solatis/ruletree/internal/types"
)

type evalOptions struct {
	rule    string
	subject string
	derived string
	kind    string
}

// evalOutput is the JSON document printed by eval.
type evalOutput struct {
	Kind        types.RuleKind       `json:"kind"`
	Policy      string               `json:"policy"`
	Matched     bool                 `json:"matched"`
	Diagnostics []service.Diagnostic `json:"diagnostics"`
}

// NewEvalCommand creates the eval command, which evaluates one rule file
// against one subject file without a database.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &evalOptions{}

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a condition tree against a subject",
		Long: `Evaluate a condition tree file (JSON, XML or YAML) against a subject file
(JSON or YAML) and print the result with any diagnostics as JSON.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.rule, "rule", "", "condition tree file")
	cmd.Flags().StringVar(&opts.subject, "subject", "", "subject file")
	cmd.Flags().StringVar(&opts.derived, "derived", "", "YAML file of derived attribute expressions")
	cmd.Flags().StringVar(&opts.kind, "kind", string(types.KindDiscount), "rule kind (decides the result of an undecodable tree)")
	_ = cmd.MarkFlagRequired("rule")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func runEval(cmd *cobra.Command, opts *evalOptions) error {
	kind, err := types.ParseRuleKind(opts.kind)
	if err != nil {
		return err
	}

	c := codec.New(nil)
	text, err := readTree(c, opts.rule)
	if err != nil {
		return err
	}
	subj, err := readSubject(opts.subject)
	if err != nil {
		return err
	}
	derived, err := loadDerived(opts.derived)
	if err != nil {
		return err
	}

	r := rule.New(types.RuleRecord{Kind: kind, Conditions: text}, c, nil)
	collector := &condition.Collector{}

	matched := r.ValidateWith(derived.Wrap(subj), collector)

	out := evalOutput{
		Kind:        kind,
		Policy:      r.Policy.String(),
		Matched:     matched,
		Diagnostics: []service.Diagnostic{},
	}
	for _, d := range collector.Diagnostics() {
		out.Diagnostics = append(out.Diagnostics, service.ToDiagnostic(d))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
