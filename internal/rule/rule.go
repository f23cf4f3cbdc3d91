// internal/rule/rule.go
package rule

import (
	"sync"

	"github.com/solatis/ruletree/internal/codec"
	"github.com/solatis/ruletree/internal/condition"
	"github.com/solatis/ruletree/internal/types"
)

/*
 * Rule owner.
 *
 * A Rule holds the persisted text of one condition tree and materializes it
 * on first use. The materialized root is cached until the text changes.
 *
 * Text that cannot be parsed at all is a deserialization error. The engine
 * has no opinion on what that means; the rule's Policy does:
 *   - PolicyNoMatch: the rule does not apply (discounts, segments)
 *   - PolicyMatch:   the rule applies (payment restrictions stay in force)
 *
 * Unknown node types and other configuration problems inside otherwise valid
 * text are not deserialization errors; they evaluate to false at the node.
 */

// Policy decides the result of Validate when the tree cannot be decoded.
type Policy int

const (
	// PolicyNoMatch treats an undecodable tree as not matching.
	PolicyNoMatch Policy = iota
	// PolicyMatch treats an undecodable tree as matching.
	PolicyMatch
)

func (p Policy) String() string {
	if p == PolicyMatch {
		return "match"
	}
	return "no_match"
}

// PolicyFor returns the policy of a consuming module. Restrictions fail
// closed: a broken restriction keeps restricting.
func PolicyFor(kind types.RuleKind) Policy {
	if kind == types.KindPaymentRestriction {
		return PolicyMatch
	}
	return PolicyNoMatch
}

// Rule is a named condition tree with lazy materialization.
// Safe for concurrent use.
type Rule struct {
	ID     types.RuleID
	Name   string
	Kind   types.RuleKind
	Policy Policy

	codec    *codec.Codec
	reporter condition.Reporter

	mu      sync.Mutex
	text    string
	root    condition.Node
	loadErr error
	loaded  bool
}

// New builds a rule from a stored record. c may be nil (default registry);
// reporter may be nil (diagnostics discarded).
func New(rec types.RuleRecord, c *codec.Codec, reporter condition.Reporter) *Rule {
	if c == nil {
		c = codec.New(nil)
	}
	if reporter == nil {
		reporter = condition.Discard
	}
	return &Rule{
		ID:       rec.ID,
		Name:     rec.Name,
		Kind:     rec.Kind,
		Policy:   PolicyFor(rec.Kind),
		codec:    c,
		reporter: reporter,
		text:     rec.Conditions,
	}
}

// Conditions returns the persisted text.
func (r *Rule) Conditions() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text
}

// SetConditions replaces the persisted text and drops the cached root.
func (r *Rule) SetConditions(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = text
	r.invalidateLocked()
}

// SetRoot replaces the tree, re-encoding it as JSON. The tree must not be
// mutated afterwards.
func (r *Rule) SetRoot(root condition.Node) error {
	data, err := r.codec.Encode(root, codec.FormatJSON)
	if err != nil {
		return err
	}
	condition.AssignIDs(root)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = string(data)
	r.root = root
	r.loadErr = nil
	r.loaded = true
	return nil
}

// Invalidate drops the cached root; the next Root call decodes again.
func (r *Rule) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidateLocked()
}

func (r *Rule) invalidateLocked() {
	r.root = nil
	r.loadErr = nil
	r.loaded = false
}

// Root returns the materialized tree, decoding it on first use. A decode
// error is cached with the same lifetime as a root.
func (r *Rule) Root() (condition.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		r.root, r.loadErr = r.codec.Decode([]byte(r.text))
		r.loaded = true
	}
	return r.root, r.loadErr
}

// Validate reports whether subject satisfies the rule.
func (r *Rule) Validate(subject condition.Subject) bool {
	return r.ValidateWith(subject, r.reporter)
}

// ValidateWith evaluates with a caller-supplied reporter, e.g. a
// condition.Collector to return diagnostics with a single result.
func (r *Rule) ValidateWith(subject condition.Subject, reporter condition.Reporter) bool {
	root, err := r.Root()
	if err != nil {
		if reporter != nil {
			reporter.Report(condition.Diagnostic{
				Severity: condition.SeverityDeserialization,
				Err:      err,
			})
		}
		return r.Policy == PolicyMatch
	}
	return condition.NewEvaluator(reporter).Validate(root, subject)
}

// Check reports configuration errors in the materialized tree.
func (r *Rule) Check() error {
	root, err := r.Root()
	if err != nil {
		return err
	}
	return condition.Check(root)
}

// Record returns the persisted form of the rule.
func (r *Rule) Record() types.RuleRecord {
	return types.RuleRecord{
		ID:         r.ID,
		Name:       r.Name,
		Kind:       r.Kind,
		Conditions: r.Conditions(),
	}
}
