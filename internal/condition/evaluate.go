// internal/condition/evaluate.go
package condition

import (
	"errors"

	"github.com/solatis/ruletree/internal/types"
)

/*
 * Condition tree evaluation.
 *
 * One exhaustive switch over the Node variants, depth-first, with
 * short-circuiting in the shared evaluateCombine helper:
 *   - ALL stops at the first false child (empty ALL is true)
 *   - ANY stops at the first true child (empty ANY is false)
 *
 * Combine negates when Value=false. Existential and Aggregate reuse
 * evaluateCombine per item with negation fixed off; FOUND/NOT FOUND is
 * expressed by comparing "some item matched" with Found.
 *
 * Evaluation is total: unknown operators, empty subselect filters and invalid
 * nodes evaluate to false and are reported as configuration diagnostics.
 * Nothing here panics or returns an error, and nothing writes to the tree.
 */

// Evaluator validates subjects against condition trees.
// The zero value discards diagnostics.
type Evaluator struct {
	Reporter Reporter
}

// NewEvaluator returns an Evaluator reporting to r (Discard when nil).
func NewEvaluator(r Reporter) *Evaluator {
	return &Evaluator{Reporter: r}
}

// Validate reports whether subject satisfies the tree rooted at n.
// A nil root is an empty tree and matches nothing. A nil subject has no
// attributes and no items.
func (e *Evaluator) Validate(n Node, subject Subject) bool {
	if n == nil {
		return false
	}
	return e.eval(n, subject)
}

// Validate evaluates n against subject, discarding diagnostics.
func Validate(n Node, subject Subject) bool {
	return (&Evaluator{}).Validate(n, subject)
}

func (e *Evaluator) eval(n Node, subject Subject) bool {
	switch v := n.(type) {
	case *Leaf:
		return e.evalLeaf(v, subject)
	case *Combine:
		return e.evaluateCombine(v.Aggregator, v.Children, subject) == v.Value
	case *Existential:
		return e.evalExistential(v, subject)
	case *Aggregate:
		return e.evalAggregate(v, subject)
	case *Invalid:
		e.configError(v.Head, v.Err)
		return false
	default:
		return false
	}
}

// evaluateCombine is the ALL/ANY core shared by every combinator.
func (e *Evaluator) evaluateCombine(agg Aggregator, children []Node, subject Subject) bool {
	if agg == Any {
		for _, child := range children {
			if e.eval(child, subject) {
				return true
			}
		}
		return false
	}
	for _, child := range children {
		if !e.eval(child, subject) {
			return false
		}
	}
	return true
}

// evalLeaf resolves the attribute and applies the operator.
func (e *Evaluator) evalLeaf(n *Leaf, subject Subject) bool {
	if n.Attribute == "" {
		e.configError(n.Head, types.ErrMissingAttribute)
		return false
	}
	actual, _ := attributeOf(subject, n.Attribute)

	matched, err := Compare(n.Operator, actual, n.Value)
	if err != nil {
		if errors.Is(err, types.ErrInvalidOperator) {
			e.configError(n.Head, err)
			return false
		}
		e.coercionWarning(n.Head, n.Attribute, actual, err)
	}
	return matched
}

// evalExistential decides FOUND/NOT FOUND. One matching item settles both
// cases, so the scan stops there.
func (e *Evaluator) evalExistential(n *Existential, subject Subject) bool {
	matched := false
	for _, item := range itemsOf(subject) {
		if e.evaluateCombine(n.Aggregator, n.Children, item) {
			matched = true
			break
		}
	}
	return matched == n.Found
}

// evalAggregate filters items first, then sums, then compares.
func (e *Evaluator) evalAggregate(n *Aggregate, subject Subject) bool {
	if len(n.Children) == 0 {
		e.configError(n.Head, types.ErrEmptyFilter)
		return false
	}
	if n.Attribute == "" {
		e.configError(n.Head, types.ErrMissingAttribute)
		return false
	}
	if !n.Operator.IsOrdering() && n.Operator != OpEq && n.Operator != OpNeq {
		e.configError(n.Head, types.ErrInvalidOperator)
		return false
	}

	var sum float64
	for _, item := range itemsOf(subject) {
		if !e.evaluateCombine(n.Aggregator, n.Children, item) {
			continue
		}
		raw, _ := attributeOf(item, n.Attribute)
		v, err := CoerceNumeric(raw)
		if err != nil {
			e.coercionWarning(n.Head, n.Attribute, raw, err)
		}
		sum += v
	}

	threshold, err := CoerceNumeric(n.Value)
	if err != nil {
		e.coercionWarning(n.Head, n.Attribute, n.Value, err)
	}
	return compareSum(n.Operator, sum, threshold)
}

// compareSum applies numeric semantics for every operator, including ==/!=.
func compareSum(op Operator, sum, threshold float64) bool {
	switch op {
	case OpEq:
		return sum == threshold
	case OpNeq:
		return sum != threshold
	default:
		return compareOrdered(op, sum, threshold)
	}
}

func (e *Evaluator) configError(h Header, err error) {
	e.report(Diagnostic{
		Severity: SeverityConfiguration,
		NodeID:   h.ID,
		Err:      &ConfigError{NodeID: h.ID, Type: h.Type, Err: err},
	})
}

func (e *Evaluator) coercionWarning(h Header, attribute string, value any, err error) {
	e.report(Diagnostic{
		Severity:  SeverityCoercion,
		NodeID:    h.ID,
		Attribute: attribute,
		Value:     value,
		Err:       err,
	})
}

func (e *Evaluator) report(d Diagnostic) {
	if e.Reporter != nil {
		e.Reporter.Report(d)
	}
}
