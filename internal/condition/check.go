// internal/condition/check.go
package condition

import (
	"errors"

	"github.com/solatis/ruletree/internal/types"
)

/*
 * Static tree validation.
 *
 * Check walks a tree and collects every configuration error that evaluation
 * would otherwise only surface as a false result plus a diagnostic:
 *   - Invalid nodes (unknown type tags)
 *   - leaves and subselects without an attribute or with an unknown operator
 *   - subselects with an empty filter
 *
 * Evaluation stays total for stored trees regardless of Check; Check is for
 * the save path. Errors are *ConfigError values joined with errors.Join, so callers can use
 * errors.Is against the types sentinels.
 */

// Check returns all configuration errors in the tree, or nil.
func Check(root Node) error {
	if root == nil {
		return nil
	}
	var errs []error
	walk(root, func(n Node) {
		if err := checkNode(n); err != nil {
			h := n.Header()
			errs = append(errs, &ConfigError{NodeID: h.ID, Type: h.Type, Err: err})
		}
	})
	return errors.Join(errs...)
}

func checkNode(n Node) error {
	switch v := n.(type) {
	case *Leaf:
		if v.Attribute == "" {
			return types.ErrMissingAttribute
		}
		if v.Operator == OpUnspecified {
			return types.ErrInvalidOperator
		}
	case *Aggregate:
		if v.Attribute == "" {
			return types.ErrMissingAttribute
		}
		if v.Operator == OpUnspecified {
			return types.ErrInvalidOperator
		}
		if len(v.Children) == 0 {
			return types.ErrEmptyFilter
		}
	case *Invalid:
		if v.Err == nil {
			return types.ErrUnknownNodeType
		}
		return v.Err
	}
	return nil
}

// walk visits n and its descendants depth-first, parents before children.
func walk(n Node, visit func(Node)) {
	visit(n)
	for _, child := range Children(n) {
		walk(child, visit)
	}
}

// Depth returns the number of levels in the tree (a lone leaf is 1).
func Depth(n Node) int {
	if n == nil {
		return 0
	}
	deepest := 0
	for _, child := range Children(n) {
		if d := Depth(child); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Count returns the number of nodes in the tree.
func Count(n Node) int {
	if n == nil {
		return 0
	}
	total := 0
	walk(n, func(Node) { total++ })
	return total
}
