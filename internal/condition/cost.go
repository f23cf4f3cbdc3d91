// internal/condition/cost.go
package condition

import "math"

/*
 * Cost model for condition evaluation.
 *
 * Evaluation has no built-in bound: worst case is every node visited once
 * per item of every enclosing found/subselect. EstimateCost gives hosts a
 * worst-case figure (no short-circuiting assumed) so they can refuse trees
 * before they reach checkout.
 *
 *   leaf        = CostLookup + operator cost
 *   combine     = CostCombine + sum(children)
 *   found       = CostCombine + items * sum(children)
 *   subselect   = CostCombine + items * (sum(children) + CostLookup + CostSum)
 *   invalid     = CostInvalid
 *
 * Item-scoped nodes nested inside item-scoped nodes are evaluated against an
 * item's own item collection, which is normally empty; the estimate still
 * multiplies to stay an upper bound for hosts that nest collections.
 *
 * Arithmetic saturates at math.MaxInt, so a deeply nested tree reports the
 * maximum cost instead of wrapping around.
 */

// Canonical cost constants.
const (
	CostLookup   = 16
	CostEq       = 5
	CostOrdering = 7
	CostCombine  = 1
	CostSum      = 2
	CostInvalid  = 1
)

// EstimateCost returns the worst-case evaluation cost of n for a subject
// with the given number of items.
func EstimateCost(n Node, items int) int {
	if items < 0 {
		items = 0
	}
	switch v := n.(type) {
	case *Leaf:
		return CostLookup + operatorCost(v.Operator)
	case *Combine:
		return addCost(CostCombine, childrenCost(v.Children, items))
	case *Existential:
		return addCost(CostCombine, mulCost(items, childrenCost(v.Children, items)))
	case *Aggregate:
		perItem := addCost(childrenCost(v.Children, items), CostLookup+CostSum)
		return addCost(CostCombine, mulCost(items, perItem))
	default:
		return CostInvalid
	}
}

func childrenCost(children []Node, items int) int {
	total := 0
	for _, c := range children {
		total = addCost(total, EstimateCost(c, items))
	}
	return total
}

// addCost adds two non-negative costs, saturating at math.MaxInt.
func addCost(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// mulCost multiplies two non-negative costs, saturating at math.MaxInt.
func mulCost(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}

func operatorCost(op Operator) int {
	if op.IsOrdering() {
		return CostOrdering
	}
	return CostEq
}
