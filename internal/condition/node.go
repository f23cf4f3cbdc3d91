// internal/condition/node.go
package condition

import (
	"fmt"
	"strings"

	"github.com/solatis/ruletree/internal/types"
)

/*
 * Condition tree data model.
 *
 * Node is a closed sum type: only the variants in this file implement the
 * unexported marker method, so every switch over Node in this package is
 * exhaustive. Variants:
 *   - Leaf:        attribute <operator> value
 *   - Combine:     ALL/ANY over children, Value=false negates
 *   - Existential: FOUND / NOT FOUND over the subject's items
 *   - Aggregate:   sum(attribute) over items passing the filter, compared to Value
 *   - Invalid:     placeholder for a subtree that failed to materialize
 *
 * Nodes are plain values after construction. Evaluation only reads them, so a
 * tree can be shared by concurrent evaluations as long as nobody mutates it.
 */

// Kind discriminates node variants.
type Kind int

const (
	KindInvalid Kind = iota
	KindLeaf
	KindCombine
	KindExistential
	KindAggregate
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindCombine:
		return "combine"
	case KindExistential:
		return "found"
	case KindAggregate:
		return "subselect"
	default:
		return "invalid"
	}
}

// Aggregator selects conjunction (All) or disjunction (Any) over children.
type Aggregator int

const (
	All Aggregator = iota
	Any
)

func (a Aggregator) String() string {
	if a == Any {
		return "any"
	}
	return "all"
}

// ParseAggregator accepts "all"/"any" in any case. Empty defaults to All.
func ParseAggregator(s string) (Aggregator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return All, nil
	case "any":
		return Any, nil
	default:
		return All, fmt.Errorf("%w: %q", types.ErrInvalidAggregator, s)
	}
}

// Operator is a leaf/aggregate comparison operator.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEq
	OpNeq
	OpGte
	OpLte
	OpGt
	OpLt
)

var operatorSymbols = map[Operator]string{
	OpEq:  "==",
	OpNeq: "!=",
	OpGte: ">=",
	OpLte: "<=",
	OpGt:  ">",
	OpLt:  "<",
}

func (op Operator) String() string {
	if s, ok := operatorSymbols[op]; ok {
		return s
	}
	return ""
}

// IsOrdering reports whether op compares numerically.
func (op Operator) IsOrdering() bool {
	return op == OpGte || op == OpLte || op == OpGt || op == OpLt
}

// ParseOperator maps an operator symbol to Operator. The legacy list
// operators "()" (is one of) and "!()" (is not one of) map onto == and !=,
// whose list semantics are membership.
func ParseOperator(s string) (Operator, error) {
	switch strings.TrimSpace(s) {
	case "==":
		return OpEq, nil
	case "!=":
		return OpNeq, nil
	case ">=":
		return OpGte, nil
	case "<=":
		return OpLte, nil
	case ">":
		return OpGt, nil
	case "<":
		return OpLt, nil
	case "()":
		return OpEq, nil
	case "!()":
		return OpNeq, nil
	default:
		return OpUnspecified, fmt.Errorf("%w: %q", types.ErrInvalidOperator, s)
	}
}

// Node is one vertex of a condition tree.
type Node interface {
	// Header returns the identity fields shared by every variant.
	Header() Header
	node()
}

// Header carries the fields common to every node.
// ID is a path token (e.g. "1--2") used only to correlate with editors.
type Header struct {
	ID   string
	Type string
}

// Leaf compares one subject attribute against a literal.
type Leaf struct {
	Head      Header
	Attribute string
	Operator  Operator
	Value     any
}

// Combine aggregates children with ALL/ANY. Value=false negates the result.
type Combine struct {
	Head       Header
	Aggregator Aggregator
	Value      bool
	Children   []Node
}

// Existential asks whether any item (Found=true) or no item (Found=false)
// of the subject satisfies Children under Aggregator.
type Existential struct {
	Head       Header
	Aggregator Aggregator
	Found      bool
	Children   []Node
}

// Aggregate sums Attribute over items that pass the Children filter and
// compares the sum to Value.
type Aggregate struct {
	Head       Header
	Attribute  string
	Operator   Operator
	Value      any
	Aggregator Aggregator
	Children   []Node
}

// Invalid stands in for a subtree that could not be built. It always
// evaluates to false and reports Err as a configuration error.
type Invalid struct {
	Head Header
	Err  error
	// Raw keeps the undecoded node so it can be re-serialized unchanged.
	Raw any
}

func (n *Leaf) Header() Header        { return n.Head }
func (n *Combine) Header() Header     { return n.Head }
func (n *Existential) Header() Header { return n.Head }
func (n *Aggregate) Header() Header   { return n.Head }
func (n *Invalid) Header() Header     { return n.Head }

func (*Leaf) node()        {}
func (*Combine) node()     {}
func (*Existential) node() {}
func (*Aggregate) node()   {}
func (*Invalid) node()     {}

// KindOf returns the variant of n.
func KindOf(n Node) Kind {
	switch n.(type) {
	case *Leaf:
		return KindLeaf
	case *Combine:
		return KindCombine
	case *Existential:
		return KindExistential
	case *Aggregate:
		return KindAggregate
	default:
		return KindInvalid
	}
}

// Children returns the child nodes of n, or nil for leaves.
func Children(n Node) []Node {
	switch v := n.(type) {
	case *Combine:
		return v.Children
	case *Existential:
		return v.Children
	case *Aggregate:
		return v.Children
	default:
		return nil
	}
}

// NewLeaf builds a leaf with the default "leaf" type tag.
func NewLeaf(attribute string, op Operator, value any) *Leaf {
	return &Leaf{Head: Header{Type: KindLeaf.String()}, Attribute: attribute, Operator: op, Value: value}
}

// NewCombine builds a combine node with the default "combine" type tag.
func NewCombine(agg Aggregator, value bool, children ...Node) *Combine {
	return &Combine{Head: Header{Type: KindCombine.String()}, Aggregator: agg, Value: value, Children: children}
}

// NewExistential builds a FOUND (found=true) or NOT FOUND node.
func NewExistential(agg Aggregator, found bool, children ...Node) *Existential {
	return &Existential{Head: Header{Type: KindExistential.String()}, Aggregator: agg, Found: found, Children: children}
}

// NewAggregate builds a subselect node summing attribute over filtered items.
func NewAggregate(attribute string, op Operator, threshold any, agg Aggregator, filter ...Node) *Aggregate {
	return &Aggregate{
		Head:       Header{Type: KindAggregate.String()},
		Attribute:  attribute,
		Operator:   op,
		Value:      threshold,
		Aggregator: agg,
		Children:   filter,
	}
}

// AssignIDs rewrites node IDs as path tokens rooted at "1": children of "1"
// become "1--1", "1--2" and so on. Used after building a tree from storage.
func AssignIDs(root Node) {
	assignIDs(root, "1")
}

func assignIDs(n Node, id string) {
	switch v := n.(type) {
	case *Leaf:
		v.Head.ID = id
	case *Combine:
		v.Head.ID = id
	case *Existential:
		v.Head.ID = id
	case *Aggregate:
		v.Head.ID = id
	case *Invalid:
		v.Head.ID = id
	}
	for i, child := range Children(n) {
		assignIDs(child, fmt.Sprintf("%s--%d", id, i+1))
	}
}
