package condition

import (
	"math"
	"testing"
)

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name  string
		tree  Node
		items int
		want  int
	}{
		{
			name: "equality leaf",
			tree: NewLeaf("sku", OpEq, "A"),
			want: CostLookup + CostEq,
		},
		{
			name: "ordering leaf",
			tree: NewLeaf("qty", OpGt, 1),
			want: CostLookup + CostOrdering,
		},
		{
			name: "combine sums children",
			tree: NewCombine(All, true, NewLeaf("a", OpEq, 1), NewLeaf("b", OpLt, 2)),
			want: CostCombine + (CostLookup + CostEq) + (CostLookup + CostOrdering),
		},
		{
			name:  "found scales with items",
			tree:  NewExistential(All, true, NewLeaf("sku", OpEq, "A")),
			items: 10,
			want:  CostCombine + 10*(CostLookup+CostEq),
		},
		{
			name:  "subselect adds lookup and sum per item",
			tree:  NewAggregate("qty", OpGte, 5, All, NewLeaf("sku", OpEq, "A")),
			items: 4,
			want:  CostCombine + 4*((CostLookup+CostEq)+CostLookup+CostSum),
		},
		{
			name:  "found over no items",
			tree:  NewExistential(All, true, NewLeaf("sku", OpEq, "A")),
			items: 0,
			want:  CostCombine,
		},
		{
			name:  "negative item count clamps to zero",
			tree:  NewExistential(All, true, NewLeaf("sku", OpEq, "A")),
			items: -3,
			want:  CostCombine,
		},
		{
			name: "invalid node",
			tree: &Invalid{},
			want: CostInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateCost(tt.tree, tt.items); got != tt.want {
				t.Errorf("EstimateCost() = %d, want %d", got, tt.want)
			}
		})
	}
}

// nestedFound wraps a leaf in depth existential nodes.
func nestedFound(depth int) Node {
	var n Node = NewLeaf("sku", OpEq, "A")
	for i := 0; i < depth; i++ {
		n = NewExistential(All, true, n)
	}
	return n
}

func TestEstimateCost_Saturates(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		items int
	}{
		{name: "ten nested found nodes", depth: 10, items: 100},
		{name: "very deep", depth: 64, items: 100},
		{name: "huge item count", depth: 2, items: math.MaxInt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateCost(nestedFound(tt.depth), tt.items); got != math.MaxInt {
				t.Errorf("EstimateCost() = %d, want math.MaxInt", got)
			}
		})
	}
}

func TestEstimateCost_MonotonicInDepth(t *testing.T) {
	prev := 0
	for depth := 0; depth <= 20; depth++ {
		got := EstimateCost(nestedFound(depth), 100)
		if got < prev {
			t.Fatalf("EstimateCost(depth %d) = %d, less than depth %d (%d)", depth, got, depth-1, prev)
		}
		prev = got
	}
}
