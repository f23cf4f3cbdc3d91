package condition

import (
	"errors"
	"testing"

	"github.com/solatis/ruletree/internal/types"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		tree     Node
		wantErrs []error
	}{
		{
			name: "nil tree",
			tree: nil,
		},
		{
			name: "valid nested tree",
			tree: NewCombine(All, true,
				NewLeaf("subtotal", OpGte, 50),
				NewExistential(Any, false, NewLeaf("category", OpEq, "Clearance")),
				NewAggregate("qty", OpGte, 2, All, NewLeaf("sku", OpEq, "A")),
			),
		},
		{
			name:     "leaf without attribute",
			tree:     NewLeaf("", OpEq, "x"),
			wantErrs: []error{types.ErrMissingAttribute},
		},
		{
			name:     "leaf without operator",
			tree:     NewLeaf("sku", OpUnspecified, "x"),
			wantErrs: []error{types.ErrInvalidOperator},
		},
		{
			name:     "subselect with empty filter",
			tree:     NewAggregate("qty", OpGte, 2, All),
			wantErrs: []error{types.ErrEmptyFilter},
		},
		{
			name: "multiple problems are all reported",
			tree: NewCombine(Any, true,
				&Invalid{Head: Header{Type: "mystery"}, Err: types.ErrUnknownNodeType},
				NewLeaf("", OpEq, 1),
				NewAggregate("qty", OpGte, 2, All),
			),
			wantErrs: []error{types.ErrUnknownNodeType, types.ErrMissingAttribute, types.ErrEmptyFilter},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.tree)
			if len(tt.wantErrs) == 0 {
				if err != nil {
					t.Fatalf("Check() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Check() error = nil, want %v", tt.wantErrs)
			}
			for _, want := range tt.wantErrs {
				if !errors.Is(err, want) {
					t.Errorf("Check() error = %v, want to contain %v", err, want)
				}
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("Check() error = %v, want *ConfigError", err)
			}
		})
	}
}

func TestCheck_ReportsNodeID(t *testing.T) {
	tree := NewCombine(All, true,
		NewLeaf("sku", OpEq, "A"),
		NewLeaf("", OpEq, "B"),
	)
	AssignIDs(tree)

	var cfgErr *ConfigError
	if !errors.As(Check(tree), &cfgErr) {
		t.Fatalf("Check() did not return a ConfigError")
	}
	if cfgErr.NodeID != "1--2" {
		t.Errorf("NodeID = %q, want %q", cfgErr.NodeID, "1--2")
	}
	if cfgErr.Type != "leaf" {
		t.Errorf("Type = %q, want %q", cfgErr.Type, "leaf")
	}
}

func TestDepthAndCount(t *testing.T) {
	tests := []struct {
		name      string
		tree      Node
		wantDepth int
		wantCount int
	}{
		{name: "nil", tree: nil, wantDepth: 0, wantCount: 0},
		{name: "lone leaf", tree: NewLeaf("a", OpEq, 1), wantDepth: 1, wantCount: 1},
		{name: "empty combine", tree: NewCombine(All, true), wantDepth: 1, wantCount: 1},
		{
			name: "three levels",
			tree: NewCombine(All, true,
				NewLeaf("a", OpEq, 1),
				NewExistential(All, true,
					NewLeaf("b", OpEq, 2),
					NewLeaf("c", OpEq, 3),
				),
			),
			wantDepth: 3,
			wantCount: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Depth(tt.tree); got != tt.wantDepth {
				t.Errorf("Depth() = %d, want %d", got, tt.wantDepth)
			}
			if got := Count(tt.tree); got != tt.wantCount {
				t.Errorf("Count() = %d, want %d", got, tt.wantCount)
			}
		})
	}
}

func TestAssignIDs(t *testing.T) {
	inner := NewLeaf("c", OpEq, 3)
	tree := NewCombine(All, true,
		NewLeaf("a", OpEq, 1),
		NewAggregate("qty", OpGte, 1, All, NewLeaf("b", OpEq, 2), inner),
	)
	AssignIDs(tree)

	if tree.Head.ID != "1" {
		t.Errorf("root ID = %q, want %q", tree.Head.ID, "1")
	}
	if got := tree.Children[1].Header().ID; got != "1--2" {
		t.Errorf("second child ID = %q, want %q", got, "1--2")
	}
	if inner.Head.ID != "1--2--2" {
		t.Errorf("nested ID = %q, want %q", inner.Head.ID, "1--2--2")
	}
}
