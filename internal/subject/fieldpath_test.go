package subject

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/ruletree/internal/types"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("invalid test JSON: %v", err)
	}
	return v
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		code    string
		want    Path
		wantErr error
	}{
		{code: "color", want: Path{{Key: "color"}}},
		{code: "address.country", want: Path{{Key: "address"}, {Key: "country"}}},
		{code: "items.0.sku", want: Path{{Key: "items"}, {Index: 0, IsIndex: true}, {Key: "sku"}}},
		{code: "items.*.category", want: Path{{Key: "items"}, {Wildcard: true}, {Key: "category"}}},
		{code: "a.-1", want: Path{{Key: "a"}, {Key: "-1"}}},
		{code: "", wantErr: types.ErrFieldNotFound},
		{code: "a..b", wantErr: types.ErrFieldNotFound},
		{code: "*.*.*", wantErr: types.ErrTooManyWildcards},
		{code: strings.Repeat("a.", types.MaxPathDepth) + "a", wantErr: types.ErrPathTooDeep},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := ParsePath(tt.code)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParsePath(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
			if tt.wantErr == nil && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParsePath(%q) = %+v, want %+v", tt.code, got, tt.want)
			}
		})
	}
}

func TestPath_StringRoundTrip(t *testing.T) {
	for _, code := range []string{"color", "items.0.sku", "orders.*.items.*.price"} {
		p, err := ParsePath(code)
		if err != nil {
			t.Fatalf("ParsePath(%q) error = %v", code, err)
		}
		if got := p.String(); got != code {
			t.Errorf("Path.String() = %q, want %q", got, code)
		}
	}
}

func TestResolve_Normal(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		data     string
		expected any
	}{
		{
			name:     "nested object traversal",
			code:     "user.name",
			data:     `{"user": {"name": "Alice"}}`,
			expected: "Alice",
		},
		{
			name:     "array index access",
			code:     "users.0.name",
			data:     `{"users": [{"name": "Bob"}]}`,
			expected: "Bob",
		},
		{
			name:     "numeric map key",
			code:     "slots.2",
			data:     `{"slots": {"2": "afternoon"}}`,
			expected: "afternoon",
		},
		{
			name:     "wildcard collects every match",
			code:     "items.*.price",
			data:     `{"items": [{"price": 10}, {"sku": "x"}, {"price": 20}]}`,
			expected: []any{float64(10), float64(20)},
		},
		{
			name:     "wildcard on object sorted keys",
			code:     "*.value",
			data:     `{"z": {"value": 1}, "a": {"value": 2}, "m": {"value": 3}}`,
			expected: []any{float64(2), float64(3), float64(1)},
		},
		{
			name:     "nested wildcards flatten",
			code:     "orders.*.items.*.price",
			data:     `{"orders": [{"items": [{"price": 100}, {"price": 200}]}, {"items": [{"price": 300}]}]}`,
			expected: []any{float64(100), float64(200), float64(300)},
		},
		{
			name:     "wildcard over list values flattens",
			code:     "items.*.tags",
			data:     `{"items": [{"tags": ["a", "b"]}, {"tags": ["c"]}]}`,
			expected: []any{"a", "b", "c"},
		},
		{
			name:     "null leaf value is found",
			code:     "user.nickname",
			data:     `{"user": {"nickname": null}}`,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := ParsePath(tt.code)
			if err != nil {
				t.Fatalf("ParsePath() error = %v", err)
			}
			got, err := Resolve(path, decode(t, tt.data))
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Resolve() = %#v, expected %#v", got, tt.expected)
			}
		})
	}
}

func TestResolve_EdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		path    Path
		data    string
		wantErr error
	}{
		{
			name:    "empty object",
			path:    Path{{Key: "missing"}},
			data:    `{}`,
			wantErr: types.ErrFieldNotFound,
		},
		{
			name:    "empty array",
			path:    Path{{Index: 0, IsIndex: true}},
			data:    `[]`,
			wantErr: types.ErrFieldNotFound,
		},
		{
			name:    "empty array with wildcard",
			path:    Path{{Wildcard: true}, {Key: "price"}},
			data:    `[]`,
			wantErr: types.ErrFieldNotFound,
		},
		{
			name:    "null value at intermediate level",
			path:    Path{{Key: "user"}, {Key: "name"}},
			data:    `{"user": null}`,
			wantErr: types.ErrFieldNotFound,
		},
		{
			name:    "scalar value but path continues",
			path:    Path{{Key: "value"}, {Key: "nested"}},
			data:    `{"value": "scalar"}`,
			wantErr: types.ErrFieldNotFound,
		},
		{
			name:    "string key on array",
			path:    Path{{Key: "items"}, {Key: "first"}},
			data:    `{"items": [1, 2]}`,
			wantErr: types.ErrFieldNotFound,
		},
		{
			name:    "index out of bounds",
			path:    Path{{Key: "items"}, {Index: 5, IsIndex: true}},
			data:    `{"items": [1, 2]}`,
			wantErr: types.ErrFieldNotFound,
		},
		{
			name:    "too many wildcards",
			path:    Path{{Wildcard: true}, {Wildcard: true}, {Wildcard: true}},
			data:    `[]`,
			wantErr: types.ErrTooManyWildcards,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.path, decode(t, tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolve_PathTooDeep(t *testing.T) {
	path := make(Path, types.MaxPathDepth+1)
	for i := range path {
		path[i] = Segment{Key: "a"}
	}
	if _, err := Resolve(path, map[string]any{}); !errors.Is(err, types.ErrPathTooDeep) {
		t.Errorf("Resolve() error = %v, want ErrPathTooDeep", err)
	}
}

func TestResolve_PropertyNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("resolution never crashes regardless of input", prop.ForAll(
		func(depth, width int, wildcard bool) bool {
			// Build a nested document depth levels deep, width entries wide.
			var doc any = "leaf"
			for i := 0; i < depth; i++ {
				list := make([]any, width)
				for j := range list {
					list[j] = map[string]any{"k": doc}
				}
				doc = list
			}

			path := Path{}
			for i := 0; i < depth && len(path) < types.MaxPathDepth-1; i++ {
				if wildcard && i < types.MaxNestedWildcards {
					path = append(path, Segment{Wildcard: true})
				} else {
					path = append(path, Segment{Index: 0, IsIndex: true})
				}
				path = append(path, Segment{Key: "k"})
			}

			_, err := Resolve(path, doc)
			return err == nil || errors.Is(err, types.ErrFieldNotFound) ||
				errors.Is(err, types.ErrPathTooDeep) || errors.Is(err, types.ErrTooManyWildcards)
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 4),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestResolve_PropertyWildcardCountsEveryElement(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("items.*.qty has one value per item with qty", prop.ForAll(
		func(qtys []int) bool {
			items := make([]any, len(qtys))
			for i, q := range qtys {
				items[i] = map[string]any{"qty": q}
			}
			got, err := Resolve(Path{{Key: "items"}, {Wildcard: true}, {Key: "qty"}}, map[string]any{"items": items})
			if len(qtys) == 0 {
				return errors.Is(err, types.ErrFieldNotFound)
			}
			list, ok := got.([]any)
			return err == nil && ok && len(list) == len(qtys)
		},
		gen.SliceOf(gen.Int()),
	))

	properties.TestingRun(t)
}
