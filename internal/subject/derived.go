// internal/subject/derived.go
package subject

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/solatis/ruletree/internal/condition"
)

/*
 * Derived attributes.
 *
 * A Derived set maps attribute codes to CEL expressions over the subject's
 * own attributes, exposed as the map variable "attrs":
 *
 *   row_total:   "attrs.price * attrs.qty"
 *   is_domestic: "attrs.country == 'NL'"
 *
 * Expressions are compiled once. Values are computed on first lookup and
 * memoized per wrapped subject. An expression that fails at evaluation time
 * (missing key, type mismatch) resolves as absent, which the condition engine
 * already treats as a neutral default. Derived codes shadow stored ones.
 * Expressions see stored attributes only, not other derived attributes.
 */

// derivedCostLimit bounds a single expression evaluation.
const derivedCostLimit = 100000

// Derived is a compiled set of computed attributes. Safe for concurrent use.
type Derived struct {
	programs map[string]cel.Program
	sources  map[string]string
}

// NewDerived compiles exprs (code -> CEL expression).
func NewDerived(exprs map[string]string) (*Derived, error) {
	env, err := cel.NewEnv(
		cel.Variable("attrs", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	d := &Derived{
		programs: make(map[string]cel.Program, len(exprs)),
		sources:  make(map[string]string, len(exprs)),
	}
	for _, code := range sortedKeys(exprs) {
		expr := exprs[code]
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("derived attribute %q: compile error: %w", code, issues.Err())
		}
		prog, err := env.Program(ast, cel.CostLimit(derivedCostLimit))
		if err != nil {
			return nil, fmt.Errorf("derived attribute %q: program creation error: %w", code, err)
		}
		d.programs[code] = prog
		d.sources[code] = expr
	}
	return d, nil
}

// LoadDerived compiles a YAML mapping of code -> expression.
func LoadDerived(data []byte) (*Derived, error) {
	var exprs map[string]string
	if err := yaml.Unmarshal(data, &exprs); err != nil {
		return nil, fmt.Errorf("decode derived attributes: %w", err)
	}
	return NewDerived(exprs)
}

// Codes returns the derived attribute codes in sorted order.
func (d *Derived) Codes() []string {
	return sortedKeys(d.sources)
}

// Eval computes code against attrs. ok=false when code is not derived or
// evaluation failed.
func (d *Derived) Eval(code string, attrs map[string]any) (any, bool) {
	prog, exists := d.programs[code]
	if !exists {
		return nil, false
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	out, _, err := prog.Eval(map[string]any{"attrs": attrs})
	if err != nil {
		return nil, false
	}
	return out.Value(), true
}

// Wrap returns s with the derived attributes layered on top. Items are
// wrapped too, so filters inside found/subselect nodes see item-level
// derived attributes. A nil Derived or a nil s returns s unchanged.
func (d *Derived) Wrap(s condition.Subject) condition.Subject {
	if d == nil || len(d.programs) == 0 || s == nil {
		return s
	}
	return &derivedSubject{base: s, derived: d}
}

// WithDerived is shorthand for d.Wrap(s).
func WithDerived(s condition.Subject, d *Derived) condition.Subject {
	return d.Wrap(s)
}

type derivedSubject struct {
	base    condition.Subject
	derived *Derived

	mu      sync.Mutex
	values  map[string]derivedValue
	items   []condition.Subject
	wrapped bool
}

type derivedValue struct {
	value any
	ok    bool
}

func (s *derivedSubject) Attribute(code string) (any, bool) {
	if _, isDerived := s.derived.programs[code]; !isDerived {
		return s.base.Attribute(code)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, cached := s.values[code]; cached {
		return v.value, v.ok
	}
	v, ok := s.derived.Eval(code, attributeMap(s.base))
	if s.values == nil {
		s.values = make(map[string]derivedValue)
	}
	s.values[code] = derivedValue{value: v, ok: ok}
	return v, ok
}

func (s *derivedSubject) Items() []condition.Subject {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wrapped {
		return s.items
	}
	src, ok := s.base.(condition.ItemSource)
	if ok {
		for _, it := range src.Items() {
			s.items = append(s.items, s.derived.Wrap(it))
		}
	}
	s.wrapped = true
	return s.items
}

// attributeMap exposes the stored attributes of s to CEL.
func attributeMap(s condition.Subject) map[string]any {
	switch v := s.(type) {
	case *Record:
		return v.attrs
	case condition.Attrs:
		return v
	case interface{ Map() map[string]any }:
		return v.Map()
	default:
		return map[string]any{}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
