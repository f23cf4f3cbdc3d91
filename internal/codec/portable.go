// internal/codec/portable.go
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solatis/ruletree/internal/condition"
	"github.com/solatis/ruletree/internal/types"
)

/*
 * Portable tree.
 *
 * Portable is the format-neutral shape every encoding goes through:
 *
 *   leaf       {type, attribute, operator, value}
 *   combine    {type, aggregator, value, conditions}
 *   found      {type, attribute: null, operator: null, aggregator, value, conditions}
 *   subselect  {type, attribute, operator, value, aggregator, conditions}
 *
 * For combine and found, value is the negation / FOUND flag; for leaf and
 * subselect it is the comparison literal. Field order above is the emitted
 * order in JSON and YAML.
 *
 * Kind is set by ToPortable and drives which fields are emitted. A Portable
 * decoded from text has KindInvalid until FromPortable resolves its tag; it
 * then emits whatever fields it carries.
 */

// Portable is one node of the serialization-neutral tree.
type Portable struct {
	Type       string
	Attribute  string
	Operator   string
	Value      any
	Aggregator string
	Conditions []Portable

	Kind condition.Kind
}

// ToPortable converts a node tree to its portable form, preserving child order.
func ToPortable(n condition.Node) Portable {
	switch v := n.(type) {
	case *condition.Leaf:
		return Portable{
			Type:      tagOr(v.Head.Type, TagLeaf),
			Kind:      condition.KindLeaf,
			Attribute: v.Attribute,
			Operator:  v.Operator.String(),
			Value:     v.Value,
		}
	case *condition.Combine:
		return Portable{
			Type:       tagOr(v.Head.Type, TagCombine),
			Kind:       condition.KindCombine,
			Aggregator: v.Aggregator.String(),
			Value:      v.Value,
			Conditions: toPortableList(v.Children),
		}
	case *condition.Existential:
		return Portable{
			Type:       tagOr(v.Head.Type, TagFound),
			Kind:       condition.KindExistential,
			Aggregator: v.Aggregator.String(),
			Value:      v.Found,
			Conditions: toPortableList(v.Children),
		}
	case *condition.Aggregate:
		return Portable{
			Type:       tagOr(v.Head.Type, TagSubselect),
			Kind:       condition.KindAggregate,
			Attribute:  v.Attribute,
			Operator:   v.Operator.String(),
			Value:      v.Value,
			Aggregator: v.Aggregator.String(),
			Conditions: toPortableList(v.Children),
		}
	case *condition.Invalid:
		if raw, ok := v.Raw.(Portable); ok {
			return raw
		}
		return Portable{Type: v.Head.Type}
	default:
		return Portable{}
	}
}

func toPortableList(children []condition.Node) []Portable {
	out := make([]Portable, len(children))
	for i, c := range children {
		out[i] = ToPortable(c)
	}
	return out
}

func tagOr(tag, fallback string) string {
	if tag == "" {
		return fallback
	}
	return tag
}

// FromPortable materializes p through reg and assigns path IDs. It never
// fails: unresolvable or malformed nodes become *condition.Invalid, which
// evaluates to false and reports a configuration error.
func FromPortable(p Portable, reg Registry) condition.Node {
	if reg == nil {
		reg = DefaultRegistry()
	}
	root := fromPortable(p, reg)
	condition.AssignIDs(root)
	return root
}

func fromPortable(p Portable, reg Registry) condition.Node {
	variant, ok := reg.Lookup(p.Type)
	if !ok {
		return invalid(p, fmt.Errorf("%w: %q", types.ErrUnknownNodeType, p.Type))
	}
	head := condition.Header{Type: p.Type}

	switch variant.Kind {
	case condition.KindLeaf:
		attr := pinned(variant, p.Attribute)
		// An unparsable operator stays OpUnspecified; evaluation and Check
		// both report it against this node.
		op, _ := condition.ParseOperator(p.Operator)
		return &condition.Leaf{Head: head, Attribute: attr, Operator: op, Value: p.Value}

	case condition.KindCombine:
		agg, err := condition.ParseAggregator(p.Aggregator)
		if err != nil {
			return invalid(p, err)
		}
		flag, err := parseFlag(p.Value)
		if err != nil {
			return invalid(p, err)
		}
		return &condition.Combine{Head: head, Aggregator: agg, Value: flag, Children: fromPortableList(p.Conditions, reg)}

	case condition.KindExistential:
		agg, err := condition.ParseAggregator(p.Aggregator)
		if err != nil {
			return invalid(p, err)
		}
		found, err := parseFlag(p.Value)
		if err != nil {
			return invalid(p, err)
		}
		return &condition.Existential{Head: head, Aggregator: agg, Found: found, Children: fromPortableList(p.Conditions, reg)}

	case condition.KindAggregate:
		agg, err := condition.ParseAggregator(p.Aggregator)
		if err != nil {
			return invalid(p, err)
		}
		op, _ := condition.ParseOperator(p.Operator)
		return &condition.Aggregate{
			Head:       head,
			Attribute:  pinned(variant, p.Attribute),
			Operator:   op,
			Value:      p.Value,
			Aggregator: agg,
			Children:   fromPortableList(p.Conditions, reg),
		}

	default:
		return invalid(p, fmt.Errorf("%w: %q", types.ErrUnknownNodeType, p.Type))
	}
}

func fromPortableList(list []Portable, reg Registry) []condition.Node {
	if len(list) == 0 {
		return nil
	}
	out := make([]condition.Node, len(list))
	for i, p := range list {
		out[i] = fromPortable(p, reg)
	}
	return out
}

func invalid(p Portable, err error) *condition.Invalid {
	return &condition.Invalid{Head: condition.Header{Type: p.Type}, Err: err, Raw: p}
}

func pinned(v Variant, attr string) string {
	if v.Attribute != "" {
		return v.Attribute
	}
	return attr
}

// parseFlag reads the combine/found value flag. Absent means true; legacy
// trees store it as "1"/"0".
func parseFlag(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return true, nil
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true":
			return true, nil
		case "0", "false", "":
			return false, nil
		}
	default:
		if n, err := condition.CoerceNumeric(t); err == nil {
			return n != 0, nil
		}
	}
	return false, fmt.Errorf("%w: invalid flag value %v", types.ErrMalformedTree, v)
}

// field is one emitted key/value pair.
type field struct {
	key   string
	value any
}

// fields lists the keys emitted for p, in order.
func (p Portable) fields() []field {
	conds := p.Conditions
	if conds == nil {
		conds = []Portable{}
	}

	switch p.Kind {
	case condition.KindLeaf:
		return []field{{"type", p.Type}, {"attribute", p.Attribute}, {"operator", p.Operator}, {"value", p.Value}}
	case condition.KindCombine:
		return []field{{"type", p.Type}, {"aggregator", p.Aggregator}, {"value", p.Value}, {"conditions", conds}}
	case condition.KindExistential:
		return []field{{"type", p.Type}, {"attribute", nil}, {"operator", nil}, {"aggregator", p.Aggregator}, {"value", p.Value}, {"conditions", conds}}
	case condition.KindAggregate:
		return []field{{"type", p.Type}, {"attribute", p.Attribute}, {"operator", p.Operator}, {"value", p.Value}, {"aggregator", p.Aggregator}, {"conditions", conds}}
	}

	// Unresolved node: emit what it carries.
	out := []field{{"type", p.Type}}
	if p.Attribute != "" {
		out = append(out, field{"attribute", p.Attribute})
	}
	if p.Operator != "" {
		out = append(out, field{"operator", p.Operator})
	}
	if p.Value != nil {
		out = append(out, field{"value", p.Value})
	}
	if p.Aggregator != "" {
		out = append(out, field{"aggregator", p.Aggregator})
	}
	if p.Conditions != nil {
		out = append(out, field{"conditions", p.Conditions})
	}
	return out
}

// rawPortable is the decode shape shared by JSON and YAML.
type rawPortable struct {
	Type       string     `json:"type" yaml:"type"`
	Attribute  *string    `json:"attribute" yaml:"attribute"`
	Operator   *string    `json:"operator" yaml:"operator"`
	Value      any        `json:"value" yaml:"value"`
	Aggregator *string    `json:"aggregator" yaml:"aggregator"`
	Conditions []Portable `json:"conditions" yaml:"conditions"`
}

func (r rawPortable) portable() Portable {
	p := Portable{Type: r.Type, Value: r.Value, Conditions: r.Conditions}
	if r.Attribute != nil {
		p.Attribute = *r.Attribute
	}
	if r.Operator != nil {
		p.Operator = *r.Operator
	}
	if r.Aggregator != nil {
		p.Aggregator = *r.Aggregator
	}
	return p
}

// MarshalJSON emits the fields of p in canonical order without HTML escaping.
func (p Portable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range p.fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalJSONValue(f.key)
		if err != nil {
			return nil, err
		}
		val, err := marshalJSONValue(f.value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes one node. Numbers are kept as json.Number so
// literals survive a round trip unchanged.
func (p *Portable) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw rawPortable
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*p = raw.portable()
	return nil
}

// MarshalYAML emits the fields of p in canonical order.
func (p Portable) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range p.fields() {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.key}
		val := &yaml.Node{}
		if err := val.Encode(f.value); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.key, err)
		}
		node.Content = append(node.Content, key, val)
	}
	return node, nil
}

// UnmarshalYAML decodes one node.
func (p *Portable) UnmarshalYAML(node *yaml.Node) error {
	var raw rawPortable
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*p = raw.portable()
	return nil
}

func marshalJSONValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
