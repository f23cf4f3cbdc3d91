// internal/subject/record.go
package subject

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/solatis/ruletree/internal/condition"
)

// ItemsKey is the attribute holding a record's item collection.
const ItemsKey = "items"

// Record is a generic evaluation subject: a cart, a product, a customer or a
// single line item. Attribute codes resolve as field paths over the raw map.
// A Record is read-only after construction and safe for concurrent use.
type Record struct {
	attrs map[string]any
	items []*Record
}

var (
	_ condition.Subject    = (*Record)(nil)
	_ condition.ItemSource = (*Record)(nil)
)

// New builds a record from attrs and explicit items. attrs is not copied.
func New(attrs map[string]any, items ...*Record) *Record {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &Record{attrs: attrs, items: items}
}

// FromMap builds a record from a decoded document. A list under ItemsKey
// becomes the item collection; non-map elements are skipped. The list also
// stays addressable as an attribute ("items.*.sku").
func FromMap(m map[string]any) *Record {
	r := New(m)
	raw, ok := m[ItemsKey].([]any)
	if !ok {
		return r
	}
	for _, elem := range raw {
		if im, ok := elem.(map[string]any); ok {
			r.items = append(r.items, FromMap(im))
		}
	}
	return r
}

// FromJSON decodes a JSON object into a record. Numbers become float64 when
// that is exact; longer ones stay json.Number so codes keep every digit.
func FromJSON(data []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode subject: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode subject: unexpected data after object")
	}
	return FromMap(normalizeJSON(m).(map[string]any)), nil
}

// normalizeJSON replaces json.Number values that float64 holds exactly.
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeJSON(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeJSON(val)
		}
		return t
	case json.Number:
		if condition.IsExactNumeric(t) {
			if f, err := t.Float64(); err == nil {
				return f
			}
		}
		return t
	default:
		return t
	}
}

// FromYAML decodes a YAML mapping into a record.
func FromYAML(data []byte) (*Record, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode subject: %w", err)
	}
	return FromMap(normalizeYAML(m).(map[string]any)), nil
}

// normalizeYAML converts the map[any]any nodes yaml.v3 produces for
// non-string keys into map[string]any so paths can address them.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return t
	}
}

// Attribute implements condition.Subject. An exact key wins over path
// interpretation, so codes containing dots can still be stored flat.
func (r *Record) Attribute(code string) (any, bool) {
	if r == nil {
		return nil, false
	}
	if v, ok := r.attrs[code]; ok {
		return v, true
	}
	path, err := cachedPath(code)
	if err != nil || (len(path) < 2 && path.Wildcards() == 0) {
		return nil, false
	}
	v, err := Resolve(path, r.attrs)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Items implements condition.ItemSource.
func (r *Record) Items() []condition.Subject {
	if r == nil {
		return nil
	}
	out := make([]condition.Subject, len(r.items))
	for i, it := range r.items {
		out[i] = it
	}
	return out
}

// Map returns the underlying attribute map.
func (r *Record) Map() map[string]any {
	return r.attrs
}

// Len returns the number of items.
func (r *Record) Len() int {
	return len(r.items)
}
