// internal/codec/registry.go
package codec

import (
	"sort"

	"github.com/solatis/ruletree/internal/condition"
)

// Variant is what a type tag materializes into. Attribute, when set, pins
// the attribute of a leaf or subselect so hosts can register domain tags
// such as "customer_group" that always read one field.
type Variant struct {
	Kind      condition.Kind
	Attribute string
}

// Registry maps type tags to variants. A Registry is read-only once decoding
// starts; build it at startup.
type Registry map[string]Variant

// Default type tags.
const (
	TagCombine   = "combine"
	TagLeaf      = "leaf"
	TagFound     = "found"
	TagSubselect = "subselect"
)

// DefaultRegistry returns a registry with the four generic tags.
func DefaultRegistry() Registry {
	return Registry{
		TagCombine:   {Kind: condition.KindCombine},
		TagLeaf:      {Kind: condition.KindLeaf},
		TagFound:     {Kind: condition.KindExistential},
		TagSubselect: {Kind: condition.KindAggregate},
	}
}

// Register adds or replaces tag.
func (r Registry) Register(tag string, v Variant) {
	r[tag] = v
}

// Lookup resolves tag. KindInvalid entries are treated as unregistered.
func (r Registry) Lookup(tag string) (Variant, bool) {
	v, ok := r[tag]
	if !ok || v.Kind == condition.KindInvalid {
		return Variant{}, false
	}
	return v, true
}

// Tags returns the registered tags in sorted order.
func (r Registry) Tags() []string {
	tags := make([]string, 0, len(r))
	for t := range r {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
