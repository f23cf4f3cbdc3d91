// internal/codec/codec.go
package codec

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solatis/ruletree/internal/condition"
	"github.com/solatis/ruletree/internal/types"
)

// Format is a textual encoding of a condition tree.
type Format int

const (
	// FormatJSON is the primary persisted form.
	FormatJSON Format = iota
	// FormatXML is the legacy tag-based form, kept importable.
	FormatXML
	// FormatYAML is used for fixtures and the CLI.
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatYAML:
		return "yaml"
	default:
		return "json"
	}
}

// ParseFormat accepts "json", "xml", "yaml" or "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "xml":
		return FormatXML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return FormatJSON, fmt.Errorf("unknown format %q", s)
	}
}

// Detect guesses the format of persisted text: XML if it starts with '<',
// JSON otherwise. YAML is never detected; callers ask for it explicitly.
func Detect(data []byte) Format {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '<' {
		return FormatXML
	}
	return FormatJSON
}

// DeserializationError reports persisted text that could not be parsed.
// It matches types.ErrMalformedTree under errors.Is.
type DeserializationError struct {
	Format Format
	Err    error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("decode %s condition tree: %v", e.Format, e.Err)
}

func (e *DeserializationError) Unwrap() []error {
	return []error{types.ErrMalformedTree, e.Err}
}

// Codec converts condition trees to and from text.
type Codec struct {
	registry Registry
}

// New returns a codec resolving type tags through reg (DefaultRegistry when nil).
func New(reg Registry) *Codec {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Codec{registry: reg}
}

// Registry returns the codec's tag registry.
func (c *Codec) Registry() Registry {
	return c.registry
}

// Decode parses data in the detected format. Blank input is a tree with no
// conditions: an empty ALL, which every subject satisfies.
func (c *Codec) Decode(data []byte) (condition.Node, error) {
	return c.DecodeFormat(data, Detect(data))
}

// DecodeFormat parses data in format f.
func (c *Codec) DecodeFormat(data []byte, f Format) (condition.Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		root := condition.NewCombine(condition.All, true)
		condition.AssignIDs(root)
		return root, nil
	}
	p, err := DecodePortable(data, f)
	if err != nil {
		return nil, err
	}
	return FromPortable(p, c.registry), nil
}

// Encode serializes n in format f. JSON is compact; XML and YAML are indented.
func (c *Codec) Encode(n condition.Node, f Format) ([]byte, error) {
	if n == nil {
		return nil, errors.New("encode condition tree: nil root")
	}
	return EncodePortable(ToPortable(n), f)
}

// DecodePortable parses data into a portable tree without resolving tags.
func DecodePortable(data []byte, f Format) (Portable, error) {
	var p Portable
	var err error
	switch f {
	case FormatXML:
		var n xmlNode
		if err = xml.Unmarshal(data, &n); err == nil {
			p = fromXMLNode(n)
		}
	case FormatYAML:
		err = yaml.Unmarshal(data, &p)
	default:
		err = json.Unmarshal(data, &p)
	}
	if err != nil {
		return Portable{}, &DeserializationError{Format: f, Err: err}
	}
	if p.Type == "" {
		return Portable{}, &DeserializationError{Format: f, Err: errors.New("root node has no type")}
	}
	return p, nil
}

// EncodePortable serializes p in format f.
func EncodePortable(p Portable, f Format) ([]byte, error) {
	switch f {
	case FormatXML:
		out, err := xml.MarshalIndent(toXMLNode(p), "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return marshalJSONValue(p)
	}
}

// Convert re-encodes data from one format into another. Tags are classified
// but not materialized, so unknown node types pass through unchanged.
func (c *Codec) Convert(data []byte, from, to Format) ([]byte, error) {
	p, err := DecodePortable(data, from)
	if err != nil {
		return nil, err
	}
	return EncodePortable(c.classify(p), to)
}

// classify sets Kind from the registry and normalizes combine/found flags.
func (c *Codec) classify(p Portable) Portable {
	if v, ok := c.registry.Lookup(p.Type); ok {
		p.Kind = v.Kind
		if v.Kind == condition.KindCombine || v.Kind == condition.KindExistential {
			if flag, err := parseFlag(p.Value); err == nil {
				p.Value = flag
			}
		}
	}
	for i := range p.Conditions {
		p.Conditions[i] = c.classify(p.Conditions[i])
	}
	return p
}
