package codec

import (
	"errors"
	"math/rand"
	"os"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sebdah/goldie/v2"

	"github.com/solatis/ruletree/internal/condition"
	"github.com/solatis/ruletree/internal/types"
)

type cart struct {
	condition.Attrs
	items []condition.Subject
}

func (c cart) Items() []condition.Subject { return c.items }

func sampleTree() condition.Node {
	return condition.NewCombine(condition.All, true,
		condition.NewLeaf("subtotal", condition.OpGte, 50),
		condition.NewExistential(condition.Any, false,
			condition.NewLeaf("category", condition.OpEq, "Clearance")),
		condition.NewAggregate("qty", condition.OpGte, 5, condition.All,
			condition.NewLeaf("color", condition.OpEq, "red")),
		condition.NewLeaf("category_ids", condition.OpEq, []any{"12", "15"}),
	)
}

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestEncode_Golden(t *testing.T) {
	c := New(nil)

	jsonOut, err := c.Encode(sampleTree(), FormatJSON)
	if err != nil {
		t.Fatalf("Encode(json) error = %v", err)
	}
	xmlOut, err := c.Encode(sampleTree(), FormatXML)
	if err != nil {
		t.Fatalf("Encode(xml) error = %v", err)
	}

	g := newGolden(t)
	g.Assert(t, "sample_tree_json", append(jsonOut, '\n'))
	g.Assert(t, "sample_tree_xml", xmlOut)
}

func TestDecode_LegacyXMLImport(t *testing.T) {
	data, err := os.ReadFile("testdata/legacy_discount.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if Detect(data) != FormatXML {
		t.Fatalf("Detect() = %v, want xml", Detect(data))
	}

	c := New(nil)
	root, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := condition.Check(root); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	out, err := c.Encode(root, FormatJSON)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	newGolden(t).Assert(t, "legacy_discount_json", append(out, '\n'))

	// Two non-gift units in category 15.
	s := cart{
		Attrs: condition.Attrs{"category_ids": []any{"15", "40"}},
		items: []condition.Subject{
			condition.Attrs{"sku": "A", "qty": 1},
			condition.Attrs{"sku": "GIFT", "qty": 9},
			condition.Attrs{"sku": "B", "qty": 1},
		},
	}
	if !condition.Validate(root, s) {
		t.Errorf("Validate() = false, want true")
	}
}

func TestConvert_XMLToJSONMatchesDecode(t *testing.T) {
	data, err := os.ReadFile("testdata/legacy_discount.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	c := New(nil)
	converted, err := c.Convert(data, FormatXML, FormatJSON)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	// Convert keeps the legacy "()" operator text; both must evaluate alike.
	a, err := c.Decode(converted)
	if err != nil {
		t.Fatalf("Decode(converted) error = %v", err)
	}
	b, _ := c.Decode(data)
	s := cart{Attrs: condition.Attrs{"category_ids": "12"}}
	if condition.Validate(a, s) != condition.Validate(b, s) {
		t.Errorf("converted tree evaluates differently")
	}
}

func TestXMLRoundTrip_Literals(t *testing.T) {
	tests := []struct {
		name    string
		tree    condition.Node
		subject condition.Attrs
	}{
		{name: "false vs false", tree: condition.NewLeaf("flag", condition.OpEq, false), subject: condition.Attrs{"flag": false}},
		{name: "false vs absent", tree: condition.NewLeaf("flag", condition.OpEq, false), subject: condition.Attrs{}},
		{name: "false vs zero", tree: condition.NewLeaf("flag", condition.OpEq, false), subject: condition.Attrs{"flag": 0}},
		{name: "true vs one", tree: condition.NewLeaf("flag", condition.OpEq, true), subject: condition.Attrs{"flag": 1}},
		{name: "int list membership", tree: condition.NewLeaf("cat", condition.OpEq, []int{12, 15}), subject: condition.Attrs{"cat": 15}},
		{name: "float list membership", tree: condition.NewLeaf("cat", condition.OpEq, []float64{2.5, 5}), subject: condition.Attrs{"cat": "2.5"}},
		{name: "int list exclusion", tree: condition.NewLeaf("cat", condition.OpNeq, []int{12, 15}), subject: condition.Attrs{"cat": 15}},
	}

	c := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := c.Encode(tt.tree, FormatXML)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			decoded, err := c.DecodeFormat(data, FormatXML)
			if err != nil {
				t.Fatalf("DecodeFormat() error = %v\n%s", err, data)
			}
			before := condition.Validate(tt.tree, tt.subject)
			if after := condition.Validate(decoded, tt.subject); after != before {
				t.Errorf("Validate() after XML round trip = %v, want %v\n%s", after, before, data)
			}
		})
	}
}

func TestDecode_UnknownType(t *testing.T) {
	c := New(nil)
	root, err := c.Decode([]byte(`{"type":"unknown_type","conditions":[]}`))
	if err != nil {
		t.Fatalf("Decode() error = %v, want nil", err)
	}
	inv, ok := root.(*condition.Invalid)
	if !ok {
		t.Fatalf("Decode() = %T, want *condition.Invalid", root)
	}
	if !errors.Is(inv.Err, types.ErrUnknownNodeType) {
		t.Errorf("Err = %v, want ErrUnknownNodeType", inv.Err)
	}

	collector := &condition.Collector{}
	if condition.NewEvaluator(collector).Validate(root, condition.Attrs{"a": 1}) {
		t.Errorf("Validate() = true, want false")
	}
	if got := collector.Count(condition.SeverityConfiguration); got != 1 {
		t.Errorf("configuration diagnostics = %d, want 1", got)
	}

	out, err := c.Encode(root, FormatJSON)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(out) != `{"type":"unknown_type","conditions":[]}` {
		t.Errorf("Encode() = %s, want the original node back", out)
	}
}

func TestDecode_UnknownChildKeepsSiblings(t *testing.T) {
	c := New(nil)
	root, err := c.Decode([]byte(`{"type":"combine","aggregator":"any","value":true,"conditions":[
		{"type":"mystery"},
		{"type":"leaf","attribute":"color","operator":"==","value":"red"}
	]}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !condition.Validate(root, condition.Attrs{"color": "red"}) {
		t.Errorf("Validate() = false, want true (valid sibling matches)")
	}
	if err := condition.Check(root); !errors.Is(err, types.ErrUnknownNodeType) {
		t.Errorf("Check() error = %v, want ErrUnknownNodeType", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{name: "truncated json", data: `{"type":`, format: FormatJSON},
		{name: "json array", data: `[1,2]`, format: FormatJSON},
		{name: "json without type", data: `{"conditions":[]}`, format: FormatJSON},
		{name: "json null", data: `null`, format: FormatJSON},
		{name: "wrong xml root", data: `<rule><type>leaf</type></rule>`, format: FormatXML},
		{name: "broken xml", data: `<condition><type>leaf</condition>`, format: FormatXML},
		{name: "yaml scalar", data: `just text`, format: FormatYAML},
	}

	c := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.DecodeFormat([]byte(tt.data), tt.format)
			if !errors.Is(err, types.ErrMalformedTree) {
				t.Fatalf("DecodeFormat() error = %v, want ErrMalformedTree", err)
			}
			var derr *DeserializationError
			if !errors.As(err, &derr) {
				t.Fatalf("DecodeFormat() error = %T, want *DeserializationError", err)
			}
			if derr.Format != tt.format {
				t.Errorf("Format = %v, want %v", derr.Format, tt.format)
			}
		})
	}
}

func TestDecode_Blank(t *testing.T) {
	root, err := New(nil).Decode([]byte("  \n"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !condition.Validate(root, condition.Attrs{}) {
		t.Errorf("Validate(blank tree) = false, want true")
	}
}

func TestDecode_AssignsIDs(t *testing.T) {
	c := New(nil)
	data, err := c.Encode(sampleTree(), FormatJSON)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	root, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if root.Header().ID != "1" {
		t.Errorf("root ID = %q, want 1", root.Header().ID)
	}
	found := condition.Children(root)[1]
	if found.Header().ID != "1--2" {
		t.Errorf("found ID = %q, want 1--2", found.Header().ID)
	}
	if got := condition.Children(found)[0].Header().ID; got != "1--2--1" {
		t.Errorf("nested ID = %q, want 1--2--1", got)
	}
}

func TestDecode_Flags(t *testing.T) {
	tests := []struct {
		value   string
		want    bool
		invalid bool
	}{
		{value: `true`, want: true},
		{value: `false`, want: false},
		{value: `"1"`, want: true},
		{value: `"0"`, want: false},
		{value: `1`, want: true},
		{value: `0`, want: false},
		{value: `null`, want: true},
		{value: `"maybe"`, invalid: true},
	}

	c := New(nil)
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			root, err := c.Decode([]byte(`{"type":"combine","aggregator":"all","value":` + tt.value + `,"conditions":[]}`))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if tt.invalid {
				if _, ok := root.(*condition.Invalid); !ok {
					t.Fatalf("Decode() = %T, want *condition.Invalid", root)
				}
				return
			}
			comb, ok := root.(*condition.Combine)
			if !ok {
				t.Fatalf("Decode() = %T, want *condition.Combine", root)
			}
			if comb.Value != tt.want {
				t.Errorf("Value = %v, want %v", comb.Value, tt.want)
			}
		})
	}
}

func TestDecode_MissingValueDefaultsToTrue(t *testing.T) {
	root, err := New(nil).Decode([]byte(`{"type":"combine","conditions":[]}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !condition.Validate(root, condition.Attrs{}) {
		t.Errorf("Validate() = false, want true (empty ALL, not negated)")
	}
}

func TestRegistry_PinnedAttribute(t *testing.T) {
	reg := DefaultRegistry()
	reg.Register("customer_group", Variant{Kind: condition.KindLeaf, Attribute: "group_id"})
	c := New(reg)

	root, err := c.Decode([]byte(`{"type":"customer_group","operator":"==","value":"3"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	leaf, ok := root.(*condition.Leaf)
	if !ok {
		t.Fatalf("Decode() = %T, want *condition.Leaf", root)
	}
	if leaf.Attribute != "group_id" {
		t.Errorf("Attribute = %q, want group_id", leaf.Attribute)
	}
	if !condition.Validate(root, condition.Attrs{"group_id": 3}) {
		t.Errorf("Validate() = false, want true")
	}

	out, err := c.Encode(root, FormatJSON)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := `{"type":"customer_group","attribute":"group_id","operator":"==","value":"3"}`
	if string(out) != want {
		t.Errorf("Encode() = %s, want %s", out, want)
	}

	// The default registry does not know the tag.
	plain, _ := New(nil).Decode(out)
	if _, ok := plain.(*condition.Invalid); !ok {
		t.Errorf("Decode() with default registry = %T, want *condition.Invalid", plain)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		data string
		want Format
	}{
		{data: `{"type":"leaf"}`, want: FormatJSON},
		{data: "  \n<condition/>", want: FormatXML},
		{data: `<?xml version="1.0"?><condition/>`, want: FormatXML},
		{data: ``, want: FormatJSON},
	}
	for _, tt := range tests {
		if got := Detect([]byte(tt.data)); got != tt.want {
			t.Errorf("Detect(%q) = %v, want %v", tt.data, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, "XML": FormatXML, "yml": FormatYAML, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseFormat("toml"); err == nil {
		t.Errorf("ParseFormat(toml) error = nil, want error")
	}
}

// Random trees and subjects for the round-trip property.

var (
	attrNames = []string{"color", "qty", "sku", "tags"}
	literals  = []any{nil, "red", "blue", "A", "", 0, 1, 2, 5, "3", "2.5", -1, true, false, []int{1, 2}, []float64{2.5, 5}}
	operators = []condition.Operator{
		condition.OpEq, condition.OpNeq, condition.OpGte,
		condition.OpLte, condition.OpGt, condition.OpLt,
	}
)

func randomLiteral(r *rand.Rand) any {
	if r.Intn(6) == 0 {
		n := r.Intn(3)
		list := make([]any, n)
		for i := range list {
			list[i] = []string{"red", "blue", "1", "2"}[r.Intn(4)]
		}
		return list
	}
	return literals[r.Intn(len(literals))]
}

func randomAggregator(r *rand.Rand) condition.Aggregator {
	if r.Intn(2) == 0 {
		return condition.All
	}
	return condition.Any
}

func randomChildren(r *rand.Rand, depth int) []condition.Node {
	n := r.Intn(4)
	out := make([]condition.Node, n)
	for i := range out {
		out[i] = randomTree(r, depth-1)
	}
	return out
}

func randomTree(r *rand.Rand, depth int) condition.Node {
	pick := r.Intn(4)
	if depth <= 0 {
		pick = 0
	}
	switch pick {
	case 0:
		return condition.NewLeaf(attrNames[r.Intn(len(attrNames))], operators[r.Intn(len(operators))], randomLiteral(r))
	case 1:
		return condition.NewCombine(randomAggregator(r), r.Intn(2) == 0, randomChildren(r, depth)...)
	case 2:
		return condition.NewExistential(randomAggregator(r), r.Intn(2) == 0, randomChildren(r, depth)...)
	default:
		return condition.NewAggregate("qty", operators[r.Intn(len(operators))], randomLiteral(r),
			randomAggregator(r), randomChildren(r, depth)...)
	}
}

func randomAttrs(r *rand.Rand) condition.Attrs {
	a := condition.Attrs{}
	for _, name := range attrNames {
		if r.Intn(3) > 0 {
			a[name] = randomLiteral(r)
		}
	}
	return a
}

func randomSubject(r *rand.Rand) cart {
	c := cart{Attrs: randomAttrs(r)}
	for i := r.Intn(4); i > 0; i-- {
		c.items = append(c.items, randomAttrs(r))
	}
	return c
}

func TestProperty_RoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	c := New(nil)

	for _, format := range []Format{FormatJSON, FormatXML, FormatYAML} {
		format := format
		properties.Property(format.String()+" round trip preserves evaluation", prop.ForAll(
			func(seed int64) bool {
				r := rand.New(rand.NewSource(seed))
				tree := randomTree(r, 3)

				data, err := c.Encode(tree, format)
				if err != nil {
					t.Logf("Encode() error = %v", err)
					return false
				}
				decoded, err := c.DecodeFormat(data, format)
				if err != nil {
					t.Logf("DecodeFormat() error = %v\n%s", err, data)
					return false
				}

				for i := 0; i < 5; i++ {
					s := randomSubject(r)
					if condition.Validate(tree, s) != condition.Validate(decoded, s) {
						t.Logf("mismatch for subject %v\n%s", s, data)
						return false
					}
				}
				return true
			},
			gen.Int64(),
		))
	}

	properties.TestingRun(t)
}
