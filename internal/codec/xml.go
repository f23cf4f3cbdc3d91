// internal/codec/xml.go
package codec

import (
	"encoding/xml"
	"strings"

	"github.com/solatis/ruletree/internal/condition"
)

/*
 * Legacy XML representation.
 *
 *   <condition>
 *     <type>combine</type>
 *     <aggregator>all</aggregator>
 *     <value>1</value>
 *     <conditions>
 *       <condition>
 *         <type>leaf</type>
 *         <attribute>category_ids</attribute>
 *         <operator>()</operator>
 *         <value list="true"><item>12</item><item>15</item></value>
 *       </condition>
 *     </conditions>
 *   </condition>
 *
 * Every scalar is text. Combine and found flags are written as "1"/"0".
 * Leaf and subselect literals are written in the text form equality
 * compares them by, so true is "1" and false is empty. List values carry
 * list="true" so an empty list survives. A missing <value> decodes as nil.
 * Placeholder fields of found nodes are written as empty elements.
 */

type xmlNode struct {
	XMLName    xml.Name       `xml:"condition"`
	Type       string         `xml:"type"`
	Attribute  *string        `xml:"attribute"`
	Operator   *string        `xml:"operator"`
	Value      *xmlValue      `xml:"value"`
	Aggregator *string        `xml:"aggregator"`
	Conditions *xmlConditions `xml:"conditions"`
}

type xmlValue struct {
	List  bool     `xml:"list,attr,omitempty"`
	Text  string   `xml:",chardata"`
	Items []string `xml:"item"`
}

type xmlConditions struct {
	Items []xmlNode `xml:"condition"`
}

func toXMLNode(p Portable) xmlNode {
	n := xmlNode{Type: p.Type}
	for _, f := range p.fields() {
		switch f.key {
		case "attribute":
			n.Attribute = strPtr(p.Attribute)
		case "operator":
			n.Operator = strPtr(p.Operator)
		case "aggregator":
			n.Aggregator = strPtr(p.Aggregator)
		case "value":
			literal := p.Kind == condition.KindLeaf || p.Kind == condition.KindAggregate
			n.Value = toXMLValue(f.value, literal)
		case "conditions":
			conds := &xmlConditions{Items: make([]xmlNode, len(p.Conditions))}
			for i, c := range p.Conditions {
				conds.Items[i] = toXMLNode(c)
			}
			n.Conditions = conds
		}
	}
	return n
}

func toXMLValue(v any, literal bool) *xmlValue {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		if literal {
			return &xmlValue{Text: condition.CoerceText(t)}
		}
		if t {
			return &xmlValue{Text: "1"}
		}
		return &xmlValue{Text: "0"}
	}
	if list, ok := condition.AsList(v); ok {
		items := make([]string, len(list))
		for i, e := range list {
			items[i] = condition.CoerceText(e)
		}
		return &xmlValue{List: true, Items: items}
	}
	return &xmlValue{Text: condition.CoerceText(v)}
}

func fromXMLNode(n xmlNode) Portable {
	p := Portable{Type: strings.TrimSpace(n.Type)}
	if n.Attribute != nil {
		p.Attribute = strings.TrimSpace(*n.Attribute)
	}
	if n.Operator != nil {
		p.Operator = strings.TrimSpace(*n.Operator)
	}
	if n.Aggregator != nil {
		p.Aggregator = strings.TrimSpace(*n.Aggregator)
	}
	if n.Value != nil {
		if n.Value.List || len(n.Value.Items) > 0 {
			list := make([]any, len(n.Value.Items))
			for i, item := range n.Value.Items {
				list[i] = item
			}
			p.Value = list
		} else {
			p.Value = n.Value.Text
		}
	}
	if n.Conditions != nil {
		p.Conditions = make([]Portable, len(n.Conditions.Items))
		for i, c := range n.Conditions.Items {
			p.Conditions[i] = fromXMLNode(c)
		}
	}
	return p
}

func strPtr(s string) *string { return &s }
