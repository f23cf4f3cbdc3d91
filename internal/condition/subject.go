package condition

// Subject is anything a condition tree can be evaluated against: a cart, a
// product, a customer, or one line item of a cart.
type Subject interface {
	// Attribute resolves an attribute code. ok=false means absent.
	Attribute(code string) (value any, ok bool)
}

// ItemSource is implemented by subjects that expose an ordered item
// collection for found/subselect conditions.
type ItemSource interface {
	Items() []Subject
}

// Attrs is a flat map subject without items, handy for products and tests.
type Attrs map[string]any

// Attribute implements Subject.
func (a Attrs) Attribute(code string) (any, bool) {
	v, ok := a[code]
	return v, ok
}

// attributeOf resolves code on s. A nil subject has no attributes.
func attributeOf(s Subject, code string) (any, bool) {
	if s == nil {
		return nil, false
	}
	return s.Attribute(code)
}

// itemsOf returns the item collection of s, or nil when s has none.
func itemsOf(s Subject) []Subject {
	if src, ok := s.(ItemSource); ok {
		return src.Items()
	}
	return nil
}
