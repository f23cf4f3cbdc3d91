// internal/condition/operators.go
package condition

import (
	"errors"

	"github.com/solatis/ruletree/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Operators:
 *   - ==, !=: loose equality. nil equals "", numeric strings equal numbers,
 *     lists use membership (see compareEqual).
 *   - >=, <=, >, <: numeric only. Both sides are coerced; failures become 0.
 *
 * Compare always produces a boolean. The returned error is informational:
 * ErrCoercionFailed means a side was replaced by 0 (a coercion warning),
 * ErrInvalidOperator means the operator is unknown and the result is false
 * (a configuration error).
 */

// Compare applies op to (actual, expected).
func Compare(op Operator, actual, expected any) (bool, error) {
	switch op {
	case OpEq:
		return compareEqual(actual, expected), nil
	case OpNeq:
		return !compareEqual(actual, expected), nil
	case OpGte, OpLte, OpGt, OpLt:
		a, errA := CoerceNumeric(actual)
		b, errB := CoerceNumeric(expected)
		return compareOrdered(op, a, b), errors.Join(errA, errB)
	default:
		return false, types.ErrInvalidOperator
	}
}

// compareOrdered applies an ordering operator to two numbers.
func compareOrdered(op Operator, a, b float64) bool {
	switch op {
	case OpGte:
		return a >= b
	case OpLte:
		return a <= b
	case OpGt:
		return a > b
	case OpLt:
		return a < b
	default:
		return false
	}
}

// compareEqual performs loose equality with list awareness:
//   - list actual, scalar expected: expected is an element of actual
//   - scalar actual, list expected: actual is one of expected
//   - list vs list: the lists share at least one element
//   - scalars: scalarEqual
func compareEqual(actual, expected any) bool {
	al, aIsList := AsList(actual)
	el, eIsList := AsList(expected)

	switch {
	case aIsList && eIsList:
		return intersects(al, el)
	case aIsList:
		return contains(al, expected)
	case eIsList:
		return contains(el, actual)
	default:
		return scalarEqual(actual, expected)
	}
}

// scalarEqual compares numerically when both sides are cleanly numeric,
// otherwise by text form. Absence (nil) reads as "".
func scalarEqual(a, b any) bool {
	if IsExactNumeric(a) && IsExactNumeric(b) {
		na, _ := CoerceNumeric(a)
		nb, _ := CoerceNumeric(b)
		return na == nb
	}
	return CoerceText(a) == CoerceText(b)
}

func contains(set []any, v any) bool {
	for _, elem := range set {
		if scalarEqual(elem, v) {
			return true
		}
	}
	return false
}

func intersects(a, b []any) bool {
	for _, v := range b {
		if contains(a, v) {
			return true
		}
	}
	return false
}
