// internal/condition/coercion.go
package condition

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/solatis/ruletree/internal/types"
)

/*
 * Permissive type coercion for rule evaluation.
 *
 * Two target types exist: numeric (float64) for ordering operators and
 * subselect sums, and text (string) for equality fallback.
 *
 *   - Numeric: ints, uints, floats, json.Number, numeric strings (trimmed),
 *     and booleans (true=1, false=0). nil is 0 without a failure. Anything
 *     else coerces to 0 and returns ErrCoercionFailed so the caller can emit
 *     a coercion warning.
 *   - Text: never fails. nil is "", bools are "1"/"" like a form field
 *     would post them, numbers use the shortest float formatting.
 *
 * Coercion failure is a warning, never an evaluation error: a malformed
 * product attribute must not abort checkout.
 */

// CoerceNumeric converts value to float64. On failure it returns 0 and
// ErrCoercionFailed; the 0 is the value evaluation continues with.
func CoerceNumeric(value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, types.ErrCoercionFailed
		}
		return f, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, types.ErrCoercionFailed
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, types.ErrCoercionFailed
		}
		return f, nil
	default:
		return 0, types.ErrCoercionFailed
	}
}

// Loose equality compares numerically only when both sides are exact as
// float64: integers up to 2^53 and decimal literals of at most
// maxExactDigits significant digits. Longer codes compare as text.
const (
	maxExactInt    = 1 << 53
	maxExactDigits = 15
)

// IsExactNumeric reports whether value compares as a number under loose
// equality. nil and bools are not numeric here: absence compares as empty
// text. NaN, infinities and exponent forms compare as text.
func IsExactNumeric(value any) bool {
	switch v := value.(type) {
	case float64:
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
	case int:
		return int64(v) >= -maxExactInt && int64(v) <= maxExactInt
	case int64:
		return v >= -maxExactInt && v <= maxExactInt
	case uint:
		return uint64(v) <= maxExactInt
	case uint64:
		return v <= maxExactInt
	case int8, int16, int32, uint8, uint16, uint32:
		return true
	case json.Number:
		return isDecimalLiteral(string(v))
	case string:
		return isDecimalLiteral(strings.TrimSpace(v))
	default:
		return false
	}
}

// isDecimalLiteral reports whether s is a plain integer or decimal
// ("-12", "5.00", ".5") with at most maxExactDigits significant digits.
func isDecimalLiteral(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return false
	}
	for _, part := range []string{whole, frac} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	digits := strings.TrimLeft(whole+strings.TrimRight(frac, "0"), "0")
	return len(digits) <= maxExactDigits
}

// CoerceText converts value to its string form. Never fails.
func CoerceText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// AsList returns value as a slice when it is multi-valued.
// Recognizes []any, []string and the numeric slices JSON/YAML decoding and
// hand-built subjects produce.
func AsList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}
