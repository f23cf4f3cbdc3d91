// internal/subject/fieldpath.go
package subject

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/solatis/ruletree/internal/types"
)

/*
 * Attribute field paths.
 *
 * An attribute code is either a plain key ("color") or a dotted path through
 * nested maps and lists ("address.country", "items.0.sku"). A "*" segment
 * fans out over every element of a list (or every value of a map, in sorted
 * key order) and the resolved values are collected into a []any, which the
 * condition engine treats as a multi-valued attribute.
 *
 * Limits: MaxPathDepth segments and MaxNestedWildcards wildcards per path.
 */

// Segment is one step of a field path.
type Segment struct {
	Key      string
	Index    int
	IsIndex  bool
	Wildcard bool
}

func (s Segment) String() string {
	switch {
	case s.Wildcard:
		return "*"
	case s.IsIndex:
		return strconv.Itoa(s.Index)
	default:
		return s.Key
	}
}

// Path is a parsed field path.
type Path []Segment

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Wildcards returns the number of wildcard segments in p.
func (p Path) Wildcards() int {
	n := 0
	for _, s := range p {
		if s.Wildcard {
			n++
		}
	}
	return n
}

// ParsePath splits a dotted attribute code into segments. Non-negative
// integers become index segments and "*" becomes a wildcard.
func ParsePath(code string) (Path, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty path", types.ErrFieldNotFound)
	}
	parts := strings.Split(code, ".")
	if len(parts) > types.MaxPathDepth {
		return nil, types.ErrPathTooDeep
	}

	path := make(Path, 0, len(parts))
	for _, part := range parts {
		switch {
		case part == "":
			return nil, fmt.Errorf("%w: empty segment in %q", types.ErrFieldNotFound, code)
		case part == "*":
			path = append(path, Segment{Wildcard: true})
		default:
			if idx, err := strconv.Atoi(part); err == nil && idx >= 0 {
				path = append(path, Segment{Index: idx, IsIndex: true})
			} else {
				path = append(path, Segment{Key: part})
			}
		}
	}
	if path.Wildcards() > types.MaxNestedWildcards {
		return nil, types.ErrTooManyWildcards
	}
	return path, nil
}

var pathCache sync.Map // string -> Path

// cachedPath parses each distinct code once per process.
func cachedPath(code string) (Path, error) {
	if p, ok := pathCache.Load(code); ok {
		return p.(Path), nil
	}
	p, err := ParsePath(code)
	if err != nil {
		return nil, err
	}
	pathCache.Store(code, p)
	return p, nil
}

// Resolve walks data along path. Wildcard segments collect every match into
// a flat []any; a wildcard that matches nothing yields ErrFieldNotFound.
func Resolve(path Path, data any) (any, error) {
	if len(path) > types.MaxPathDepth {
		return nil, types.ErrPathTooDeep
	}
	if path.Wildcards() > types.MaxNestedWildcards {
		return nil, types.ErrTooManyWildcards
	}
	if path.Wildcards() == 0 {
		return resolveOne(path, data)
	}

	var out []any
	collect(path, data, &out)
	if len(out) == 0 {
		return nil, types.ErrFieldNotFound
	}
	return out, nil
}

// resolveOne follows a wildcard-free path.
func resolveOne(path Path, current any) (any, error) {
	for _, seg := range path {
		switch v := current.(type) {
		case map[string]any:
			if seg.IsIndex {
				val, ok := v[strconv.Itoa(seg.Index)]
				if !ok {
					return nil, types.ErrFieldNotFound
				}
				current = val
				continue
			}
			val, ok := v[seg.Key]
			if !ok {
				return nil, types.ErrFieldNotFound
			}
			current = val

		case []any:
			if !seg.IsIndex || seg.Index < 0 || seg.Index >= len(v) {
				return nil, types.ErrFieldNotFound
			}
			current = v[seg.Index]

		default:
			// nil or scalar with path remaining
			return nil, types.ErrFieldNotFound
		}
	}
	return current, nil
}

// collect appends every value reachable through path to out, in document
// order (sorted keys for maps).
func collect(path Path, current any, out *[]any) {
	if len(path) == 0 {
		if list, ok := current.([]any); ok {
			*out = append(*out, list...)
			return
		}
		*out = append(*out, current)
		return
	}

	seg, rest := path[0], path[1:]
	if !seg.Wildcard {
		next, err := resolveOne(Path{seg}, current)
		if err == nil {
			collect(rest, next, out)
		}
		return
	}

	switch v := current.(type) {
	case []any:
		for _, elem := range v {
			collect(rest, elem, out)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collect(rest, v[k], out)
		}
	}
}
