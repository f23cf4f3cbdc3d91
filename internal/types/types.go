// Package types provides domain models shared across ruletree components.
//
// Kept free of engine and storage imports so that condition, codec, store and
// transport packages can all depend on it. ID helpers in ids.go pull in uuid.
package types

// RuleID represents a UUIDv7 rule identifier.
type RuleID string

// Resource limits for attribute path resolution.
const (
	// MaxPathDepth bounds recursive path resolution into nested subject data.
	MaxPathDepth = 16

	// MaxNestedWildcards bounds wildcard fan-out ($.items.*.options.*).
	MaxNestedWildcards = 2
)

// Service defaults, overridable through configuration.
const (
	// DefaultMaxItems caps item collections accepted per evaluation request.
	DefaultMaxItems = 10000

	// DefaultMaxCost caps the estimated evaluation cost of a stored tree.
	DefaultMaxCost = 5_000_000

	// DefaultCostItems is the item count assumed when estimating tree cost at save time.
	DefaultCostItems = 100
)
