package types

import "errors"

// Sentinel errors for ruletree operations.
var (
	// ErrUnknownNodeType indicates a type tag that no registry entry resolves.
	ErrUnknownNodeType = errors.New("unknown condition type")

	// ErrEmptyFilter indicates a subselect node without filter conditions.
	ErrEmptyFilter = errors.New("subselect condition requires at least one filter condition")

	// ErrInvalidOperator indicates an operator outside ==, !=, >=, <=, >, <.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrInvalidAggregator indicates an aggregator other than all/any.
	ErrInvalidAggregator = errors.New("invalid aggregator")

	// ErrMissingAttribute indicates a leaf or subselect node without an attribute code.
	ErrMissingAttribute = errors.New("condition attribute is required")

	// ErrMalformedTree indicates persisted condition text that cannot be parsed.
	ErrMalformedTree = errors.New("malformed condition tree")

	// ErrCoercionFailed indicates a value could not be coerced to the operator's type.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrFieldNotFound indicates an attribute path could not be resolved.
	ErrFieldNotFound = errors.New("field not found")

	// ErrPathTooDeep indicates an attribute path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("attribute path exceeds maximum depth")

	// ErrTooManyWildcards indicates an attribute path exceeds MaxNestedWildcards.
	ErrTooManyWildcards = errors.New("attribute path has too many wildcards")

	// ErrRuleNotFound indicates no rule exists with the requested ID.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrRuleExists indicates a rule ID collision on insert.
	ErrRuleExists = errors.New("rule already exists")

	// ErrInvalidRule indicates rule metadata that fails validation.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrInvalidRuleKind indicates an unknown rule kind.
	ErrInvalidRuleKind = errors.New("invalid rule kind")

	// ErrTooManyItems indicates a subject carries more items than the configured limit.
	ErrTooManyItems = errors.New("subject exceeds maximum item count")

	// ErrTreeTooCostly indicates a condition tree whose estimated cost exceeds the configured limit.
	ErrTreeTooCostly = errors.New("condition tree exceeds maximum evaluation cost")
)
