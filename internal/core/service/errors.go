package service

import (
	"errors"

	"github.com/solatis/ruletree/internal/types"
)

// invalidInput lists the errors a caller can fix by changing the request.
var invalidInput = []error{
	types.ErrMalformedTree,
	types.ErrUnknownNodeType,
	types.ErrEmptyFilter,
	types.ErrInvalidOperator,
	types.ErrInvalidAggregator,
	types.ErrMissingAttribute,
	types.ErrInvalidRule,
	types.ErrInvalidRuleKind,
	types.ErrTooManyItems,
	types.ErrTreeTooCostly,
}

// IsInvalidInput reports whether err was caused by the request content.
func IsInvalidInput(err error) bool {
	for _, target := range invalidInput {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
