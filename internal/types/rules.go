// internal/types/rules.go
package types

import (
	"fmt"
	"time"
)

/*
 * Persisted rule records.
 *
 * RuleRecord is the storage shape of a rule: metadata plus the serialized
 * condition tree. Materialization into an evaluable tree happens in
 * internal/rule; stores and transports only move the text around.
 *
 * Rule kinds name the consumer of a rule. The consumer decides what a
 * malformed tree means (see rule.PolicyFor).
 */

// RuleKind identifies the consuming module of a rule.
type RuleKind string

const (
	KindDiscount           RuleKind = "discount"
	KindPaymentRestriction RuleKind = "payment_restriction"
	KindSegment            RuleKind = "segment"
)

// AllRuleKinds lists every supported rule kind.
var AllRuleKinds = []RuleKind{KindDiscount, KindPaymentRestriction, KindSegment}

// ParseRuleKind validates a rule kind string.
func ParseRuleKind(s string) (RuleKind, error) {
	for _, k := range AllRuleKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRuleKind, s)
}

// RuleRecord is a stored rule with its serialized condition tree.
type RuleRecord struct {
	ID         RuleID    `db:"rule_id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Kind       RuleKind  `db:"kind" json:"kind"`
	Conditions string    `db:"conditions" json:"conditions"` // JSON condition tree
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
