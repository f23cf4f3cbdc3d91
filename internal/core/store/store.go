// Package store persists rule records.
package store

import (
	"context"
	"time"

	"github.com/solatis/ruletree/internal/types"
)

// RuleStore persists rule records. Implementations return
// types.ErrRuleNotFound for unknown IDs and types.ErrRuleExists on
// duplicate inserts.
type RuleStore interface {
	// Create inserts rec, setting both timestamps.
	Create(ctx context.Context, rec types.RuleRecord) (types.RuleRecord, error)
	// Update replaces everything but ID and CreatedAt, setting UpdatedAt.
	Update(ctx context.Context, rec types.RuleRecord) (types.RuleRecord, error)
	Get(ctx context.Context, id types.RuleID) (types.RuleRecord, error)
	Delete(ctx context.Context, id types.RuleID) error
	// List returns every rule ordered by ID.
	List(ctx context.Context) ([]types.RuleRecord, error)
	// ListActive returns the active rules of one kind ordered by ID.
	ListActive(ctx context.Context, kind types.RuleKind) ([]types.RuleRecord, error)
}

// now is truncated to microseconds, the precision postgres keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
