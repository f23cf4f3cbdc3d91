package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/solatis/ruletree/internal/core/db"
	"github.com/solatis/ruletree/internal/types"
)

// SQLStore persists rules through the named queries in internal/core/db.
type SQLStore struct {
	queries *db.Queries
}

// NewSQLStore returns a store over q. The schema must be migrated.
func NewSQLStore(q *db.Queries) *SQLStore {
	return &SQLStore{queries: q}
}

func (s *SQLStore) Create(ctx context.Context, rec types.RuleRecord) (types.RuleRecord, error) {
	if _, err := s.Get(ctx, rec.ID); err == nil {
		return types.RuleRecord{}, fmt.Errorf("%w: %s", types.ErrRuleExists, rec.ID)
	} else if !errors.Is(err, types.ErrRuleNotFound) {
		return types.RuleRecord{}, err
	}

	rec.CreatedAt = now()
	rec.UpdatedAt = rec.CreatedAt
	_, err := s.queries.Exec(ctx, "insert-rule",
		rec.ID, rec.Name, rec.Kind, rec.Conditions, rec.Active, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return types.RuleRecord{}, fmt.Errorf("insert rule %s: %w", rec.ID, err)
	}
	return rec, nil
}

func (s *SQLStore) Update(ctx context.Context, rec types.RuleRecord) (types.RuleRecord, error) {
	rec.UpdatedAt = now()
	res, err := s.queries.Exec(ctx, "update-rule",
		rec.Name, rec.Kind, rec.Conditions, rec.Active, rec.UpdatedAt, rec.ID)
	if err != nil {
		return types.RuleRecord{}, fmt.Errorf("update rule %s: %w", rec.ID, err)
	}
	if err := requireRow(res, rec.ID); err != nil {
		return types.RuleRecord{}, err
	}
	return s.Get(ctx, rec.ID)
}

func (s *SQLStore) Get(ctx context.Context, id types.RuleID) (types.RuleRecord, error) {
	var rec types.RuleRecord
	if err := s.queries.Get(ctx, "get-rule", &rec, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RuleRecord{}, fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
		}
		return types.RuleRecord{}, fmt.Errorf("get rule %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLStore) Delete(ctx context.Context, id types.RuleID) error {
	res, err := s.queries.Exec(ctx, "delete-rule", id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *SQLStore) List(ctx context.Context) ([]types.RuleRecord, error) {
	rules := []types.RuleRecord{}
	if err := s.queries.Select(ctx, "list-rules", &rules); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

func (s *SQLStore) ListActive(ctx context.Context, kind types.RuleKind) ([]types.RuleRecord, error) {
	rules := []types.RuleRecord{}
	if err := s.queries.Select(ctx, "list-active-rules-by-kind", &rules, kind, true); err != nil {
		return nil, fmt.Errorf("list %s rules: %w", kind, err)
	}
	return rules, nil
}

func requireRow(res sql.Result, id types.RuleID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	return nil
}
