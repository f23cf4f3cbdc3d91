package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/solatis/ruletree/internal/types"
)

// MemoryStore keeps rules in process memory. Used by tests and the offline CLI.
type MemoryStore struct {
	mu    sync.RWMutex
	rules map[types.RuleID]types.RuleRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rules: make(map[types.RuleID]types.RuleRecord)}
}

func (s *MemoryStore) Create(_ context.Context, rec types.RuleRecord) (types.RuleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[rec.ID]; ok {
		return types.RuleRecord{}, fmt.Errorf("%w: %s", types.ErrRuleExists, rec.ID)
	}
	rec.CreatedAt = now()
	rec.UpdatedAt = rec.CreatedAt
	s.rules[rec.ID] = rec
	return rec, nil
}

func (s *MemoryStore) Update(_ context.Context, rec types.RuleRecord) (types.RuleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.rules[rec.ID]
	if !ok {
		return types.RuleRecord{}, fmt.Errorf("%w: %s", types.ErrRuleNotFound, rec.ID)
	}
	rec.CreatedAt = old.CreatedAt
	rec.UpdatedAt = now()
	s.rules[rec.ID] = rec
	return rec, nil
}

func (s *MemoryStore) Get(_ context.Context, id types.RuleID) (types.RuleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rules[id]
	if !ok {
		return types.RuleRecord{}, fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	return rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, id types.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	delete(s.rules, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]types.RuleRecord, error) {
	return s.filter(func(types.RuleRecord) bool { return true }), nil
}

func (s *MemoryStore) ListActive(_ context.Context, kind types.RuleKind) ([]types.RuleRecord, error) {
	return s.filter(func(r types.RuleRecord) bool { return r.Active && r.Kind == kind }), nil
}

func (s *MemoryStore) filter(keep func(types.RuleRecord) bool) []types.RuleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.RuleRecord, 0, len(s.rules))
	for _, r := range s.rules {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
