// Package service manages stored rules and evaluates them against subjects.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/solatis/ruletree/internal/codec"
	"github.com/solatis/ruletree/internal/condition"
	"github.com/solatis/ruletree/internal/core/store"
	"github.com/solatis/ruletree/internal/rule"
	"github.com/solatis/ruletree/internal/subject"
	"github.com/solatis/ruletree/internal/types"
)

// Options configures a Service. Zero limits fall back to the types defaults.
type Options struct {
	MaxItems int
	MaxCost  int
	CacheTTL time.Duration
	Codec    *codec.Codec
	Derived  *subject.Derived
	Logger   *slog.Logger
}

// RuleInput is the caller-controlled part of a rule record.
type RuleInput struct {
	Name       string         `json:"name"`
	Kind       types.RuleKind `json:"kind"`
	Conditions string         `json:"conditions"`
	Active     bool           `json:"active"`
}

// Diagnostic is the transport-friendly form of a condition.Diagnostic.
type Diagnostic struct {
	Severity  string `json:"severity"`
	NodeID    string `json:"node_id,omitempty"`
	Attribute string `json:"attribute,omitempty"`
	Message   string `json:"message"`
}

// Result is the outcome of evaluating one rule against one subject.
type Result struct {
	RuleID      types.RuleID `json:"rule_id"`
	Name        string       `json:"name"`
	Matched     bool         `json:"matched"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Service is safe for concurrent use.
type Service struct {
	store    store.RuleStore
	codec    *codec.Codec
	derived  *subject.Derived
	logger   *slog.Logger
	reporter condition.Reporter
	cache    *ruleCache
	maxItems int
	maxCost  int
}

// New returns a service over st.
func New(st store.RuleStore, opts Options) *Service {
	if opts.MaxItems <= 0 {
		opts.MaxItems = types.DefaultMaxItems
	}
	if opts.MaxCost <= 0 {
		opts.MaxCost = types.DefaultMaxCost
	}
	if opts.Codec == nil {
		opts.Codec = codec.New(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:    st,
		codec:    opts.Codec,
		derived:  opts.Derived,
		logger:   opts.Logger,
		reporter: condition.NewSlogReporter(opts.Logger),
		cache:    newRuleCache(opts.CacheTTL),
		maxItems: opts.MaxItems,
		maxCost:  opts.MaxCost,
	}
}

// CreateRule checks the tree, assigns a new ID and stores the rule.
func (s *Service) CreateRule(ctx context.Context, in RuleInput) (types.RuleRecord, error) {
	return s.create(ctx, types.NewRuleID(), in)
}

func (s *Service) create(ctx context.Context, id types.RuleID, in RuleInput) (types.RuleRecord, error) {
	rec, err := s.prepare(in)
	if err != nil {
		return types.RuleRecord{}, err
	}
	rec.ID = id
	created, err := s.store.Create(ctx, rec)
	if err != nil {
		return types.RuleRecord{}, err
	}
	s.logger.InfoContext(ctx, "rule created",
		slog.String("rule_id", string(created.ID)),
		slog.String("kind", string(created.Kind)),
	)
	return created, nil
}

// UpdateRule rechecks the tree and replaces the stored rule.
func (s *Service) UpdateRule(ctx context.Context, id types.RuleID, in RuleInput) (types.RuleRecord, error) {
	rec, err := s.prepare(in)
	if err != nil {
		return types.RuleRecord{}, err
	}
	rec.ID = id
	updated, err := s.store.Update(ctx, rec)
	s.cache.invalidate(id)
	if err != nil {
		return types.RuleRecord{}, err
	}
	s.logger.InfoContext(ctx, "rule updated", slog.String("rule_id", string(id)))
	return updated, nil
}

// PutRule updates the rule with id, creating it when it does not exist.
// An empty id creates a rule with a new ID.
func (s *Service) PutRule(ctx context.Context, id types.RuleID, in RuleInput) (types.RuleRecord, error) {
	if id == "" {
		return s.CreateRule(ctx, in)
	}
	if _, err := types.ParseRuleID(string(id)); err != nil {
		return types.RuleRecord{}, fmt.Errorf("%w: rule id %q: %v", types.ErrInvalidRule, id, err)
	}
	rec, err := s.UpdateRule(ctx, id, in)
	if errors.Is(err, types.ErrRuleNotFound) {
		return s.create(ctx, id, in)
	}
	return rec, err
}

// GetRule returns the stored rule.
func (s *Service) GetRule(ctx context.Context, id types.RuleID) (types.RuleRecord, error) {
	return s.store.Get(ctx, id)
}

// DeleteRule removes the rule and its cached tree.
func (s *Service) DeleteRule(ctx context.Context, id types.RuleID) error {
	err := s.store.Delete(ctx, id)
	s.cache.invalidate(id)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "rule deleted", slog.String("rule_id", string(id)))
	return nil
}

// ListRules returns every stored rule.
func (s *Service) ListRules(ctx context.Context) ([]types.RuleRecord, error) {
	return s.store.List(ctx)
}

// ImportLegacy converts a legacy XML tree to JSON and creates a rule from it.
func (s *Service) ImportLegacy(ctx context.Context, in RuleInput) (types.RuleRecord, error) {
	converted, err := s.codec.Convert([]byte(in.Conditions), codec.FormatXML, codec.FormatJSON)
	if err != nil {
		return types.RuleRecord{}, err
	}
	in.Conditions = string(converted)
	return s.CreateRule(ctx, in)
}

// Validate evaluates one rule against subj. Inactive rules are evaluated too;
// activity only scopes ValidateKind.
func (s *Service) Validate(ctx context.Context, id types.RuleID, subj condition.Subject) (Result, error) {
	if err := s.checkItems(subj); err != nil {
		return Result{}, err
	}
	r, err := s.rule(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return s.evaluate(ctx, r, s.derived.Wrap(subj)), nil
}

// ValidateKind evaluates every active rule of kind against subj, in ID order.
func (s *Service) ValidateKind(ctx context.Context, kind types.RuleKind, subj condition.Subject) ([]Result, error) {
	if _, err := types.ParseRuleKind(string(kind)); err != nil {
		return nil, err
	}
	if err := s.checkItems(subj); err != nil {
		return nil, err
	}
	gen := s.cache.generation()
	recs, err := s.store.ListActive(ctx, kind)
	if err != nil {
		return nil, err
	}

	wrapped := s.derived.Wrap(subj)
	results := make([]Result, 0, len(recs))
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, ok := s.cache.getFresh(rec)
		if !ok {
			r = rule.New(rec, s.codec, s.reporter)
			s.cache.put(gen, rec, r)
		}
		results = append(results, s.evaluate(ctx, r, wrapped))
	}
	return results, nil
}

// rule returns the materialized rule for id, from cache when possible.
func (s *Service) rule(ctx context.Context, id types.RuleID) (*rule.Rule, error) {
	if r, ok := s.cache.get(id); ok {
		return r, nil
	}
	gen := s.cache.generation()
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r := rule.New(rec, s.codec, s.reporter)
	s.cache.put(gen, rec, r)
	return r, nil
}

func (s *Service) evaluate(ctx context.Context, r *rule.Rule, subj condition.Subject) Result {
	collector := &condition.Collector{}
	matched := r.ValidateWith(subj, condition.Tee{collector, s.reporter})

	diags := collector.Diagnostics()
	res := Result{RuleID: r.ID, Name: r.Name, Matched: matched}
	for _, d := range diags {
		res.Diagnostics = append(res.Diagnostics, ToDiagnostic(d))
	}
	s.logger.DebugContext(ctx, "rule evaluated",
		slog.String("rule_id", string(r.ID)),
		slog.Bool("matched", matched),
		slog.Int("diagnostics", len(diags)),
	)
	return res
}

// ToDiagnostic converts d to its transport form.
func ToDiagnostic(d condition.Diagnostic) Diagnostic {
	out := Diagnostic{
		Severity:  d.Severity.String(),
		NodeID:    d.NodeID,
		Attribute: d.Attribute,
	}
	if d.Err != nil {
		out.Message = d.Err.Error()
	}
	return out
}

// prepare validates in and canonicalizes its tree to JSON.
func (s *Service) prepare(in RuleInput) (types.RuleRecord, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return types.RuleRecord{}, fmt.Errorf("%w: name is required", types.ErrInvalidRule)
	}
	kind, err := types.ParseRuleKind(string(in.Kind))
	if err != nil {
		return types.RuleRecord{}, err
	}

	conditions, err := s.canonicalize(in.Conditions)
	if err != nil {
		return types.RuleRecord{}, err
	}

	return types.RuleRecord{
		Name:       name,
		Kind:       kind,
		Conditions: conditions,
		Active:     in.Active,
	}, nil
}

// canonicalize decodes text in either format, rejects configuration errors
// and trees over the cost limit, and re-encodes as JSON.
func (s *Service) canonicalize(text string) (string, error) {
	root, err := s.codec.Decode([]byte(text))
	if err != nil {
		return "", err
	}
	if err := condition.Check(root); err != nil {
		return "", err
	}
	if cost := condition.EstimateCost(root, types.DefaultCostItems); cost > s.maxCost {
		return "", fmt.Errorf("%w: estimated cost %d, limit %d", types.ErrTreeTooCostly, cost, s.maxCost)
	}
	out, err := s.codec.Encode(root, codec.FormatJSON)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s *Service) checkItems(subj condition.Subject) error {
	src, ok := subj.(condition.ItemSource)
	if !ok {
		return nil
	}
	if n := len(src.Items()); n > s.maxItems {
		return fmt.Errorf("%w: %d items, limit %d", types.ErrTooManyItems, n, s.maxItems)
	}
	return nil
}
