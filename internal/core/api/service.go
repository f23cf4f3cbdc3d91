// Package api provides the gRPC RuleService implementation.
package api

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/ruletree/internal/condition"
	"github.com/solatis/ruletree/internal/core/service"
	"github.com/solatis/ruletree/internal/subject"
	"github.com/solatis/ruletree/internal/types"
)

// Rules is the part of service.Service the transport needs.
type Rules interface {
	Validate(ctx context.Context, id types.RuleID, subj condition.Subject) (service.Result, error)
	ValidateKind(ctx context.Context, kind types.RuleKind, subj condition.Subject) ([]service.Result, error)
	GetRule(ctx context.Context, id types.RuleID) (types.RuleRecord, error)
	PutRule(ctx context.Context, id types.RuleID, in service.RuleInput) (types.RuleRecord, error)
}

// RuleServer implements RuleServiceServer.
// Thin translation layer between Struct messages and the rule service.
type RuleServer struct {
	rules Rules
}

var _ RuleServiceServer = (*RuleServer)(nil)

// NewRuleServer creates the gRPC handler.
func NewRuleServer(rules Rules) (*RuleServer, error) {
	if rules == nil {
		return nil, fmt.Errorf("rules cannot be nil")
	}
	return &RuleServer{rules: rules}, nil
}

// Validate evaluates one rule.
// Request: {"rule_id": string, "subject": object}
// Response: {"rule_id", "name", "matched", "diagnostics": [...]}
func (s *RuleServer) Validate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()
	id, err := requiredString(fields, "rule_id")
	if err != nil {
		return nil, err
	}
	subj, err := subjectOf(fields)
	if err != nil {
		return nil, err
	}

	res, err := s.rules.Validate(ctx, types.RuleID(id), subj)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(resultMap(res))
}

// ValidateKind evaluates every active rule of a kind.
// Request: {"kind": string, "subject": object}
// Response: {"results": [...]}
func (s *RuleServer) ValidateKind(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()
	kind, err := requiredString(fields, "kind")
	if err != nil {
		return nil, err
	}
	subj, err := subjectOf(fields)
	if err != nil {
		return nil, err
	}

	results, err := s.rules.ValidateKind(ctx, types.RuleKind(kind), subj)
	if err != nil {
		return nil, toStatus(err)
	}
	list := make([]any, len(results))
	for i, r := range results {
		list[i] = resultMap(r)
	}
	return newStruct(map[string]any{"results": list})
}

// GetRule returns a stored rule.
// Request: {"rule_id": string}
func (s *RuleServer) GetRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredString(req.AsMap(), "rule_id")
	if err != nil {
		return nil, err
	}
	rec, err := s.rules.GetRule(ctx, types.RuleID(id))
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(recordMap(rec))
}

// PutRule creates or replaces a rule. A missing rule_id creates a new rule.
// Request: {"rule_id"?, "name", "kind", "conditions": string, "active"?: bool}
func (s *RuleServer) PutRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()
	id, _ := fields["rule_id"].(string)
	name, _ := fields["name"].(string)
	kind, _ := fields["kind"].(string)
	conditions, _ := fields["conditions"].(string)
	active := true
	if v, ok := fields["active"].(bool); ok {
		active = v
	}

	rec, err := s.rules.PutRule(ctx, types.RuleID(id), service.RuleInput{
		Name:       name,
		Kind:       types.RuleKind(kind),
		Conditions: conditions,
		Active:     active,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(recordMap(rec))
}

func requiredString(fields map[string]any, key string) (string, error) {
	v, _ := fields[key].(string)
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return v, nil
}

// subjectOf reads the "subject" object. A missing subject is an empty one.
func subjectOf(fields map[string]any) (condition.Subject, error) {
	raw, ok := fields["subject"]
	if !ok || raw == nil {
		return subject.New(nil), nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "subject must be an object")
	}
	return subject.FromMap(m), nil
}

func resultMap(r service.Result) map[string]any {
	diags := make([]any, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		diags[i] = map[string]any{
			"severity":  d.Severity,
			"node_id":   d.NodeID,
			"attribute": d.Attribute,
			"message":   d.Message,
		}
	}
	return map[string]any{
		"rule_id":     string(r.RuleID),
		"name":        r.Name,
		"matched":     r.Matched,
		"diagnostics": diags,
	}
}

func recordMap(rec types.RuleRecord) map[string]any {
	return map[string]any{
		"rule_id":    string(rec.ID),
		"name":       rec.Name,
		"kind":       string(rec.Kind),
		"conditions": rec.Conditions,
		"active":     rec.Active,
		"created_at": rec.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": rec.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
