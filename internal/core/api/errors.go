package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/ruletree/internal/core/service"
	"github.com/solatis/ruletree/internal/types"
)

// toStatus maps service errors onto gRPC codes.
// Unknown rules map to NOT_FOUND, ID collisions to ALREADY_EXISTS.
// Request content errors map to INVALID_ARGUMENT.
// Context timeouts map to DEADLINE_EXCEEDED.
// Everything else is a storage failure and maps to UNAVAILABLE.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrRuleNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrRuleExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case service.IsInvalidInput(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
