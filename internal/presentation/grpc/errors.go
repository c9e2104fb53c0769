package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
)

// toStatus maps a use-case error onto a gRPC status. Contention is checked
// before context errors because a lock timeout wraps both.
func toStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrConfiguration):
		code = codes.InvalidArgument
	case errors.Is(err, model.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, model.ErrOverpayment), errors.Is(err, valueobject.ErrInvalidStatusTransition):
		code = codes.FailedPrecondition
	case errors.Is(err, model.ErrConcurrentModification):
		code = codes.Aborted
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	return status.Error(code, err.Error())
}
