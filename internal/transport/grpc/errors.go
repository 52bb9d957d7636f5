package grpc

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"memberbook/backend/internal/domain"
	"memberbook/backend/internal/service"
	"memberbook/backend/internal/service/bookings"
	"memberbook/backend/internal/store"
)

// statusError translates a service error into a gRPC status. Unclassified errors are
// logged and reported as Internal without detail.
func statusError(log *slog.Logger, err error, attrs ...any) error {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", append(attrs, slog.Any("err", err))...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, domain.ErrInvalidTemplate),
		errors.Is(err, domain.ErrInvalidTimeRange),
		errors.Is(err, domain.ErrInvalidSlot):
		log.Info("rejected request", append(attrs, slog.Any("err", err))...)
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, bookings.ErrForbidden):
		log.Warn("forbidden", attrs...)
		return status.Error(codes.PermissionDenied, "You are not a party to this booking.")
	case errors.Is(err, bookings.ErrSlotUnavailable):
		return status.Error(codes.Aborted, "That slot was just taken. Pick a different slot.")
	case errors.Is(err, store.ErrIdempotencyConflict):
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different booking. Try again.")
	case errors.Is(err, bookings.ErrHoldExpired):
		return status.Error(codes.FailedPrecondition, "Your hold on this slot expired. Pick the slot again.")
	case errors.Is(err, bookings.ErrPaymentFailed):
		log.Info("payment failed", append(attrs, slog.Any("err", err))...)
		return status.Error(codes.FailedPrecondition, "Payment failed. The slot has been released.")
	case errors.Is(err, domain.ErrIllegalTransition):
		return status.Error(codes.FailedPrecondition, "The booking can no longer change to that state.")
	case errors.Is(err, service.ErrStoreUnavailable):
		log.Error("store unavailable", append(attrs, slog.Any("err", err))...)
		return status.Error(codes.Unavailable, "The booking service is busy. Try again.")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	}
	log.Error("request failed", append(attrs, slog.Any("err", err))...)
	return status.Error(codes.Internal, "internal error")
}
