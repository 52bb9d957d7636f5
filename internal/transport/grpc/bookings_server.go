package grpc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	bookingsv1 "memberbook/backend/internal/api/bookingsv1"
	"memberbook/backend/internal/auth"
	"memberbook/backend/internal/domain"
	"memberbook/backend/internal/service/bookings"
)

type BookingsServer struct {
	bookingsv1.UnimplementedBookingsServiceServer

	availability availabilityService
	bookings     bookingService
	log          *slog.Logger
}

type availabilityService interface {
	PutTemplate(ctx context.Context, tpl domain.AvailabilityTemplate) (domain.AvailabilityTemplate, error)
	GetTemplate(ctx context.Context, providerID string) (domain.AvailabilityTemplate, error)
	ArchiveTemplate(ctx context.Context, providerID string) (domain.AvailabilityTemplate, error)
	ListAvailability(ctx context.Context, w domain.QueryWindow) ([]domain.TimeSlot, error)
}

type bookingService interface {
	RequestHold(ctx context.Context, in bookings.HoldRequest) (domain.Booking, error)
	InitiatePayment(ctx context.Context, id uuid.UUID, actorID string) (bookings.PaymentSession, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID, actorID, paymentRef string) (domain.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID, actorID string) (domain.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID, actorID string) (domain.Booking, error)
	ListBookings(ctx context.Context, providerID, actorID string, from, to time.Time) ([]domain.Booking, error)
	History(ctx context.Context, id uuid.UUID, actorID string) ([]domain.BookingTransition, error)
}

func NewBookingsServer(availability availabilityService, bookings bookingService, log *slog.Logger) *BookingsServer {
	if log == nil {
		log = slog.Default()
	}
	return &BookingsServer{
		availability: availability,
		bookings:     bookings,
		log:          log.With(slog.String("component", "grpc.bookings")),
	}
}

func principal(ctx context.Context) (string, error) {
	id, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "valid credentials are required")
	}
	return id, nil
}

// ownTemplate checks that the caller manages providerID's template.
func ownTemplate(ctx context.Context, providerID string) error {
	caller, err := principal(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(providerID) == "" {
		return status.Error(codes.InvalidArgument, "provider_id is required")
	}
	if caller != strings.TrimSpace(providerID) {
		return status.Error(codes.PermissionDenied, "Only the provider can change this template.")
	}
	return nil
}

func parseBookingID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "booking_id must be a UUID")
	}
	return id, nil
}

func (s *BookingsServer) PutTemplate(ctx context.Context, req *bookingsv1.PutTemplateRequest) (*bookingsv1.PutTemplateResponse, error) {
	log := s.log.With(slog.String("rpc", "PutTemplate"))

	if req == nil || req.Template == nil {
		log.Warn("invalid request", slog.String("reason", "missing_template"))
		return nil, status.Error(codes.InvalidArgument, "template is required")
	}
	if err := ownTemplate(ctx, req.Template.ProviderId); err != nil {
		return nil, err
	}

	tpl, err := fromProtoTemplate(strings.TrimSpace(req.Template.ProviderId), req.Template)
	if err != nil {
		return nil, statusError(log, err, slog.String("provider_id", req.Template.ProviderId))
	}
	saved, err := s.availability.PutTemplate(ctx, tpl)
	if err != nil {
		return nil, statusError(log, err, slog.String("provider_id", tpl.ProviderID))
	}
	return &bookingsv1.PutTemplateResponse{Template: toProtoTemplate(saved)}, nil
}

func (s *BookingsServer) GetTemplate(ctx context.Context, req *bookingsv1.GetTemplateRequest) (*bookingsv1.GetTemplateResponse, error) {
	log := s.log.With(slog.String("rpc", "GetTemplate"))

	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	tpl, err := s.availability.GetTemplate(ctx, strings.TrimSpace(req.ProviderId))
	if err != nil {
		return nil, statusError(log, err, slog.String("provider_id", req.ProviderId))
	}
	return &bookingsv1.GetTemplateResponse{Template: toProtoTemplate(tpl)}, nil
}

func (s *BookingsServer) ArchiveTemplate(ctx context.Context, req *bookingsv1.ArchiveTemplateRequest) (*bookingsv1.ArchiveTemplateResponse, error) {
	log := s.log.With(slog.String("rpc", "ArchiveTemplate"))

	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if err := ownTemplate(ctx, req.ProviderId); err != nil {
		return nil, err
	}
	tpl, err := s.availability.ArchiveTemplate(ctx, strings.TrimSpace(req.ProviderId))
	if err != nil {
		return nil, statusError(log, err, slog.String("provider_id", req.ProviderId))
	}
	return &bookingsv1.ArchiveTemplateResponse{Template: toProtoTemplate(tpl)}, nil
}

func (s *BookingsServer) ListAvailability(ctx context.Context, req *bookingsv1.ListAvailabilityRequest) (*bookingsv1.ListAvailabilityResponse, error) {
	log := s.log.With(slog.String("rpc", "ListAvailability"))

	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	from, err := domain.ParseDate(strings.TrimSpace(req.From))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "from must be a YYYY-MM-DD date")
	}
	to, err := domain.ParseDate(strings.TrimSpace(req.To))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "to must be a YYYY-MM-DD date")
	}

	slots, err := s.availability.ListAvailability(ctx, domain.QueryWindow{
		ProviderID: strings.TrimSpace(req.ProviderId),
		RangeStart: from,
		RangeEnd:   to,
	})
	if err != nil {
		return nil, statusError(log, err, slog.String("provider_id", req.ProviderId))
	}

	out := make([]*bookingsv1.Slot, 0, len(slots))
	for _, slot := range slots {
		out = append(out, &bookingsv1.Slot{StartTime: timestamppb.New(slot.Start), EndTime: timestamppb.New(slot.End)})
	}
	log.Debug("availability listed", slog.String("provider_id", req.ProviderId), slog.Int("count", len(out)))
	return &bookingsv1.ListAvailabilityResponse{Slots: out}, nil
}

func (s *BookingsServer) RequestHold(ctx context.Context, req *bookingsv1.RequestHoldRequest) (*bookingsv1.RequestHoldResponse, error) {
	log := s.log.With(slog.String("rpc", "RequestHold"))

	caller, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.StartTime == nil || req.EndTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_times"), slog.String("customer_id", caller))
		return nil, status.Error(codes.InvalidArgument, "start_time and end_time are required")
	}

	b, err := s.bookings.RequestHold(ctx, bookings.HoldRequest{
		ProviderID:     req.ProviderId,
		CustomerID:     caller,
		Start:          req.StartTime.AsTime(),
		End:            req.EndTime.AsTime(),
		PriceAmount:    req.PriceAmount,
		Currency:       req.Currency,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, statusError(log, err,
			slog.String("provider_id", req.ProviderId),
			slog.String("customer_id", caller),
			slog.Time("start_time", req.StartTime.AsTime()),
		)
	}
	return &bookingsv1.RequestHoldResponse{Booking: toProtoBooking(b)}, nil
}

func (s *BookingsServer) InitiatePayment(ctx context.Context, req *bookingsv1.InitiatePaymentRequest) (*bookingsv1.InitiatePaymentResponse, error) {
	log := s.log.With(slog.String("rpc", "InitiatePayment"))

	caller, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseBookingID(req.BookingId)
	if err != nil {
		return nil, err
	}

	session, err := s.bookings.InitiatePayment(ctx, id, caller)
	if err != nil {
		return nil, statusError(log, err, slog.String("booking_id", id.String()))
	}
	return &bookingsv1.InitiatePaymentResponse{
		Booking:      toProtoBooking(session.Booking),
		ClientSecret: session.ClientSecret,
	}, nil
}

func (s *BookingsServer) ConfirmPayment(ctx context.Context, req *bookingsv1.ConfirmPaymentRequest) (*bookingsv1.ConfirmPaymentResponse, error) {
	log := s.log.With(slog.String("rpc", "ConfirmPayment"))

	caller, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseBookingID(req.BookingId)
	if err != nil {
		return nil, err
	}

	b, err := s.bookings.ConfirmPayment(ctx, id, caller, strings.TrimSpace(req.PaymentRef))
	if err != nil {
		return nil, statusError(log, err, slog.String("booking_id", id.String()))
	}
	return &bookingsv1.ConfirmPaymentResponse{Booking: toProtoBooking(b)}, nil
}

func (s *BookingsServer) CancelBooking(ctx context.Context, req *bookingsv1.CancelBookingRequest) (*bookingsv1.CancelBookingResponse, error) {
	log := s.log.With(slog.String("rpc", "CancelBooking"))

	caller, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseBookingID(req.BookingId)
	if err != nil {
		return nil, err
	}

	b, err := s.bookings.Cancel(ctx, id, caller)
	if err != nil {
		return nil, statusError(log, err, slog.String("booking_id", id.String()))
	}
	return &bookingsv1.CancelBookingResponse{Booking: toProtoBooking(b)}, nil
}

func (s *BookingsServer) GetBooking(ctx context.Context, req *bookingsv1.GetBookingRequest) (*bookingsv1.GetBookingResponse, error) {
	log := s.log.With(slog.String("rpc", "GetBooking"))

	caller, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseBookingID(req.BookingId)
	if err != nil {
		return nil, err
	}

	b, err := s.bookings.GetBooking(ctx, id, caller)
	if err != nil {
		return nil, statusError(log, err, slog.String("booking_id", id.String()))
	}
	return &bookingsv1.GetBookingResponse{Booking: toProtoBooking(b)}, nil
}

func (s *BookingsServer) ListBookings(ctx context.Context, req *bookingsv1.ListBookingsRequest) (*bookingsv1.ListBookingsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListBookings"))

	caller, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.WindowStart == nil || req.WindowEnd == nil {
		return nil, status.Error(codes.InvalidArgument, "window_start and window_end are required")
	}

	list, err := s.bookings.ListBookings(ctx, strings.TrimSpace(req.ProviderId), caller, req.WindowStart.AsTime(), req.WindowEnd.AsTime())
	if err != nil {
		return nil, statusError(log, err, slog.String("provider_id", req.ProviderId))
	}

	out := make([]*bookingsv1.Booking, 0, len(list))
	for _, b := range list {
		out = append(out, toProtoBooking(b))
	}
	log.Debug("bookings listed", slog.String("provider_id", req.ProviderId), slog.Int("count", len(out)))
	return &bookingsv1.ListBookingsResponse{Bookings: out}, nil
}

func (s *BookingsServer) GetBookingHistory(ctx context.Context, req *bookingsv1.GetBookingHistoryRequest) (*bookingsv1.GetBookingHistoryResponse, error) {
	log := s.log.With(slog.String("rpc", "GetBookingHistory"))

	caller, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseBookingID(req.BookingId)
	if err != nil {
		return nil, err
	}

	history, err := s.bookings.History(ctx, id, caller)
	if err != nil {
		return nil, statusError(log, err, slog.String("booking_id", id.String()))
	}
	out := make([]*bookingsv1.Transition, 0, len(history))
	for _, tr := range history {
		out = append(out, toProtoTransition(tr))
	}
	return &bookingsv1.GetBookingHistoryResponse{Transitions: out}, nil
}
