// Package bookingsv1 defines the memberbook.bookings.v1 RPC surface. Messages are
// plain structs carried by the JSON codec registered in this package, so every
// call must use the "json" content subtype. BookingsServiceClient sets it on each
// call; other clients pass grpc.CallContentSubtype("json") (content-type
// application/grpc+json). Stock protobuf clients cannot talk to this service.
package bookingsv1

import "google.golang.org/protobuf/types/known/timestamppb"

type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Template struct {
	ProviderId       string                 `json:"provider_id"`
	Timezone         string                 `json:"timezone"`
	WeeklyHours      map[string][]*Window   `json:"weekly_hours"`
	DateOverrides    map[string][]*Window   `json:"date_overrides,omitempty"`
	BlockedDates     []string               `json:"blocked_dates,omitempty"`
	DurationMinutes  int32                  `json:"duration_minutes"`
	BufferMinutes    int32                  `json:"buffer_minutes"`
	MinNoticeMinutes int32                  `json:"min_notice_minutes"`
	HorizonDays      int32                  `json:"horizon_days"`
	PriceAmount      int64                  `json:"price_amount"`
	Currency         string                 `json:"currency,omitempty"`
	ArchivedAt       *timestamppb.Timestamp `json:"archived_at,omitempty"`
	CreatedAt        *timestamppb.Timestamp `json:"created_at,omitempty"`
	UpdatedAt        *timestamppb.Timestamp `json:"updated_at,omitempty"`
}

type Slot struct {
	StartTime *timestamppb.Timestamp `json:"start_time"`
	EndTime   *timestamppb.Timestamp `json:"end_time"`
}

type Booking struct {
	Id          string                 `json:"id"`
	ProviderId  string                 `json:"provider_id"`
	CustomerId  string                 `json:"customer_id"`
	StartTime   *timestamppb.Timestamp `json:"start_time"`
	EndTime     *timestamppb.Timestamp `json:"end_time"`
	PriceAmount int64                  `json:"price_amount"`
	Currency    string                 `json:"currency"`
	State       string                 `json:"state"`
	PaymentRef  string                 `json:"payment_ref,omitempty"`
	ExpiresAt   *timestamppb.Timestamp `json:"expires_at,omitempty"`
	CreatedAt   *timestamppb.Timestamp `json:"created_at,omitempty"`
	UpdatedAt   *timestamppb.Timestamp `json:"updated_at,omitempty"`
}

type Transition struct {
	FromState  string                 `json:"from_state"`
	ToState    string                 `json:"to_state"`
	Reason     string                 `json:"reason"`
	OccurredAt *timestamppb.Timestamp `json:"occurred_at"`
}

type PutTemplateRequest struct {
	Template *Template `json:"template"`
}

type PutTemplateResponse struct {
	Template *Template `json:"template"`
}

type GetTemplateRequest struct {
	ProviderId string `json:"provider_id"`
}

type GetTemplateResponse struct {
	Template *Template `json:"template"`
}

type ArchiveTemplateRequest struct {
	ProviderId string `json:"provider_id"`
}

type ArchiveTemplateResponse struct {
	Template *Template `json:"template"`
}

// ListAvailabilityRequest covers the calendar dates [From, To) in the provider's zone.
type ListAvailabilityRequest struct {
	ProviderId string `json:"provider_id"`
	From       string `json:"from"`
	To         string `json:"to"`
}

type ListAvailabilityResponse struct {
	Slots []*Slot `json:"slots"`
}

// RequestHoldRequest reserves a slot for the calling member. Retries should carry
// the same idempotency-key metadata.
// RequestHoldRequest asks for a hold on one slot. PriceAmount and Currency are the
// price the customer was shown and may be left empty; the provider's template
// sets the booking's price and a quote that differs from it is rejected.
type RequestHoldRequest struct {
	ProviderId  string                 `json:"provider_id"`
	StartTime   *timestamppb.Timestamp `json:"start_time"`
	EndTime     *timestamppb.Timestamp `json:"end_time"`
	PriceAmount int64                  `json:"price_amount"`
	Currency    string                 `json:"currency"`
}

type RequestHoldResponse struct {
	Booking *Booking `json:"booking"`
}

type InitiatePaymentRequest struct {
	BookingId string `json:"booking_id"`
}

type InitiatePaymentResponse struct {
	Booking      *Booking `json:"booking"`
	ClientSecret string   `json:"client_secret,omitempty"`
}

type ConfirmPaymentRequest struct {
	BookingId  string `json:"booking_id"`
	PaymentRef string `json:"payment_ref"`
}

type ConfirmPaymentResponse struct {
	Booking *Booking `json:"booking"`
}

type CancelBookingRequest struct {
	BookingId string `json:"booking_id"`
}

type CancelBookingResponse struct {
	Booking *Booking `json:"booking"`
}

type GetBookingRequest struct {
	BookingId string `json:"booking_id"`
}

type GetBookingResponse struct {
	Booking *Booking `json:"booking"`
}

type ListBookingsRequest struct {
	ProviderId  string                 `json:"provider_id"`
	WindowStart *timestamppb.Timestamp `json:"window_start"`
	WindowEnd   *timestamppb.Timestamp `json:"window_end"`
}

type ListBookingsResponse struct {
	Bookings []*Booking `json:"bookings"`
}

type GetBookingHistoryRequest struct {
	BookingId string `json:"booking_id"`
}

type GetBookingHistoryResponse struct {
	Transitions []*Transition `json:"transitions"`
}
