package bookingsv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "memberbook.bookings.v1.BookingsService"

type BookingsServiceServer interface {
	PutTemplate(context.Context, *PutTemplateRequest) (*PutTemplateResponse, error)
	GetTemplate(context.Context, *GetTemplateRequest) (*GetTemplateResponse, error)
	ArchiveTemplate(context.Context, *ArchiveTemplateRequest) (*ArchiveTemplateResponse, error)
	ListAvailability(context.Context, *ListAvailabilityRequest) (*ListAvailabilityResponse, error)
	RequestHold(context.Context, *RequestHoldRequest) (*RequestHoldResponse, error)
	InitiatePayment(context.Context, *InitiatePaymentRequest) (*InitiatePaymentResponse, error)
	ConfirmPayment(context.Context, *ConfirmPaymentRequest) (*ConfirmPaymentResponse, error)
	CancelBooking(context.Context, *CancelBookingRequest) (*CancelBookingResponse, error)
	GetBooking(context.Context, *GetBookingRequest) (*GetBookingResponse, error)
	ListBookings(context.Context, *ListBookingsRequest) (*ListBookingsResponse, error)
	GetBookingHistory(context.Context, *GetBookingHistoryRequest) (*GetBookingHistoryResponse, error)
}

// UnimplementedBookingsServiceServer answers every method with codes.Unimplemented.
type UnimplementedBookingsServiceServer struct{}

func (UnimplementedBookingsServiceServer) PutTemplate(context.Context, *PutTemplateRequest) (*PutTemplateResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PutTemplate not implemented")
}
func (UnimplementedBookingsServiceServer) GetTemplate(context.Context, *GetTemplateRequest) (*GetTemplateResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetTemplate not implemented")
}
func (UnimplementedBookingsServiceServer) ArchiveTemplate(context.Context, *ArchiveTemplateRequest) (*ArchiveTemplateResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ArchiveTemplate not implemented")
}
func (UnimplementedBookingsServiceServer) ListAvailability(context.Context, *ListAvailabilityRequest) (*ListAvailabilityResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAvailability not implemented")
}
func (UnimplementedBookingsServiceServer) RequestHold(context.Context, *RequestHoldRequest) (*RequestHoldResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RequestHold not implemented")
}
func (UnimplementedBookingsServiceServer) InitiatePayment(context.Context, *InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method InitiatePayment not implemented")
}
func (UnimplementedBookingsServiceServer) ConfirmPayment(context.Context, *ConfirmPaymentRequest) (*ConfirmPaymentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ConfirmPayment not implemented")
}
func (UnimplementedBookingsServiceServer) CancelBooking(context.Context, *CancelBookingRequest) (*CancelBookingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CancelBooking not implemented")
}
func (UnimplementedBookingsServiceServer) GetBooking(context.Context, *GetBookingRequest) (*GetBookingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBooking not implemented")
}
func (UnimplementedBookingsServiceServer) ListBookings(context.Context, *ListBookingsRequest) (*ListBookingsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListBookings not implemented")
}
func (UnimplementedBookingsServiceServer) GetBookingHistory(context.Context, *GetBookingHistoryRequest) (*GetBookingHistoryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBookingHistory not implemented")
}

func RegisterBookingsServiceServer(s grpc.ServiceRegistrar, srv BookingsServiceServer) {
	s.RegisterService(&BookingsService_ServiceDesc, srv)
}

func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](method string, call func(BookingsServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BookingsServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BookingsServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var BookingsService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("PutTemplate", BookingsServiceServer.PutTemplate),
		unary("GetTemplate", BookingsServiceServer.GetTemplate),
		unary("ArchiveTemplate", BookingsServiceServer.ArchiveTemplate),
		unary("ListAvailability", BookingsServiceServer.ListAvailability),
		unary("RequestHold", BookingsServiceServer.RequestHold),
		unary("InitiatePayment", BookingsServiceServer.InitiatePayment),
		unary("ConfirmPayment", BookingsServiceServer.ConfirmPayment),
		unary("CancelBooking", BookingsServiceServer.CancelBooking),
		unary("GetBooking", BookingsServiceServer.GetBooking),
		unary("ListBookings", BookingsServiceServer.ListBookings),
		unary("GetBookingHistory", BookingsServiceServer.GetBookingHistory),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "memberbook/bookings/v1/bookings.proto",
}

type BookingsServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingsServiceClient(cc grpc.ClientConnInterface) *BookingsServiceClient {
	return &BookingsServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingsServiceClient) PutTemplate(ctx context.Context, in *PutTemplateRequest, opts ...grpc.CallOption) (*PutTemplateResponse, error) {
	return invoke[PutTemplateResponse](ctx, c.cc, "PutTemplate", in, opts)
}

func (c *BookingsServiceClient) GetTemplate(ctx context.Context, in *GetTemplateRequest, opts ...grpc.CallOption) (*GetTemplateResponse, error) {
	return invoke[GetTemplateResponse](ctx, c.cc, "GetTemplate", in, opts)
}

func (c *BookingsServiceClient) ArchiveTemplate(ctx context.Context, in *ArchiveTemplateRequest, opts ...grpc.CallOption) (*ArchiveTemplateResponse, error) {
	return invoke[ArchiveTemplateResponse](ctx, c.cc, "ArchiveTemplate", in, opts)
}

func (c *BookingsServiceClient) ListAvailability(ctx context.Context, in *ListAvailabilityRequest, opts ...grpc.CallOption) (*ListAvailabilityResponse, error) {
	return invoke[ListAvailabilityResponse](ctx, c.cc, "ListAvailability", in, opts)
}

func (c *BookingsServiceClient) RequestHold(ctx context.Context, in *RequestHoldRequest, opts ...grpc.CallOption) (*RequestHoldResponse, error) {
	return invoke[RequestHoldResponse](ctx, c.cc, "RequestHold", in, opts)
}

func (c *BookingsServiceClient) InitiatePayment(ctx context.Context, in *InitiatePaymentRequest, opts ...grpc.CallOption) (*InitiatePaymentResponse, error) {
	return invoke[InitiatePaymentResponse](ctx, c.cc, "InitiatePayment", in, opts)
}

func (c *BookingsServiceClient) ConfirmPayment(ctx context.Context, in *ConfirmPaymentRequest, opts ...grpc.CallOption) (*ConfirmPaymentResponse, error) {
	return invoke[ConfirmPaymentResponse](ctx, c.cc, "ConfirmPayment", in, opts)
}

func (c *BookingsServiceClient) CancelBooking(ctx context.Context, in *CancelBookingRequest, opts ...grpc.CallOption) (*CancelBookingResponse, error) {
	return invoke[CancelBookingResponse](ctx, c.cc, "CancelBooking", in, opts)
}

func (c *BookingsServiceClient) GetBooking(ctx context.Context, in *GetBookingRequest, opts ...grpc.CallOption) (*GetBookingResponse, error) {
	return invoke[GetBookingResponse](ctx, c.cc, "GetBooking", in, opts)
}

func (c *BookingsServiceClient) ListBookings(ctx context.Context, in *ListBookingsRequest, opts ...grpc.CallOption) (*ListBookingsResponse, error) {
	return invoke[ListBookingsResponse](ctx, c.cc, "ListBookings", in, opts)
}

func (c *BookingsServiceClient) GetBookingHistory(ctx context.Context, in *GetBookingHistoryRequest, opts ...grpc.CallOption) (*GetBookingHistoryResponse, error) {
	return invoke[GetBookingHistoryResponse](ctx, c.cc, "GetBookingHistory", in, opts)
}
