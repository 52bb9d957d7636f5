package grpc

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"memberbook/backend/internal/auth"
)

// RequestTimeoutInterceptor applies timeout to calls that arrive without a deadline.
func RequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

// AuthInterceptor resolves the calling member and stores it on the context.
func AuthInterceptor(v *auth.Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id, err := v.Authenticate(firstMetadata(ctx, "authorization"), firstMetadata(ctx, auth.UserIDHeader))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "valid credentials are required")
		}
		return handler(auth.WithPrincipal(ctx, id), req)
	}
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func idempotencyKey(ctx context.Context) string {
	if key := firstMetadata(ctx, "idempotency-key"); key != "" {
		return key
	}
	return firstMetadata(ctx, "x-idempotency-key")
}
