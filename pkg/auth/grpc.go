package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor authenticates unary calls through p using the
// "authorization" metadata value. Rejections return Unauthenticated with
// a generic message.
func UnaryServerInterceptor(p *Provider) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, err := authenticateGRPC(ctx, p)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the streaming counterpart of
// [UnaryServerInterceptor].
func StreamServerInterceptor(p *Provider) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := authenticateGRPC(ss.Context(), p)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// authenticateGRPC resolves the first authorization metadata value. A
// missing value resolves as an empty header so it is audited like any
// other rejection.
func authenticateGRPC(ctx context.Context, p *Provider) (context.Context, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(strings.ToLower(HeaderAuthorization)); len(vals) > 0 {
			header = vals[0]
		}
	}

	out := p.Resolve(ctx, header)
	if !out.Accepted {
		return ctx, status.Error(codes.Unauthenticated, "authentication failed")
	}
	return ContextWithUser(ctx, User{ID: out.UserID, TokenKind: out.Kind}), nil
}

// wrappedServerStream overrides Context so handlers see the user.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
