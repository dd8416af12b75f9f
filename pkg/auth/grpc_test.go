package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/StricklySoft/stricklysoft-authcutover/pkg/audit"
)

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeServerStream) Context() context.Context { return f.ctx }

func TestUnaryServerInterceptor_Accepted(t *testing.T) {
	t.Parallel()

	var rec audit.Recorder
	interceptor := UnaryServerInterceptor(newTestProvider(t, dualSettings(), &rec))
	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs("authorization", newHeader(t, "bob")))

	resp, err := interceptor(ctx, "req", &grpc.UnaryServerInfo{FullMethod: "/todo.v1.Tasks/List"},
		func(ctx context.Context, req any) (any, error) {
			user, ok := UserFromContext(ctx)
			require.True(t, ok)
			return user.ID, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "bob", resp)
}

func TestUnaryServerInterceptor_Rejected(t *testing.T) {
	t.Parallel()

	contexts := map[string]context.Context{
		"no metadata":      context.Background(),
		"no authorization": metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-request-id", "1")),
		"bad token":        metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer nope")),
	}

	for name, ctx := range contexts {
		var rec audit.Recorder
		interceptor := UnaryServerInterceptor(newTestProvider(t, dualSettings(), &rec))

		_, err := interceptor(ctx, "req", &grpc.UnaryServerInfo{}, func(context.Context, any) (any, error) {
			t.Errorf("%s: handler must not run", name)
			return nil, nil
		})

		assert.Equal(t, codes.Unauthenticated, status.Code(err), name)
		assert.Equal(t, "authentication failed", status.Convert(err).Message(), name)
		assert.Equal(t, 1, rec.Len(), "%s: every attempt is audited", name)
	}
}

func TestStreamServerInterceptor(t *testing.T) {
	t.Parallel()

	interceptor := StreamServerInterceptor(newTestProvider(t, dualSettings(), nil))

	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs("authorization", legacyHeader(t, "alice")))
	err := interceptor(nil, &fakeServerStream{ctx: ctx}, &grpc.StreamServerInfo{},
		func(srv any, ss grpc.ServerStream) error {
			user := MustUserFromContext(ss.Context())
			assert.Equal(t, "alice", user.ID)
			assert.Equal(t, TokenKindLegacy, user.TokenKind)
			return nil
		})
	require.NoError(t, err)

	err = interceptor(nil, &fakeServerStream{ctx: context.Background()}, &grpc.StreamServerInfo{},
		func(any, grpc.ServerStream) error {
			t.Error("handler must not run")
			return nil
		})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
