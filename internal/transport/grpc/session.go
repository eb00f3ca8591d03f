package transportgrpc

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	grpcinterceptors "github.com/chibuezedev/florin-server/internal/transport/grpc/interceptors"
)

// SessionWhoAmIFullMethod resolves the caller's bearer token to its account.
const SessionWhoAmIFullMethod = "/florin.ops.v1.SessionService/WhoAmI"

// SessionServer lets ops tooling validate a florin access token without the HTTP API.
type SessionServer struct {
	logger *zap.Logger
}

// NewSessionServer constructs the session service.
func NewSessionServer(logger *zap.Logger) *SessionServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionServer{logger: logger}
}

// WhoAmI returns the principal the auth interceptor attached to ctx.
func (s *SessionServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	principal, ok := grpcinterceptors.PrincipalFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}

	resp, err := structpb.NewStruct(map[string]any{
		"account_id": principal.AccountID,
		"role":       string(principal.Role),
		"email":      principal.Email,
		"name":       principal.Name,
	})
	if err != nil {
		s.logger.Error("failed to encode principal", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode principal")
	}
	return resp, nil
}

type sessionService interface {
	WhoAmI(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(sessionService).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SessionWhoAmIFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(sessionService).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: "florin.ops.v1.SessionService",
	HandlerType: (*sessionService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "florin/ops/v1/session.proto",
}

// RegisterSessionServer attaches the session service to s.
func RegisterSessionServer(s grpc.ServiceRegistrar, srv *SessionServer) {
	s.RegisterService(&sessionServiceDesc, srv)
}
