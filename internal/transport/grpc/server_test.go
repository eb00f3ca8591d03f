package transportgrpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/usecase"
)

type fakeAuthenticator struct {
	token     string
	principal domain.Principal
}

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (domain.Principal, error) {
	if f.token == "" || token != f.token {
		return domain.Principal{}, usecase.ErrInvalidAccessToken
	}
	return f.principal, nil
}

func startServer(t *testing.T, deps ServerDependencies) (*Server, healthpb.HealthClient) {
	t.Helper()
	srv, conn := startServerConn(t, deps)
	return srv, healthpb.NewHealthClient(conn)
}

func startServerConn(t *testing.T, deps ServerDependencies) (*Server, *grpc.ClientConn) {
	t.Helper()

	if deps.Registerer == nil {
		deps.Registerer = prometheus.NewRegistry()
	}
	deps.Logger = zaptest.NewLogger(t)

	srv, err := NewServer(deps)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() {
		_ = srv.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.GracefulStop()
	})

	return srv, conn
}

func withBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func TestHealthReflectsReadiness(t *testing.T) {
	var redisErr error
	srv, client := startServer(t, ServerDependencies{
		Authenticator: fakeAuthenticator{},
		Checks: map[string]ReadinessCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return redisErr },
		},
	})
	ctx := context.Background()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	require.True(t, srv.RefreshReadiness(ctx))
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	redisErr = errors.New("connection refused")
	require.False(t, srv.RefreshReadiness(ctx))
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "unknown"})
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestHealthCheckIsNotTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	srv, client := startServer(t, ServerDependencies{Authenticator: fakeAuthenticator{}, TracerProvider: tp})
	srv.RefreshReadiness(context.Background())

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Empty(t, recorder.Ended())
}

func TestWhoAmIRequiresBearerToken(t *testing.T) {
	_, conn := startServerConn(t, ServerDependencies{Authenticator: fakeAuthenticator{
		token:     "good",
		principal: domain.Principal{AccountID: "acc-1", Role: domain.RoleAdmin, Email: "ada@example.edu", Name: "Ada"},
	}})
	ctx := context.Background()

	err := conn.Invoke(ctx, SessionWhoAmIFullMethod, &emptypb.Empty{}, &structpb.Struct{})
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	err = conn.Invoke(withBearer(ctx, "forged"), SessionWhoAmIFullMethod, &emptypb.Empty{}, &structpb.Struct{})
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	out := &structpb.Struct{}
	require.NoError(t, conn.Invoke(withBearer(ctx, "good"), SessionWhoAmIFullMethod, &emptypb.Empty{}, out))
	fields := out.GetFields()
	require.Equal(t, "acc-1", fields["account_id"].GetStringValue())
	require.Equal(t, "admin", fields["role"].GetStringValue())
	require.Equal(t, "ada@example.edu", fields["email"].GetStringValue())
}

func TestReflectionRequiresBearerToken(t *testing.T) {
	_, conn := startServerConn(t, ServerDependencies{Authenticator: fakeAuthenticator{
		token:     "good",
		principal: domain.Principal{AccountID: "acc-1", Role: domain.RoleAdmin},
	}})
	client := reflectionpb.NewServerReflectionClient(conn)
	listServices := &reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_ListServices{ListServices: ""},
	}

	stream, err := client.ServerReflectionInfo(context.Background())
	require.NoError(t, err)
	_ = stream.Send(listServices)
	_, err = stream.Recv()
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	stream, err = client.ServerReflectionInfo(withBearer(context.Background(), "good"))
	require.NoError(t, err)
	require.NoError(t, stream.Send(listServices))
	resp, err := stream.Recv()
	require.NoError(t, err)

	var names []string
	for _, svc := range resp.GetListServicesResponse().GetService() {
		names = append(names, svc.GetName())
	}
	require.Contains(t, names, "florin.ops.v1.SessionService")
	require.Contains(t, names, "grpc.health.v1.Health")
	require.NoError(t, stream.CloseSend())
}

func TestHealthWatchStaysPublic(t *testing.T) {
	_, client := startServer(t, ServerDependencies{Authenticator: fakeAuthenticator{token: "good"}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := client.Watch(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	resp, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
