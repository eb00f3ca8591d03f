package transportgrpc

import (
	"context"
	"net"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/chibuezedev/florin-server/internal/transport/grpc/interceptors"
)

// ServiceName is the health service name reported alongside the overall status.
const ServiceName = "florin"

const defaultProbeTimeout = 2 * time.Second

// ReadinessCheck probes one dependency.
type ReadinessCheck func(ctx context.Context) error

// ServerDependencies encapsulates what the ops gRPC surface needs.
type ServerDependencies struct {
	Authenticator  grpcinterceptors.Authenticator
	Logger         *zap.Logger
	Registerer     prometheus.Registerer
	TracerProvider trace.TracerProvider
	Checks         map[string]ReadinessCheck
	PublicMethods  []string
}

// Server is the gRPC ops server: health reflecting dependency readiness, token
// introspection through SessionService, and reflection.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	checks map[string]ReadinessCheck
	logger *zap.Logger
}

// NewServer wires the ops services behind authentication and metrics interceptors.
// Only the health service is reachable without a bearer token.
func NewServer(deps ServerDependencies) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	public := append([]string{
		healthpb.Health_Check_FullMethodName,
		healthpb.Health_List_FullMethodName,
		healthpb.Health_Watch_FullMethodName,
	}, deps.PublicMethods...)

	authInterceptor := grpcinterceptors.NewAuthInterceptor(deps.Authenticator, grpcinterceptors.AuthOptions{
		Logger:       logger,
		AllowMethods: public,
	})
	metrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: deps.Registerer})
	if err != nil {
		return nil, err
	}

	server := grpc.NewServer(
		grpcinterceptors.TracingServerOption(grpcinterceptors.TracingOptions{
			TracerProvider: deps.TracerProvider,
			SkipMethods:    []string{healthpb.Health_Check_FullMethodName, healthpb.Health_Watch_FullMethodName},
		}),
		grpc.ChainUnaryInterceptor(
			metrics.UnaryServerInterceptor(),
			authInterceptor.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(authInterceptor.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	RegisterSessionServer(server, NewSessionServer(logger))

	// Reflection requires a bearer token like every non-health RPC.
	reflection.Register(server)

	s := &Server{grpc: server, health: healthServer, checks: deps.Checks, logger: logger}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s, nil
}

// GRPC exposes the underlying server for additional registrations.
func (s *Server) GRPC() *grpc.Server {
	return s.grpc
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// RefreshReadiness runs every check once and publishes the result through the health service.
// It reports whether all checks passed.
func (s *Server) RefreshReadiness(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ready := true
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			ready = false
		}
	}

	if ready {
		s.setStatus(healthpb.HealthCheckResponse_SERVING)
	} else {
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return ready
}

// WatchReadiness refreshes readiness every interval until ctx is done.
func (s *Server) WatchReadiness(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s.RefreshReadiness(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RefreshReadiness(ctx)
		}
	}
}

// GracefulStop marks the service as not serving and drains in-flight RPCs.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
