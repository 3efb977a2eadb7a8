package health

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Check reports whether a dependency is ready.
type Check func(ctx context.Context) error

// Server keeps the grpc.health.v1 status of each dependency up to date.
// Every check is exposed as its own service name; the empty service name
// is SERVING only while all checks pass.
type Server struct {
	hs      *health.Server
	checks  map[string]Check
	timeout time.Duration
	log     *slog.Logger
}

func NewServer(checks map[string]Check, log *slog.Logger) *Server {
	s := &Server{
		hs:      health.NewServer(),
		checks:  checks,
		timeout: 2 * time.Second,
		log:     log,
	}
	s.hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for name := range checks {
		s.hs.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

// NewGRPCServer builds a traced gRPC server with health and reflection registered.
func NewGRPCServer(s *Server) *grpc.Server {
	g := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(g, s.hs)
	// Enable reflection for grpcurl
	reflection.Register(g)
	return g
}

// Refresh runs every check once and publishes the results.
func (s *Server) Refresh(ctx context.Context) bool {
	ok := true
	for name, check := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := check(cctx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			ok = false
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.log.WarnContext(ctx, "health check failed", "check", name, "error", err)
		}
		s.hs.SetServingStatus(name, status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !ok {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.hs.SetServingStatus("", overall)
	return ok
}

func (s *Server) Run(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown marks every service NOT_SERVING so load balancers drain before the listener closes.
func (s *Server) Shutdown() {
	s.hs.Shutdown()
}
