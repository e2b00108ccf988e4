// Package grpc serves the standard gRPC health protocol for the auth
// service. Serving status follows broker readiness.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the overall "" entry.
const ServiceName = "auth"

const defaultCheckInterval = 10 * time.Second

// ReadinessChecker reports whether downstream dependencies are reachable.
type ReadinessChecker interface {
	Check(ctx context.Context) bool
}

type GRPCServer struct {
	address  string
	checker  ReadinessChecker
	interval time.Duration
	health   *health.Server
	logger   logging.Logger
}

func NewGRPCServer(address string, l logging.Logger, checker ReadinessChecker, interval time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &GRPCServer{
		address:  address,
		checker:  checker,
		interval: interval,
		health:   health.NewServer(),
		logger:   l.With("module", "grpc_server"),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	go s.watch(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

// watch refreshes the serving status until ctx is done.
func (s *GRPCServer) watch(ctx context.Context) {
	s.refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *GRPCServer) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if !s.checker.Check(ctx) {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.logger.Warn(ctx, "readiness check failed")
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
