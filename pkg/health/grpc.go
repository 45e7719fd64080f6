package health

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer exposes the checker through the standard gRPC health protocol
// for orchestrators that probe over gRPC
type GRPCServer struct {
	server  *grpc.Server
	health  *grpchealth.Server
	service string
}

// NewGRPCServer creates a gRPC health server reporting for service and for
// the empty service name; it follows every run of checker
func NewGRPCServer(checker *Checker, service string) *GRPCServer {
	s := &GRPCServer{
		server:  grpc.NewServer(),
		health:  grpchealth.NewServer(),
		service: service,
	}
	healthpb.RegisterHealthServer(s.server, s.health)

	s.setServing(checker.IsSystemHealthy())
	checker.OnChange(s.setServing)
	return s
}

func (s *GRPCServer) setServing(healthy bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
}

// Serve listens on addr and blocks until Stop is called
func (s *GRPCServer) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen grpc health on %s: %w", addr, err)
	}
	return s.ServeListener(lis)
}

// ServeListener serves on an existing listener
func (s *GRPCServer) ServeListener(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Stop marks everything as not serving and stops the server
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
