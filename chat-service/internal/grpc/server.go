package grpc

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// ServiceName is the health-checked service name. The empty name reports
// overall server health.
const ServiceName = "chat"

// Server exposes the gRPC health service for the chat instance.
type Server struct {
	server *grpc.Server
	health *health.Server
}

// NewServer builds a gRPC server with request logging and a health service
// reporting SERVING.
func NewServer(logger zerolog.Logger) *Server {
	s := grpc.NewServer(
		grpc.UnaryInterceptor(log.UnaryServerInterceptor(logger)),
		grpc.StreamInterceptor(log.StreamServerInterceptor(logger)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{server: s, health: hs}
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	l := log.L()
	l.Info().Str("address", lis.Addr().String()).Msg("chat grpc server listening")
	if err := s.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and serves until Stop is called.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// MarkNotServing flips every health status to NOT_SERVING. Watchers are
// notified before the server stops.
func (s *Server) MarkNotServing() {
	s.health.Shutdown()
}

// Stop marks the server NOT_SERVING and waits for in-flight calls.
func (s *Server) Stop() {
	s.MarkNotServing()
	s.server.GracefulStop()
}
