// Package observability runs the HTTP and gRPC health surfaces of the service.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server serves an HTTP handler.
type Server struct {
	server *http.Server
	addr   string
}

// NewServer wraps handler in an HTTP server listening on addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.addr).Msg("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// HealthServer exposes grpc.health.v1 for orchestrators that health-check over gRPC.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	lis    net.Listener
}

// NewHealthServer binds the listener; serving starts with Start.
func NewHealthServer(port string) (*HealthServer, error) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", port, err)
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(UnaryServerInterceptor()))
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, hs)
	reflection.Register(server)

	return &HealthServer{server: server, health: hs, lis: lis}, nil
}

// Addr returns the bound listen address.
func (h *HealthServer) Addr() string {
	return h.lis.Addr().String()
}

// SetServing flips the overall serving status.
func (h *HealthServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
}

// Start serves in a goroutine.
func (h *HealthServer) Start() {
	go func() {
		log.Info().Str("addr", h.Addr()).Msg("Starting gRPC health server")
		if err := h.server.Serve(h.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error().Err(err).Msg("gRPC health server error")
		}
	}()
}

// Stop marks the service not serving and drains the server.
func (h *HealthServer) Stop() {
	h.SetServing(false)
	h.server.GracefulStop()
}
