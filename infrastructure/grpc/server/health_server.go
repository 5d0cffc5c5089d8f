package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	sdkgrpc "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name orchestrators check, next to the overall "" service.
const ServiceName = "chat-relay.Relay"

// ServingCheck reports whether the hub accepts connections.
type ServingCheck func() bool

// HealthServer exposes the standard gRPC health service and mirrors the hub state into it.
type HealthServer struct {
	log      *slog.Logger
	address  string
	serving  ServingCheck
	interval time.Duration
	health   *health.Server
}

func NewHealthServer(log *slog.Logger, address string, serving ServingCheck, interval time.Duration) *HealthServer {
	return &HealthServer{
		log:      log,
		address:  address,
		serving:  serving,
		interval: interval,
		health:   health.NewServer(),
	}
}

func (s *HealthServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve blocks until ctx is canceled or the listener fails. The status
// watcher lives as long as this call, so a restarted server never runs two.
func (s *HealthServer) Serve(ctx context.Context, listener net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(sdkgrpc.UnaryLoggingInterceptor(s.log)))
	healthpb.RegisterHealthServer(srv, s.health)
	reflection.Register(srv)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	s.refresh()
	go s.watch(watchCtx)

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting gRPC health server", "address", listener.Addr().String(), "at", time.Now().UTC())
		if err := srv.Serve(listener); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		srv.GracefulStop()
		return nil
	case err := <-errChan:
		return err
	}
}

func (s *HealthServer) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *HealthServer) refresh() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.serving() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
