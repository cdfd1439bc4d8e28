// Package grpcserver exposes the bot's gRPC health service.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the overall ("") status.
const ServiceName = "lumen.Bot"

// Server is a gRPC server carrying only the standard health service.
type Server struct {
	gs     *grpc.Server
	health *health.Server
	log    *zap.Logger
}

// New builds the server with recover and logging interceptors. It reports NOT_SERVING
// until SetServing(true).
func New(log *zap.Logger) *Server {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
		grpc.ChainStreamInterceptor(
			RecoverStream(log),
			LoggingStream(log),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{gs: gs, health: hs, log: log}
	s.SetServing(false)
	return s
}

// SetServing updates the reported status.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Monitor runs check every interval and reports its result until ctx is done.
func (s *Server) Monitor(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	t := time.NewTicker(interval)
	defer t.Stop()
	healthy := true
	for {
		pctx, cancel := context.WithTimeout(ctx, interval)
		err := check(pctx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if ok := err == nil; ok != healthy {
			healthy = ok
			if ok {
				s.log.Info("store reachable again")
			} else {
				s.log.Warn("store check failed", zap.Error(err))
			}
		}
		s.SetServing(healthy)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Serve accepts connections on lis until Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("health listening", zap.String("addr", lis.Addr().String()))
	return s.gs.Serve(lis)
}

// Shutdown marks the service as not serving and stops gracefully, forcing the stop after timeout.
func (s *Server) Shutdown(timeout time.Duration) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.gs.Stop()
	}
}
