package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// Server wraps a gRPC server with the loan servicing handler registered.
type Server struct {
	gs     *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// NewServer creates and configures the gRPC server.
func NewServer(handler LoanServicingServiceServer, logger *slog.Logger, enableReflection bool) *Server {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		recoveryInterceptor(logger),
		loggingInterceptor(logger),
	))

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(gs, healthSrv)
	healthSrv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	if enableReflection {
		reflection.Register(gs)
	}

	RegisterLoanServicingServiceServer(gs, handler)

	return &Server{
		gs:     gs,
		health: healthSrv,
		logger: logger,
	}
}

// Serve listens on addr and blocks until the server stops.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.ServeListener(lis)
}

// ServeListener serves on an existing listener.
func (s *Server) ServeListener(lis net.Listener) error {
	s.logger.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.gs.Serve(lis)
}

// GracefulStop marks the service as not serving and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.logger.Info("gRPC server shutting down")
	s.health.Shutdown()
	s.gs.GracefulStop()
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		attrs := []any{
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			attrs = append(attrs, "error", err)
			logger.WarnContext(ctx, "gRPC call failed", attrs...)
		} else {
			logger.DebugContext(ctx, "gRPC call", attrs...)
		}
		return resp, err
	}
}

func recoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "panic in gRPC handler", "method", info.FullMethod, "panic", r)
				err = status.Errorf(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
