package server

import (
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewGRPCServer creates a gRPC server with standard interceptors and
// registers the health service and reflection. The returned health server
// reports SERVING until the caller calls Shutdown on it.
func NewGRPCServer(token string, log logrus.FieldLogger) (*grpc.Server, *health.Server) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "grpc")
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(log),
			LoggingInterceptor(log),
			AuthInterceptor(token),
		),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("orggraph", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return srv, hs
}
