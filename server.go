package main

import (
	"net"
	"net/http"
	"time"

	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/improbable-eng/grpc-web/go/grpcweb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/edgemesh/edge-sync/config"
)

// CreateServer builds the gRPC server with keepalive enforcement,
// request metrics and health checks. The transport adapter that speaks
// to edges registers its services through register.
func CreateServer(config *config.Config, register func(s *grpc.Server)) *grpc.Server {
	serverMetrics := grpcprom.NewServerMetrics()
	prometheus.DefaultRegisterer.MustRegister(serverMetrics)

	s := grpc.NewServer(
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             time.Second * 5,
			PermitWithoutStream: true,
		}),
		grpc.UnaryInterceptor(serverMetrics.UnaryServerInterceptor()),
		grpc.StreamInterceptor(serverMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(s, healthServer)

	if register != nil {
		register(s)
	}
	return s
}

// serveHTTP exposes the gRPC services to browser clients via grpc-web
// and serves the metrics endpoint.
func serveHTTP(config *config.Config, grpcServer *grpc.Server, listener net.Listener) error {
	wrapped := grpcweb.WrapServer(grpcServer)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", cors.AllowAll().Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wrapped.IsGrpcWebRequest(r) || wrapped.IsAcceptableGrpcCorsRequest(r) {
			wrapped.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})))
	server := &http.Server{Handler: mux}
	return server.Serve(listener)
}
