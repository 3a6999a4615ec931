package main

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/edgemesh/edge-sync/config"
)

func server(ctx context.Context, config *config.Config) (*grpc.ClientConn, func()) {
	buffer := 101024 * 1024
	lis := bufconn.Listen(buffer)

	s := CreateServer(config, nil)
	go func() {
		_ = s.Serve(lis)
	}()

	conn, err := grpc.DialContext(ctx, "",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		panic(err)
	}

	closer := func() {
		_ = lis.Close()
		s.Stop()
	}
	return conn, closer
}

func TestServerHealth(t *testing.T) {
	cfg, err := config.NewConfig()
	require.NoError(t, err, "failed to load config")

	conn, closer := server(context.Background(), cfg)
	defer closer()

	client := grpc_health_v1.NewHealthClient(conn)
	reply, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err, "health check failed")
	require.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, reply.Status)
}
