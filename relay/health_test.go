package relay

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func TestHealth_Check(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lis := bufconn.Listen(1 << 20)
	h := NewHealth(slog.Default())
	go func() {
		_ = h.Serve(lis)
	}()
	defer h.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	req.NoError(err)
	defer func() { _ = conn.Close() }()
	client := healthpb.NewHealthClient(conn)

	// When the relay is up
	res, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_SERVING, res.GetStatus())

	// When it is marked as draining
	h.SetServing(false)
	res, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, res.GetStatus())
}
