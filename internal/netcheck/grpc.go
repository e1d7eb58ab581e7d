package netcheck

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCProber calls grpc.health.v1.Health/Check for the overall server
type GRPCProber struct {
	address string
	timeout time.Duration
}

// NewGRPCProber creates a health check prober for address (host:port)
func NewGRPCProber(address string, timeout time.Duration) *GRPCProber {
	return &GRPCProber{address: address, timeout: timeout}
}

func (p *GRPCProber) Probe(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := grpc.DialContext(ctx, p.address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return "", fmt.Errorf("gRPC dial %s failed: %w", p.address, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return "", fmt.Errorf("gRPC health check to %s failed: %w", p.address, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return "", fmt.Errorf("gRPC health check to %s failed (status: %s)", p.address, resp.GetStatus())
	}
	return fmt.Sprintf("gRPC health check to %s successful (status: %s)", p.address, resp.GetStatus()), nil
}
