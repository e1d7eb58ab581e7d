package netcheck

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/openconfig/gnmi/proto/gnmi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GNMIProber sends a one-shot Capabilities request. Any response means the
// device's gNMI server is reachable.
type GNMIProber struct {
	address string
	timeout time.Duration
	creds   Credentials
}

// NewGNMIProber creates a Capabilities prober for address (host:port)
func NewGNMIProber(address string, timeout time.Duration, creds Credentials) *GNMIProber {
	return &GNMIProber{address: address, timeout: timeout, creds: creds}
}

func (p *GNMIProber) Probe(ctx context.Context) (string, error) {
	dialCtx, dialCancel := context.WithTimeout(ctx, p.timeout)
	defer dialCancel()

	conn, err := grpc.DialContext(dialCtx, p.address, append(p.dialOptions(), grpc.WithBlock())...)
	if err != nil {
		return "", fmt.Errorf("gNMI dial %s failed: %w", p.address, err)
	}
	defer conn.Close()

	capCtx, capCancel := context.WithTimeout(ctx, p.timeout)
	defer capCancel()

	resp, err := gnmi.NewGNMIClient(conn).Capabilities(capCtx, &gnmi.CapabilityRequest{})
	if err != nil {
		return "", fmt.Errorf("gNMI capabilities request to %s failed: %w", p.address, err)
	}
	return fmt.Sprintf("gNMI capabilities from %s (version %s, %d models)",
		p.address, resp.GetGNMIVersion(), len(resp.GetSupportedModels())), nil
}

func (p *GNMIProber) dialOptions() []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	// same as gnmic --insecure --username --password
	if p.creds.Username != "" || p.creds.Password != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(&basicAuth{username: p.creds.Username, password: p.creds.Password}))
	}
	return opts
}

// basicAuth implements gRPC PerRPCCredentials for basic auth
type basicAuth struct {
	username string
	password string
}

func (b *basicAuth) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	if b.username == "" && b.password == "" {
		return nil, nil
	}
	auth := b.username + ":" + b.password
	return map[string]string{
		"authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(auth)),
	}, nil
}

func (b *basicAuth) RequireTransportSecurity() bool {
	return false
}
