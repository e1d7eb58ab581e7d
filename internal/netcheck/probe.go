package netcheck

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Prober performs a single reachability attempt against one target. The
// returned detail is a human readable line for notifications.
type Prober interface {
	Probe(ctx context.Context) (detail string, err error)
}

// Credentials are optional per-RPC basic auth credentials for gNMI targets
type Credentials struct {
	Username string
	Password string
}

// SupportedSchemes lists the target schemes a prober exists for
var SupportedSchemes = []string{"http", "https", "grpc", "gnmi"}

// NewProber picks the probe implementation from the target's scheme
func NewProber(target string, timeout time.Duration, creds Credentials) (Prober, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target %q: %w", target, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("target %q has no host", target)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPProber(target, timeout, nil), nil
	case "grpc":
		return NewGRPCProber(u.Host, timeout), nil
	case "gnmi":
		return NewGNMIProber(u.Host, timeout, creds), nil
	default:
		return nil, fmt.Errorf("unsupported target scheme %q (supported: %s)", u.Scheme, strings.Join(SupportedSchemes, ", "))
	}
}
