package netcheck

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openconfig/gnmi/proto/gnmi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

func TestHTTPProber(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tests := []struct {
		name    string
		path    string
		wantErr string
		detail  string
	}{
		{name: "2xx", path: "/ok", detail: "Status code: 200"},
		{name: "redirect followed", path: "/moved", detail: "Status code: 200"},
		{name: "5xx", path: "/broken", wantErr: "Status code: 503"},
		{name: "timeout", path: "/slow", wantErr: "timed out after 100ms"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewHTTPProber(srv.URL+tc.path, 100*time.Millisecond, nil)
			detail, err := p.Probe(context.Background())
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, detail, tc.detail)
		})
	}
}

func TestHTTPProber_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	_, err := NewHTTPProber(target, time.Second, nil).Probe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func serveGRPC(t *testing.T, register func(*grpc.Server)) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := grpc.NewServer()
	register(s)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)
	return lis.Addr().String()
}

func TestGRPCProber(t *testing.T) {
	hs := health.NewServer()
	addr := serveGRPC(t, func(s *grpc.Server) { healthpb.RegisterHealthServer(s, hs) })
	p := NewGRPCProber(addr, 2*time.Second)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	detail, err := p.Probe(context.Background())
	require.NoError(t, err)
	assert.Contains(t, detail, "SERVING")

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	_, err = p.Probe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_SERVING")
}

type fakeGNMI struct {
	gnmi.UnimplementedGNMIServer
	auth []string
}

func (f *fakeGNMI) Capabilities(ctx context.Context, _ *gnmi.CapabilityRequest) (*gnmi.CapabilityResponse, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	f.auth = md.Get("authorization")
	return &gnmi.CapabilityResponse{
		GNMIVersion:     "0.8.0",
		SupportedModels: []*gnmi.ModelData{{Name: "openconfig-interfaces"}},
	}, nil
}

func TestGNMIProber(t *testing.T) {
	fake := &fakeGNMI{}
	addr := serveGRPC(t, func(s *grpc.Server) { gnmi.RegisterGNMIServer(s, fake) })

	p := NewGNMIProber(addr, 2*time.Second, Credentials{Username: "admin", Password: "secret"})
	detail, err := p.Probe(context.Background())
	require.NoError(t, err)
	assert.Contains(t, detail, "version 0.8.0, 1 models")
	// base64("admin:secret")
	assert.Equal(t, []string{"Basic YWRtaW46c2VjcmV0"}, fake.auth)
}

func TestGNMIProber_Unreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	_, err = NewGNMIProber(addr, 200*time.Millisecond, Credentials{}).Probe(context.Background())
	assert.Error(t, err)
}

func TestNewProber_Schemes(t *testing.T) {
	tests := []struct {
		target string
		want   interface{}
	}{
		{"https://www.google.com", &HTTPProber{}},
		{"http://10.0.0.1:8080/health", &HTTPProber{}},
		{"grpc://10.0.0.2:50051", &GRPCProber{}},
		{"gnmi://switch-1:57400", &GNMIProber{}},
	}
	for _, tc := range tests {
		p, err := NewProber(tc.target, time.Second, Credentials{})
		require.NoError(t, err, tc.target)
		assert.IsType(t, tc.want, p, tc.target)
	}

	_, err := NewProber("ftp://example.com", time.Second, Credentials{})
	assert.ErrorContains(t, err, "unsupported target scheme")

	_, err = NewProber("www.google.com", time.Second, Credentials{})
	assert.Error(t, err)
}
