package netcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// HTTPProber issues a HEAD request and follows redirects. 2xx and 3xx are up.
type HTTPProber struct {
	target  string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPProber creates an HTTP prober. A nil client gets one with timeout.
func NewHTTPProber(target string, timeout time.Duration, client *http.Client) *HTTPProber {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPProber{target: target, timeout: timeout, client: client}
}

func (p *HTTPProber) Probe(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.target, nil)
	if err != nil {
		return "", fmt.Errorf("HTTP request to %s failed: %w", p.target, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("HTTP request to %s timed out after %s", p.target, p.timeout)
		}
		return "", fmt.Errorf("HTTP request to %s failed: %w", p.target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return fmt.Sprintf("HTTP request to %s successful (Status code: %d)", p.target, resp.StatusCode), nil
	}
	return "", fmt.Errorf("HTTP request to %s failed (Status code: %d)", p.target, resp.StatusCode)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
