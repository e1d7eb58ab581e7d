package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultDeliveryTimeout = 10 * time.Second
	maxErrorBody           = 512
)

// HTTPDeliverer posts JSON payloads to webhook URLs
type HTTPDeliverer struct {
	client *http.Client
}

// NewHTTPDeliverer creates a deliverer. A nil client gets a 10s timeout client.
func NewHTTPDeliverer(client *http.Client) *HTTPDeliverer {
	if client == nil {
		client = &http.Client{Timeout: defaultDeliveryTimeout}
	}
	return &HTTPDeliverer{client: client}
}

// Deliver POSTs payload to url. Any transport error or non-2xx status fails.
func (d *HTTPDeliverer) Deliver(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
