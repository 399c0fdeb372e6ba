package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultUploadBytes = 4 << 20
	maxIPResponse      = 64
)

// HTTPThroughputMeter times a download from and an upload to fixed
// test endpoints and converts byte counts to Mbps. It measures goodput
// rather than raw line rate, which is what the display reports anyway.
type HTTPThroughputMeter struct {
	DownloadURL string
	UploadURL   string
	UploadBytes int64
	Client      *http.Client
}

func (m *HTTPThroughputMeter) client() *http.Client {
	if m.Client != nil {
		return m.Client
	}
	return http.DefaultClient
}

func (m *HTTPThroughputMeter) Measure(ctx context.Context) (float64, float64, error) {
	down, err := m.download(ctx)
	if err != nil {
		return 0, 0, err
	}
	up, err := m.upload(ctx)
	if err != nil {
		return 0, 0, err
	}
	return down, up, nil
}

func (m *HTTPThroughputMeter) download(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.DownloadURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build download request: %w", err)
	}

	start := time.Now()
	resp, err := m.client().Do(req)
	if err != nil {
		return 0, mapTransportErr("download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return 0, mapTransportErr("download", err)
	}
	return mbps(n, time.Since(start)), nil
}

func (m *HTTPThroughputMeter) upload(ctx context.Context) (float64, error) {
	size := m.UploadBytes
	if size <= 0 {
		size = defaultUploadBytes
	}
	body := bytes.Repeat([]byte{0x5a}, int(size))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.UploadURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	start := time.Now()
	resp, err := m.client().Do(req)
	if err != nil {
		return 0, mapTransportErr("upload", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("upload: unexpected status %d", resp.StatusCode)
	}
	return mbps(size, time.Since(start)), nil
}

func mbps(n int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(n) * 8 / 1e6 / elapsed.Seconds()
}

// HTTPAddrResolver fetches the link's public address from a plain-text
// "what is my IP" endpoint.
type HTTPAddrResolver struct {
	URL    string
	Client *http.Client
}

func (r *HTTPAddrResolver) ExternalIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build ip request: %w", err)
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", mapTransportErr("ip lookup", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip lookup: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIPResponse))
	if err != nil {
		return "", mapTransportErr("ip lookup", err)
	}
	raw := strings.TrimSpace(string(body))
	if net.ParseIP(raw) == nil {
		return "", fmt.Errorf("ip lookup: %q is not an address", raw)
	}
	return raw, nil
}

func mapTransportErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return ErrTimeout
	}
	return fmt.Errorf("%s: %w", op, err)
}
