// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/pulselog/pulselog-go/internal/version"
)

const (
	eventsPath   = "/v1/events"
	userInfoPath = "/v1/identify"
	viewsPath    = "/v1/views"

	apiKeyHeader = "X-Pulselog-Key"

	defaultTimeout = 30 * time.Second

	// maxResponseSize bounds how much of a success body is kept (view
	// definitions); maxErrorSize bounds the snippet kept for error text.
	maxResponseSize = 1 << 20
	maxErrorSize    = 1024
)

// HTTPConfig configures the HTTP implementation of Sender.
type HTTPConfig struct {
	// Endpoint is the base URL of the collection service, e.g.
	// "https://in.pulselog.example".
	Endpoint string `mapstructure:"endpoint"`

	// Timeout bounds every request. Defaults to 30s.
	Timeout time.Duration `mapstructure:"timeout"`

	// DisableCompression turns off gzip encoding of request bodies.
	DisableCompression bool `mapstructure:"disable_compression"`
}

// Validate checks that the endpoint is a usable base URL.
func (c *HTTPConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf(`"endpoint" is required`)
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf(`invalid "endpoint" %q: %w`, c.Endpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf(`invalid "endpoint" %q: must be an http(s) URL`, c.Endpoint)
	}
	return nil
}

// HTTPSender delivers payloads to the collection service as gzipped JSON over
// HTTP. Responses are mapped to the pipeline's failure classes: 2xx succeeds,
// 408/429 and all 5xx are recoverable, any other 4xx is permanent.
type HTTPSender struct {
	client    *http.Client
	apiKey    string
	compress  bool
	base      string
	userAgent string
}

var _ Sender = (*HTTPSender)(nil)

// NewHTTPSender returns a Sender that posts to the service at cfg.Endpoint,
// authenticating every request with apiKey.
func NewHTTPSender(cfg HTTPConfig, apiKey string) (*HTTPSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPSender{
		client:    &http.Client{Timeout: timeout},
		apiKey:    apiKey,
		compress:  !cfg.DisableCompression,
		base:      strings.TrimRight(cfg.Endpoint, "/"),
		userAgent: version.UserAgent(),
	}, nil
}

// SendEvents implements Sender.
func (s *HTTPSender) SendEvents(ctx context.Context, p EventsPayload) error {
	_, err := s.post(ctx, s.base+eventsPath, p)
	return err
}

// SendUserInfo implements Sender.
func (s *HTTPSender) SendUserInfo(ctx context.Context, p UserInfoPayload) error {
	_, err := s.post(ctx, s.base+userInfoPath, p)
	return err
}

type viewRequest struct {
	ID string `json:"id"`
}

// FetchOrCreateView implements Sender.
func (s *HTTPSender) FetchOrCreateView(ctx context.Context, id string) (ViewDefinition, error) {
	body, err := s.post(ctx, s.base+viewsPath, viewRequest{ID: id})
	if err != nil {
		return nil, err
	}
	return ViewDefinition(body), nil
}

var gzipWriterPool = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

func compressBody(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(zw)
	zw.Reset(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// post encodes payload, performs one request and returns the response body of
// a successful call. It never retries; retrying is the pipeline's decision.
func (s *HTTPSender) post(ctx context.Context, url string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Encoding cannot be fixed by resending the same payload.
		return nil, Permanent(fmt.Errorf("failed to encode payload: %w", err))
	}
	body := raw
	if s.compress {
		if body, err = compressBody(raw); err != nil {
			return nil, Permanent(fmt.Errorf("failed to compress payload: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set(apiKeyHeader, s.apiKey)
	if s.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", url, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		out, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
		}
		return out, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSize))
	rerr := fmt.Errorf("%s returned %q: %s", url, resp.Status, bytes.TrimSpace(snippet))
	if permanentStatus(resp.StatusCode) {
		return nil, Permanent(rerr)
	}
	return nil, rerr
}

// permanentStatus reports whether a status code can never succeed on a resend
// of the same payload.
func permanentStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return code >= 400 && code < 500
}
