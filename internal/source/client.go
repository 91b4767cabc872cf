// Package source is the fetch boundary: an HTTP client for JSON status
// endpoints, the failure taxonomy, and the per-source fetch state shared by
// every view that references a source.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tinytelemetry/opsdeck/internal/model"
)

const (
	maxBodyBytes  = 8 << 20
	maxErrorBytes = 256
)

// Payload is one successfully fetched and validated response body.
type Payload struct {
	Raw       json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
	Latency   time.Duration   `json:"latency"`
}

// Fetcher retrieves the current payload of a source.
type Fetcher interface {
	Fetch(ctx context.Context, spec model.SourceSpec) (Payload, error)
}

// Client talks JSON to the monitored backends.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a client rooted at baseURL. Every request is bounded by
// timeout in addition to the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = model.DefaultFetchTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
		now:        time.Now,
	}
}

// BaseURL returns the root all relative paths resolve against.
func (c *Client) BaseURL() string { return c.baseURL }

// Fetch requests spec's endpoint and validates the body against its shape.
func (c *Client) Fetch(ctx context.Context, spec model.SourceSpec) (Payload, error) {
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	start := c.now()
	raw, err := c.do(ctx, spec.ID, method, spec.Path, nil, nil)
	if err != nil {
		return Payload{}, err
	}
	if err := CheckShape(raw, spec.Shape); err != nil {
		return Payload{}, wrap(spec.ID, KindMalformed, err)
	}
	end := c.now()
	return Payload{Raw: raw, FetchedAt: end, Latency: end.Sub(start)}, nil
}

// DoJSON sends body (if non-nil) as JSON and decodes the response into out.
func (c *Client) DoJSON(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	raw, err := c.do(ctx, path, method, path, reqBody, headers)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return wrap(path, KindMalformed, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, name, method, path string, body io.Reader, headers map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, wrap(name, KindNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrap(name, classifyTransport(ctx, err), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, wrap(name, classifyTransport(ctx, err), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fe := wrap(name, KindNetwork, fmt.Errorf("%s", snippet(raw)))
		fe.Status = resp.StatusCode
		return nil, fe
	}
	return raw, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func classifyTransport(ctx context.Context, err error) ErrorKind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	return Classify(err)
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return "empty response"
	}
	if len(s) > maxErrorBytes {
		s = s[:maxErrorBytes] + "..."
	}
	return s
}
