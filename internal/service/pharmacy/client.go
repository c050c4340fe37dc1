package pharmacy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"fsanano/pharmacy-storefront/internal/metrics"
)

type Config struct {
	APIURL  string
	Timeout time.Duration
	// RateLimit caps outbound requests per second. Zero disables it.
	RateLimit float64
}

// TokenSource yields the bearer token to attach, or "" for anonymous requests.
type TokenSource interface {
	Token() string
}

type Client struct {
	client    *http.Client
	transport *AuthTransport
	config    Config
	limiter   *rate.Limiter
	log       logrus.FieldLogger

	loading atomic.Bool

	errMu   sync.RWMutex
	lastErr *APIError
}

func NewClient(cfg Config, log logrus.FieldLogger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if log == nil {
		log = logrus.StandardLogger()
	}

	transport := &AuthTransport{Base: http.DefaultTransport}

	c := &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		transport: transport,
		config:    cfg,
		log:       log.WithField("component", "pharmacy_client"),
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// SetTokenSource selects where bearer tokens come from for subsequent requests.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.transport.setTokenSource(ts)
}

// IsLoading reports whether a request is in flight. Any completing request
// resets it, so overlapping requests can under-report.
func (c *Client) IsLoading() bool {
	return c.loading.Load()
}

// LastError returns the error of the most recent failed request, cleared
// whenever a new request starts.
func (c *Client) LastError() *APIError {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.lastErr
}

// AuthTransport adds the bearer token and the common request headers
type AuthTransport struct {
	Base http.RoundTripper

	mu     sync.RWMutex
	tokens TokenSource
}

func (t *AuthTransport) setTokenSource(ts TokenSource) {
	t.mu.Lock()
	t.tokens = ts
	t.mu.Unlock()
}

func (t *AuthTransport) token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.tokens == nil {
		return ""
	}
	return t.tokens.Token()
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())

	if token := t.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br, gzip")
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// Setting Accept-Encoding ourselves turns off net/http's transparent gzip,
	// so both encodings are decoded here.
	var decoded io.Reader
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		decoded = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to open gzip body: %w", err)
		}
		decoded = gz
	default:
		return resp, nil
	}

	resp.Body = &readCloserWrapper{Reader: decoded, Closer: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	return resp, nil
}

type readCloserWrapper struct {
	io.Reader
	io.Closer
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func jsonRequest(method, path string, payload any) (request, error) {
	r := request{method: method, path: path}
	if payload == nil {
		return r, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return r, err
	}
	r.body = bytes.NewReader(b)
	r.contentType = "application/json"
	return r, nil
}

// do runs one exchange and decodes a 2xx body into out. Every failure comes
// back as *APIError and is also recorded as the last error.
func (c *Client) do(ctx context.Context, r request, out any) error {
	c.begin()
	defer c.loading.Store(false)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.fail(r, 0, nil, err)
		}
	}

	u := c.config.APIURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return c.fail(r, 0, nil, err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	done := metrics.APIRequestStarted(r.method)
	resp, err := c.client.Do(req)
	if err != nil {
		done(0)
		return c.fail(r, 0, nil, err)
	}
	done(resp.StatusCode)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(r, resp.StatusCode, nil, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(r, resp.StatusCode, body, nil)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		apiErr := newAPIError(0, nil, err)
		apiErr.Message = "invalid response body"
		return c.record(r, apiErr)
	}
	return nil
}

func (c *Client) begin() {
	c.loading.Store(true)
	c.errMu.Lock()
	c.lastErr = nil
	c.errMu.Unlock()
}

func (c *Client) fail(r request, status int, body []byte, cause error) error {
	return c.record(r, newAPIError(status, body, cause))
}

func (c *Client) record(r request, apiErr *APIError) error {
	c.errMu.Lock()
	c.lastErr = apiErr
	c.errMu.Unlock()

	entry := c.log.WithFields(logrus.Fields{
		"method": r.method,
		"path":   r.path,
		"status": apiErr.StatusCode,
	})
	if apiErr.Err != nil && !errors.Is(apiErr.Err, context.Canceled) {
		entry = entry.WithError(apiErr.Err)
	}
	entry.Debug(apiErr.Message)

	return apiErr
}
