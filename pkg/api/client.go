// Package api is the client for the matching platform's REST backend. The backend is an
// opaque collaborator: every call is one HTTP request against /api/<resource>/[<id>/].
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/zdunecki/matchfund/pkg/config"
)

// Client talks to the backend. Reads (GET) are retried on transient failures; writes never are.
type Client struct {
	base    *url.URL
	writes  *http.Client
	reads   *retryablehttp.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type options struct {
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	logger      *zap.Logger
}

// Option customises a Client.
type Option func(*options)

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped for authentication.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithTokenSource overrides the static token from configuration, e.g. with a session provider.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(o *options) { o.tokenSource = ts }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds a client from configuration.
func New(cfg config.API, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: invalid base URL %q", cfg.BaseURL)
	}

	o := options{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     zap.NewNop(),
	}
	if cfg.Token != "" {
		o.tokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	}
	for _, opt := range opts {
		opt(&o)
	}

	hc := *o.httpClient
	if o.tokenSource != nil {
		baseTransport := hc.Transport
		if baseTransport == nil {
			baseTransport = http.DefaultTransport
		}
		hc.Transport = &oauth2.Transport{Source: o.tokenSource, Base: baseTransport}
	}

	reads := retryablehttp.NewClient()
	reads.HTTPClient = &hc
	reads.RetryMax = cfg.RetryMax
	reads.RetryWaitMin = 200 * time.Millisecond
	reads.RetryWaitMax = 2 * time.Second
	reads.Logger = leveledLogger{o.logger.Sugar()}
	// Hand back the last response instead of a "giving up" error so non-2xx bodies survive.
	reads.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		base:    base,
		writes:  &hc,
		reads:   reads,
		limiter: rate.NewLimiter(limit, burst),
		logger:  o.logger,
	}, nil
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string { return c.base.String() }

// Path builds /api/<part>/<part>/.../ with each part escaped.
func Path(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(strings.Trim(p, "/")))
	}
	return "/api/" + strings.Join(escaped, "/") + "/"
}

// Do sends one JSON request. A nil in sends no body; a nil out discards the response body.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	body, err := c.roundTrip(ctx, method, path, in)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

// List fetches a collection and normalises its shape with DecodeList.
func (c *Client) List(ctx context.Context, path string, v any) error {
	body, err := c.roundTrip(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := DecodeList(body, v); err != nil {
		return fmt.Errorf("api: GET %s: %w", path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}

	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		payload = data
	}

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	target := u.String()

	start := time.Now()
	var resp *http.Response
	var err error
	if method == http.MethodGet {
		var req *retryablehttp.Request
		req, err = retryablehttp.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		resp, err = c.reads.Do(req)
	} else {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err = c.writes.Do(req)
	}
	if err != nil {
		c.logger.Debug("api request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))
	if err != nil {
		return nil, fmt.Errorf("api: read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       body,
		}
	}
	return body, nil
}

// leveledLogger adapts zap to retryablehttp's LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
