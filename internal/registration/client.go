// Package registration is the client for the Gotta.Bike registration service.
//
// Every operation performs a single request over its own short-lived
// transport and resolves to a typed result envelope; only caller defects
// (ConfigurationError) are returned as errors.
package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/id-gotta-bike/gottabike-bot/internal/logger"
)

// Default client settings.
const (
	DefaultLookupTimeout    = 10 * time.Second
	DefaultGuildPostTimeout = 30 * time.Second
	DefaultCheckTimeout     = 10 * time.Second

	apiKeyHeader = "X-API-Key"
	maxBodyBytes = 1 << 20
	tracerName   = "github.com/id-gotta-bike/gottabike-bot/internal/registration"
)

// Config holds the client settings. A zero MagicLinkTimeout leaves magic link
// requests without a client-side deadline.
type Config struct {
	BaseURL          string
	APIKey           string
	LookupTimeout    time.Duration
	MagicLinkTimeout time.Duration
	GuildPostTimeout time.Duration
	CheckTimeout     time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithTracer sets the tracer used for operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithTransport sets the transport template cloned for every call.
func WithTransport(transport *http.Transport) Option {
	return func(c *Client) {
		if transport != nil {
			c.transport = transport
		}
	}
}

// Client talks to the registration service. It holds no mutable state and is
// safe for concurrent use.
type Client struct {
	cfg       Config
	logger    *slog.Logger
	tracer    trace.Tracer
	transport *http.Transport
}

// NewClient creates a client from cfg. Zero timeouts other than
// MagicLinkTimeout are replaced by their defaults.
func NewClient(log *slog.Logger, cfg Config, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}
	if cfg.GuildPostTimeout <= 0 {
		cfg.GuildPostTimeout = DefaultGuildPostTimeout
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = DefaultCheckTimeout
	}
	c := &Client{
		cfg:       cfg,
		logger:    log.With(slog.String("component", "registration")),
		tracer:    otel.Tracer(tracerName),
		transport: http.DefaultTransport.(*http.Transport),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the client settings.
func (c *Client) Config() Config {
	return c.cfg
}

// attempt is the result of one request: either a complete response
// (failure is FailureNone) or a classified fault.
type attempt struct {
	status  int
	body    []byte
	failure Failure
	err     error
}

func (a attempt) delivered() bool {
	return a.failure == FailureNone
}

type request struct {
	method   string
	path     string
	rawQuery string
	body     any
	timeout  time.Duration
}

func (c *Client) endpoint(path, rawQuery string) string {
	u := c.cfg.BaseURL + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

// do performs exactly one request on a transport that is released before it
// returns. Redirects are returned as-is, never followed.
func (c *Client) do(ctx context.Context, r request) attempt {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var payload io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return attempt{failure: FailureUnknown, err: fmt.Errorf("marshal body: %w", err)}
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path, r.rawQuery), payload)
	if err != nil {
		return attempt{failure: FailureUnknown, err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	transport := c.transport.Clone()
	defer transport.CloseIdleConnections()
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		kind := classifyTransport(err)
		return attempt{failure: kind, err: &TransportError{Kind: kind, Err: err}}
	}
	defer resp.Body.Close() //nolint:errcheck // body fully read or abandoned

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err == nil && len(data) > maxBodyBytes {
		err = fmt.Errorf("%w: over %d bytes", errBodyTooLarge, maxBodyBytes)
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", errBodyRead, err)
		kind := classifyTransport(err)
		return attempt{status: resp.StatusCode, failure: kind, err: &TransportError{Kind: kind, Err: err}}
	}
	return attempt{status: resp.StatusCode, body: data}
}

func (c *Client) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, env Envelope) {
	span.SetAttributes(
		attribute.Int("http.response.status_code", env.StatusCode),
		attribute.String("registration.failure", string(env.Failure)),
	)
	if env.Failure != FailureNone {
		span.SetStatus(codes.Error, env.StatusMessage)
		if env.Cause != nil {
			span.RecordError(env.Cause)
		}
	}
	span.End()
}

// loggerFor prefers the caller's scoped logger so call lines carry its attributes.
func (c *Client) loggerFor(ctx context.Context) *slog.Logger {
	return logger.FromContextOr(ctx, c.logger)
}

// logOutcome logs a finished call: remote contract violations and unknown
// faults at error level, everything else lower.
func (c *Client) logOutcome(ctx context.Context, op string, env Envelope, attrs ...any) {
	log := c.loggerFor(ctx)
	args := append([]any{
		slog.String("op", op),
		slog.Int("status_code", env.StatusCode),
		slog.String("failure", string(env.Failure)),
	}, attrs...)
	if env.Cause != nil {
		args = append(args, slog.Any("error", env.Cause))
	}
	switch env.Failure {
	case FailureNone:
		log.DebugContext(ctx, "registration call succeeded", args...)
	case FailureRemoteReported:
		log.InfoContext(ctx, "registration service declined request", args...)
	case FailureTimeout, FailureTransport, FailureProtocol:
		log.WarnContext(ctx, "registration service unreachable", args...)
	default:
		log.ErrorContext(ctx, "registration call failed", args...)
	}
}
