// Package messaging is a client for the LINE Messaging API: replies, push
// and multicast messages, broadcasts, profiles and message content.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gojektech/heimdall/v6"
	"github.com/gojektech/heimdall/v6/httpclient"
	"github.com/harun/lineapi/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DefaultAPIBaseURL serves every endpoint except message content
	DefaultAPIBaseURL = "https://api.line.me"
	// DefaultDataAPIBaseURL serves message content
	DefaultDataAPIBaseURL = "https://api-data.line.me"

	// RetryKeyHeader makes push, multicast and broadcast requests idempotent
	RetryKeyHeader = "X-Line-Retry-Key"
	// RequestIDHeader is set by the API on every response
	RequestIDHeader = "X-Line-Request-Id"

	tracerName = "lineapi/messaging"
)

// Recorder receives one observation per API call. *metrics.Metrics
// satisfies it.
type Recorder interface {
	ObserveAPIRequest(endpoint string, code int, duration time.Duration)
}

// Options configures a Client
type Options struct {
	ChannelAccessToken string
	APIBaseURL         string
	DataAPIBaseURL     string
	Timeout            time.Duration
	// RetryCount is the number of extra attempts after a transport error
	// or a 5xx response
	RetryCount   int
	RetryBackoff time.Duration

	// HTTPClient replaces the underlying transport, mostly for tests
	HTTPClient heimdall.Doer
	Recorder   Recorder
	Logger     zerolog.Logger
}

// Client calls the Messaging API
type Client struct {
	http     *httpclient.Client
	options  Options
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewClient creates a client. A channel access token is required.
func NewClient(options Options) (*Client, error) {
	if options.ChannelAccessToken == "" {
		return nil, fmt.Errorf("channel access token is required")
	}
	if options.APIBaseURL == "" {
		options.APIBaseURL = DefaultAPIBaseURL
	}
	if options.DataAPIBaseURL == "" {
		options.DataAPIBaseURL = DefaultDataAPIBaseURL
	}
	options.APIBaseURL = strings.TrimRight(options.APIBaseURL, "/")
	options.DataAPIBaseURL = strings.TrimRight(options.DataAPIBaseURL, "/")
	if options.Timeout <= 0 {
		options.Timeout = 10 * time.Second
	}
	if options.RetryCount < 0 {
		options.RetryCount = 0
	}
	if options.RetryBackoff <= 0 {
		options.RetryBackoff = 500 * time.Millisecond
	}

	backoff := heimdall.NewConstantBackoff(options.RetryBackoff, 5*time.Millisecond)

	clientOpts := []httpclient.Option{
		httpclient.WithHTTPTimeout(options.Timeout),
		httpclient.WithRetrier(heimdall.NewRetrier(backoff)),
		httpclient.WithRetryCount(options.RetryCount),
	}
	if options.HTTPClient != nil {
		clientOpts = append(clientOpts, httpclient.WithHTTPClient(options.HTTPClient))
	}

	logger := options.Logger.With().Str("component", "messaging").Logger()

	hc := httpclient.NewClient(clientOpts...)
	hc.AddPlugin(&attemptLogger{logger: logger})

	return &Client{
		http:     hc,
		options:  options,
		validate: newValidator(),
		logger:   logger,
	}, nil
}

// attemptLogger logs each HTTP attempt, including retries
type attemptLogger struct {
	logger zerolog.Logger
}

func (p *attemptLogger) OnRequestStart(req *http.Request) {
	p.logger.Debug().Str("method", req.Method).Str("path", req.URL.Path).Msg("API request started")
}

func (p *attemptLogger) OnRequestEnd(req *http.Request, resp *http.Response) {
	p.logger.Debug().Str("path", req.URL.Path).Int("status", resp.StatusCode).Msg("API request finished")
}

func (p *attemptLogger) OnError(req *http.Request, err error) {
	p.logger.Warn().Str("path", req.URL.Path).Err(err).Msg("API request attempt failed")
}

// call describes one API request
type call struct {
	endpoint string
	method   string
	url      string
	body     interface{}
	retryKey string
}

// response is a fully read API response
type response struct {
	status      int
	contentType string
	body        []byte
}

func (c *Client) do(ctx context.Context, rc call) (*response, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "messaging."+rc.endpoint,
		attribute.String("http.method", rc.method),
		attribute.String("line.endpoint", rc.endpoint),
	)
	defer span.End()

	resp, err := c.roundTrip(ctx, rc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger := tracing.LoggerFromContext(ctx, c.logger)
		logger.Error().Err(err).Str("endpoint", rc.endpoint).Msg("API call failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.status))
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, rc call) (*response, error) {
	var reqBody io.Reader
	if rc.body != nil {
		data, err := json.Marshal(rc.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", rc.endpoint, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, rc.method, rc.url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", rc.endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.options.ChannelAccessToken)
	req.Header.Set("User-Agent", "lineapi-go")
	if rc.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rc.retryKey != "" {
		req.Header.Set(RetryKeyHeader, rc.retryKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// heimdall hands back the last response along with errors from earlier attempts
		if resp != nil {
			resp.Body.Close()
		}
		c.observe(rc.endpoint, 0, start)
		return nil, fmt.Errorf("%s request failed: %w", rc.endpoint, err)
	}
	defer resp.Body.Close()
	c.observe(rc.endpoint, resp.StatusCode, start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", rc.endpoint, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get(RequestIDHeader),
		}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	return &response{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        body,
	}, nil
}

func (c *Client) observe(endpoint string, code int, start time.Time) {
	if c.options.Recorder != nil {
		c.options.Recorder.ObserveAPIRequest(endpoint, code, time.Since(start))
	}
}
