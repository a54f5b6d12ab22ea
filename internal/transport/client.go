// Package transport issues authenticated, rate-governed HTTP calls to a
// provider and classifies failures into the typed error taxonomy.
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/auth"
	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/logging"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/ratelimit"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/security"
)

const (
	defaultTimeout       = 7 * time.Second
	defaultRetryDelay    = 250 * time.Millisecond
	defaultRateLimitWait = time.Second
	maxBodyBytes         = 64 << 20
	maxErrorBodyBytes    = 4 << 10
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=transport_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an HTTP client bound to one provider base URL.
type Client struct {
	// name identifies the provider in logs and metrics.
	name string
	// baseURL is the base URL relative paths resolve against.
	baseURL *url.URL
	// httpClient is the HTTP httpClient.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// timeout bounds each attempt, including reading the body.
	timeout    time.Duration
	retryDelay time.Duration
	governor   *ratelimit.Governor
	authorizer auth.Authorizer
	logger     zerolog.Logger
	meter      metric.Meter
	metrics    *clientMetrics

	rawBaseURL string
}

// Option is a configuration option for the transport client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.rawBaseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetryDelay sets the fixed delay before the single retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithGovernor routes every attempt through the rate governor.
func WithGovernor(g *ratelimit.Governor) Option {
	return func(c *Client) {
		c.governor = g
	}
}

// WithAuthorizer sets how requests are authenticated.
func WithAuthorizer(a auth.Authorizer) Option {
	return func(c *Client) {
		c.authorizer = a
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMeter sets the meter used for request metrics.
func WithMeter(m metric.Meter) Option {
	return func(c *Client) {
		c.meter = m
	}
}

// New creates a transport client for the named provider.
func New(name string, opts ...Option) (*Client, error) {
	c := &Client{
		name:       name,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		timeout:    defaultTimeout,
		retryDelay: defaultRetryDelay,
		authorizer: auth.Anonymous{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if strings.TrimSpace(c.rawBaseURL) == "" {
		return nil, apperrors.NewConfigurationError(name+".base_url", "base url is required")
	}
	u, err := url.Parse(strings.TrimRight(c.rawBaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperrors.NewConfigurationError(name+".base_url", "invalid base url "+c.rawBaseURL)
	}
	c.baseURL = u

	if c.meter == nil {
		c.meter = otel.Meter("stockdata.transport")
	}
	c.metrics = newClientMetrics(c.meter, name)
	c.logger = logging.WithProvider(c.logger, name)

	return c, nil
}

// BaseURL returns the resolved base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// Request describes one logical provider call.
type Request struct {
	Method string
	// Path is relative to the base URL unless it is absolute.
	Path     string
	Query    url.Values
	Form     url.Values
	Header   http.Header
	Category ratelimit.Category
}

// Response is a fully read provider response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// ContentType returns the media type without parameters.
func (r *Response) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(strings.ToLower(ct))
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return apperrors.NewSchemaError("response", "", "body is not valid JSON: "+err.Error())
	}
	return nil
}

// Do issues req. GET requests get one retry on network, timeout, 5xx and
// 429 failures. Mutating requests are retried only when the provider
// provably did not act on them: a 429, or a connection that was never
// established. Cancellation of ctx is never retried.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Category == "" {
		req.Category = ratelimit.Default
	}

	requestID := uuid.NewString()
	logger := c.logger.With().Str("request_id", requestID).Logger()
	logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Str("query", security.MaskValues(req.Query)).
		Str("form", security.MaskValues(req.Form)).
		Msg("provider request")
	category := string(req.Category)
	attempt := 0

	operation := func() (*Response, error) {
		attempt++
		if c.governor != nil {
			if err := c.governor.Acquire(ctx, req.Category); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		resp, err := c.once(ctx, req, logger, requestID, attempt)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil || !shouldRetry(req.Method, err) {
			return nil, backoff.Permanent(err)
		}

		var httpErr *apperrors.HTTPError
		if c.governor != nil && errors.As(err, &httpErr) && httpErr.IsRateLimit() {
			wait := httpErr.RetryAfter
			if wait <= 0 {
				wait = defaultRateLimitWait
			}
			c.governor.Penalize(req.Category, wait)
		}
		return nil, err
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryDelay)),
		backoff.WithMaxTries(2),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.metrics.recordRetry(ctx, category, req.Method)
			security.MaskedErr(logger.Warn(), err).
				Str("method", req.Method).
				Str("path", req.Path).
				Dur("retry_in", next).
				Msg("transient provider failure, retrying once")
		}),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		c.metrics.recordFailure(ctx, category, req.Method, apperrors.Kind(err))
		return nil, err
	}
	return resp, nil
}

// once performs a single attempt under its own timeout.
func (c *Client) once(ctx context.Context, req Request, logger zerolog.Logger, requestID string, attempt int) (*Response, error) {
	target := c.resolve(req.Path, req.Query)

	var body io.Reader
	if len(req.Form) > 0 && req.Method != http.MethodGet {
		body = strings.NewReader(req.Form.Encode())
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, target, body)
	if err != nil {
		return nil, apperrors.NewConfigurationError("request", err.Error())
	}
	for key, values := range c.header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if err := c.authorizer.Authorize(httpReq.Header); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, status, err := c.roundTrip(ctx, attemptCtx, httpReq)
	elapsed := time.Since(start)

	logging.LogAPICall(logger, requestID, req.Method, req.Path, attempt, status, elapsed, err)
	c.metrics.recordAttempt(ctx, string(req.Category), req.Method, status, elapsed)
	return resp, err
}

func (c *Client) roundTrip(ctx, attemptCtx context.Context, httpReq *http.Request) (*Response, int, error) {
	method, target := httpReq.Method, httpReq.URL.Redacted()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, c.classify(ctx, attemptCtx, method, target, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, httpResp.StatusCode, c.classify(ctx, attemptCtx, method, target, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, httpResp.StatusCode, parseHTTPError(httpResp.StatusCode, httpResp.Header, data)
	}

	header := httpResp.Header
	if header == nil {
		header = http.Header{}
	}
	return &Response{Status: httpResp.StatusCode, Header: header, Body: data}, httpResp.StatusCode, nil
}

// classify maps a transport-level failure onto the error taxonomy. A
// cancelled parent context is returned as is.
func (c *Client) classify(ctx, attemptCtx context.Context, method, target string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(method, target, c.timeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewTimeoutError(method, target, c.timeout)
	}
	var opErr *net.OpError
	dial := errors.As(err, &opErr) && opErr.Op == "dial"
	return apperrors.NewNetworkError(method, target, dial, err)
}

func (c *Client) resolve(path string, query url.Values) string {
	var u url.URL
	if abs, err := url.Parse(path); err == nil && abs.IsAbs() {
		u = *abs
	} else {
		u = *c.baseURL
		u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			for _, value := range values {
				q.Add(key, value)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func shouldRetry(method string, err error) bool {
	idempotent := method == http.MethodGet || method == http.MethodHead

	var httpErr *apperrors.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.IsRateLimit():
			return true
		case httpErr.IsServerError():
			return idempotent
		}
		return false
	}

	var netErr *apperrors.NetworkError
	if errors.As(err, &netErr) {
		return idempotent || netErr.Dial
	}

	var timeoutErr *apperrors.TimeoutError
	if errors.As(err, &timeoutErr) {
		return idempotent
	}
	return false
}

// parseHTTPError extracts the provider's error description from a non-2xx
// body. Kite sends {"status":"error","message","error_type"}; Yahoo nests
// {"code","description"} under an "error" key.
func parseHTTPError(status int, header http.Header, body []byte) *apperrors.HTTPError {
	snippet := body
	if len(snippet) > maxErrorBodyBytes {
		snippet = snippet[:maxErrorBodyBytes]
	}
	herr := apperrors.NewHTTPError(status, "", "", security.MaskString(string(snippet)))

	var payload map[string]any
	if json.NewDecoder(bytes.NewReader(body)).Decode(&payload) == nil {
		herr.Message, _ = payload["message"].(string)
		herr.ErrorType, _ = payload["error_type"].(string)
		if herr.Message == "" {
			herr.ErrorType, herr.Message = nestedError(payload)
		}
	}
	if herr.Message == "" {
		herr.Message = http.StatusText(status)
	}
	herr.Message = security.MaskString(herr.Message)

	if status == http.StatusTooManyRequests {
		herr.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
	}
	return herr
}

func nestedError(payload map[string]any) (code, description string) {
	for _, v := range payload {
		obj, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if e, ok := obj["error"].(map[string]any); ok {
			code, _ = e["code"].(string)
			description, _ = e["description"].(string)
			return code, description
		}
	}
	return "", ""
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
