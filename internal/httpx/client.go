package httpx

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
	"time"

	"opshub/internal/config"
	"opshub/internal/logger"

	"golang.org/x/time/rate"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Service string
	Status  int
	Body    string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.Status, body)
}

// IsStatus reports whether err is an APIError with one of the given codes.
func IsStatus(err error, codes ...int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.Status == code {
			return true
		}
	}
	return false
}

// Options configures a Client. RateLimit is requests per second and zero
// disables limiting. HTTPClient replaces the default client, e.g. with one
// from golang.org/x/oauth2.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64
	Burst      int
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// OptionsFromConfig builds the shared defaults from HTTP_TIMEOUT and HTTP_MAX_RETRIES.
func OptionsFromConfig(cfg *config.Config, log *logger.Logger) Options {
	return Options{Timeout: cfg.HTTPTimeout, MaxRetries: cfg.HTTPMaxRetries, Logger: log}
}

// With returns a copy with the given rate limit.
func (o Options) With(ratePerSecond float64, burst int) Options {
	o.RateLimit = ratePerSecond
	o.Burst = burst
	return o
}

// Client is the JSON-over-HTTP plumbing every vendor client is built on.
type Client struct {
	service string
	baseURL string
	headers http.Header
	auth    func(*http.Request)
	http    *http.Client
	limiter *rate.Limiter
	retrier Retrier
	logger  *logger.Logger
}

func New(service, baseURL string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	return &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: http.Header{"Accept": []string{"application/json"}},
		http:    httpClient,
		limiter: limiter,
		retrier: NewRetrier(opts.MaxRetries, opts.RetryDelay),
		logger:  log.WithField("service", service),
	}
}

func (c *Client) SetHeader(key, value string) *Client {
	c.headers.Set(key, value)
	return c
}

// SetAuth installs a hook run on every outgoing request.
func (c *Client) SetAuth(fn func(*http.Request)) *Client {
	c.auth = fn
	return c
}

// SetBearer authenticates with a static bearer token.
func (c *Client) SetBearer(token string) *Client {
	return c.SetHeader("Authorization", "Bearer "+token)
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) (http.Header, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) (http.Header, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}) (http.Header, error) {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Do sends one request, retrying throttled and transient failures. path may
// be absolute, which is how cursor links returned by an API are followed.
// body is JSON-encoded unless it is already []byte; out may be nil.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) (http.Header, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + path
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}

	var payload []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		payload = b
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", c.service, err)
		}
		payload = encoded
	}

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		header, err := c.send(ctx, method, target, payload, out)
		if err == nil {
			return header, nil
		}

		delay, retry := c.retrier.Next(attempt, err, header)
		if !retry || (isTransport(err) && !idempotent(method)) {
			return header, err
		}
		c.logger.Warn("%s %s failed (attempt %d), retrying in %s: %v", method, path, attempt+1, delay, err)
		if err := sleep(ctx, delay); err != nil {
			return header, err
		}
	}
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte, out interface{}) (http.Header, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != nil {
		c.auth(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.Header, &transportError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.Header, &APIError{Service: c.service, Status: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if raw, ok := out.(*[]byte); ok {
			*raw = respBody
			return resp.Header, nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.Header, fmt.Errorf("%s: failed to parse response: %w", c.service, err)
		}
	}
	return resp.Header, nil
}

// transportError marks failures that never produced a response.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// A request that failed without a response may still have been applied, so
// only methods that are safe to repeat are resent after a transport error.
func isTransport(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
