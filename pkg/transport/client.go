package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/time/rate"
)

// Options configures a Client. Zero values fall back to sensible defaults.
type Options struct {
	HTTPClient        *http.Client
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	// MaxElapsed bounds the total time spent retrying a single request.
	MaxElapsed time.Duration
	// BaseDelay is the first backoff delay. It doubles on every attempt.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff delay.
	MaxDelay time.Duration
}

// Client issues HTTP requests, pacing them through a shared limiter and
// retrying transient failures within a wall-clock budget.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string

	maxElapsed time.Duration
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	c := &Client{
		http:       httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		userAgent:  opts.UserAgent,
		maxElapsed: opts.MaxElapsed,
		baseDelay:  opts.BaseDelay,
		maxDelay:   opts.MaxDelay,
	}
	if c.maxElapsed == 0 {
		c.maxElapsed = 15 * time.Second
	}
	if c.baseDelay == 0 {
		c.baseDelay = 500 * time.Millisecond
	}
	if c.maxDelay == 0 {
		c.maxDelay = 8 * time.Second
	}
	return c
}

// Request describes a request that can be replayed on retry.
type Request struct {
	Method  string
	URL     string
	Form    url.Values
	Session *Session
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Cookies    []*http.Cookie
	Body       []byte
}

// Send performs a single attempt and returns the response whatever its status.
// Only failures to get a response at all are returned as errors.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	var body io.Reader
	if req.Form != nil {
		body = strings.NewReader(req.Form.Encode())
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	if req.Form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	req.Session.apply(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Cookies:    resp.Cookies(),
		Body:       data,
	}, nil
}

// GetBytes fetches url with retries and returns the body.
func (c *Client) GetBytes(ctx context.Context, url string, session *Session) ([]byte, error) {
	resp, err := c.Fetch(ctx, &Request{Method: http.MethodGet, URL: url, Session: session})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetJSON fetches url with retries and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, url string, session *Session, v interface{}) error {
	body, err := c.GetBytes(ctx, url, session)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrapf(err, "failed to decode response from %s", url)
	}
	return nil
}
