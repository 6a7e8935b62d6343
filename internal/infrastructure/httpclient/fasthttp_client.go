package httpclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portfolio_aggregator/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxLoggedBody = 512

// StatusError is returned for any non-2xx answer. It unwraps to entity.ErrUpstream.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d", entity.ErrUpstream, e.URL, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return entity.ErrUpstream }

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Options configures a Client.
type Options struct {
	// Timeout applies when the caller's context carries no deadline.
	Timeout time.Duration
	// RequestsPerSecond limits outgoing requests; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	Headers           map[string]string
	UserAgent         string
}

// Client is a rate limited fasthttp GET client shared by the REST and HTML adapters of
// one upstream.
type Client struct {
	client  *fasthttp.Client
	timeout time.Duration
	limiter *rate.Limiter
	headers map[string]string
	logger  *zap.Logger
}

// New creates a Client.
func New(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "portfolio-aggregator/1.0"
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client: &fasthttp.Client{
			Name:                opts.UserAgent,
			MaxIdleConnDuration: 30 * time.Second,
		},
		timeout: opts.Timeout,
		limiter: limiter,
		headers: opts.Headers,
		logger:  logger.Named("HTTPClient"),
	}
}

// Get performs a GET and returns the response body. Non-2xx statuses become a
// *StatusError, transport failures and deadlines wrap entity.ErrUpstream or
// entity.ErrUpstreamTimeout.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", entity.ErrUpstreamTimeout, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrUpstreamTimeout, err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		c.logger.Debug("Request failed", zap.String("url", url), zap.Error(err))
		if errors.Is(err, fasthttp.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s: %v", entity.ErrUpstreamTimeout, url, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrUpstream, url, err)
	}

	body := append([]byte(nil), resp.Body()...)
	if code := resp.StatusCode(); code < 200 || code > 299 {
		snippet := body
		if len(snippet) > maxLoggedBody {
			snippet = snippet[:maxLoggedBody]
		}
		c.logger.Debug("Upstream returned non-2xx", zap.String("url", url), zap.Int("statusCode", code), zap.ByteString("body", snippet))
		return nil, &StatusError{URL: url, StatusCode: code, Body: string(snippet)}
	}
	return body, nil
}

// GetJSON performs Get and decodes the body into out. Decoding failures wrap entity.ErrDecode.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", entity.ErrDecode, url, err)
	}
	return nil
}
