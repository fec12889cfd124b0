// Package client provides the HTTP client shared by the API integrations:
// request pacing, rate limit tracking, an optional response cache, and
// opt-in retries with classified errors.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Sternrassler/apictl/pkg/cache"
	"github.com/Sternrassler/apictl/pkg/logging"
	"github.com/Sternrassler/apictl/pkg/ratelimit"
)

// Client is the API client. It satisfies pagination.Doer.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// User-Agent header sent with every request
	UserAgent string

	// Timeout of a single HTTP attempt
	Timeout time.Duration

	// RequestsPerSecond paces outgoing requests; 0 disables pacing
	RequestsPerSecond float64

	// Burst is the number of requests allowed above the pace
	Burst int

	// Retry controls retries of server, rate limit and network errors
	Retry RetryConfig

	// Cache enables the Redis response cache for GET requests when set
	Cache *cache.Manager

	// RateLimit gates requests on the advertised quota when set
	RateLimit *ratelimit.Tracker
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:         userAgent,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 10,
		Burst:             5,
		Retry:             DefaultRetryConfig(),
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must be >= 0 (got %g)", cfg.RequestsPerSecond)
	}
	if cfg.Retry.MaxAttempts < 0 {
		return nil, fmt.Errorf("retry max_attempts must be >= 0 (got %d)", cfg.Retry.MaxAttempts)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:     limiter,
		rateLimiter: cfg.RateLimit,
		cache:       cfg.Cache,
		config:      cfg,
		logger:      logging.NewLogger("client"),
	}, nil
}

// Do performs an HTTP request with pacing, rate limiting, caching, and
// retries. Non-2xx responses are returned as responses once retries are
// exhausted; only transport failures produce an error.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	host := req.URL.Host
	req = req.Clone(ctx)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(host).Observe(time.Since(startTime).Seconds())
	}()

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	// Cache lookup for GETs only
	var cacheKey cache.CacheKey
	var cachedEntry *cache.CacheEntry
	useCache := c.cache != nil && req.Method == http.MethodGet
	if useCache {
		cacheKey = cache.KeyForRequest(req)
		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("url", req.URL.String()).Msg("Cache get error")
		}
		if entry != nil {
			if entry.IsFresh() {
				c.logger.Debug().Str("url", req.URL.String()).Msg("Serving fresh cache entry")
				requestsTotal.WithLabelValues(host, "cache").Inc()
				return cache.EntryToResponse(entry, req), nil
			}
			if cache.ShouldMakeConditionalRequest(entry) {
				cachedEntry = entry
				cache.AddConditionalHeaders(req, entry)
				cache.ConditionalRequestsSent.Inc()
				c.logger.Debug().
					Str("url", req.URL.String()).
					Str("etag", entry.ETag).
					Msg("Making conditional request")
			}
		}
	}

	var resp *http.Response
	retryErr := retryWithBackoff(ctx, c.config.Retry, func(attempt int) error {
		attemptReq, err := c.prepareAttempt(req, attempt)
		if err != nil {
			return err
		}

		if err := c.wait(ctx, host); err != nil {
			return err
		}

		c.logger.Debug().
			Str("method", attemptReq.Method).
			Str("url", attemptReq.URL.String()).
			Int("attempt", attempt).
			Msg("Executing request")

		r, err := c.httpClient.Do(attemptReq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn().Err(err).Str("url", attemptReq.URL.String()).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(host, "network_error").Inc()
			return &APIError{
				Class:   ErrorClassNetwork,
				Message: fmt.Sprintf("%s %s", attemptReq.Method, attemptReq.URL.Redacted()),
				Err:     err,
			}
		}

		if c.rateLimiter != nil {
			if err := c.rateLimiter.UpdateFromHeaders(ctx, host, r.StatusCode, r.Header); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
			}
		}

		requestsTotal.WithLabelValues(host, strconv.Itoa(r.StatusCode)).Inc()

		if r.StatusCode >= 400 {
			errClass := classifyStatus(r.StatusCode)
			errorsTotal.WithLabelValues(string(errClass)).Inc()

			c.logger.Debug().
				Str("url", attemptReq.URL.String()).
				Int("status", r.StatusCode).
				Str("error_class", string(errClass)).
				Msg("API request error")

			if shouldRetry(errClass) && attempt < c.config.Retry.MaxAttempts {
				r.Body.Close()
				return &APIError{
					StatusCode: r.StatusCode,
					Class:      errClass,
					Message:    r.Status,
				}
			}
		}

		resp = r
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		c.logger.Debug().Str("url", req.URL.String()).Msg("304 Not Modified - using cache")
		cache.NotModifiedResponses.Inc()
		if err := c.cache.Refresh(ctx, cacheKey, cachedEntry, resp); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}
		resp.Body.Close()
		return cache.EntryToResponse(cachedEntry, req), nil
	}

	if useCache && cache.Cacheable(resp) {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			return nil, &APIError{Class: ErrorClassNetwork, Message: "read response body", Err: err}
		}
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("url", req.URL.String()).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// prepareAttempt returns the request for the given attempt, rewinding the
// body for retries.
func (c *Client) prepareAttempt(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 || req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("cannot retry %s %s: request body is not replayable", req.Method, req.URL.Redacted())
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind request body: %w", err)
	}
	r := req.Clone(req.Context())
	r.Body = body
	return r, nil
}

// wait applies client-side pacing and the advertised rate limit.
func (c *Client) wait(ctx context.Context, host string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("pace request: %w", err)
		}
	}
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, host); err != nil {
			requestsTotal.WithLabelValues(host, "rate_limited").Inc()
			return err
		}
	}
	return nil
}

// Transport returns an http.RoundTripper that routes requests through the
// client, for SDKs that take an *http.Client.
func (c *Client) Transport() http.RoundTripper {
	return roundTripperFunc(c.Do)
}

// HTTPClient returns an *http.Client backed by Transport.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{Transport: c.Transport()}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, or nil if caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
