// Package rest is the shared HTTP core of the remote service clients: JSON encoding,
// bounded retries with exponential backoff, a client-side rate limit and a circuit
// breaker per remote service.
package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amaumene/unmonitarr/internal/metrics"
	"github.com/amaumene/unmonitarr/internal/utils"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// Options configures a Client
type Options struct {
	Name              string // used in logs, metrics and the breaker name
	BaseURL           string
	Headers           map[string]string
	Timeout           time.Duration
	Retry             utils.RetryPolicy
	RequestsPerMinute int // 0 disables the limit
}

// Client performs JSON requests against one remote service
type Client struct {
	name       string
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	retry      utils.RetryPolicy
	logger     *logrus.Logger
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 response
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// isClientError reports 4xx responses other than 429, which retrying will not fix
func isClientError(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
}

// NewClient creates a new remote service client
func NewClient(opts Options, logger *logrus.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
		burst = opts.RequestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
	}

	c := &Client{
		name:       opts.Name,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		headers:    opts.Headers,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		retry:      opts.Retry,
		logger:     logger,
	}
	c.breaker = newBreaker(opts.Name, logger)

	return c
}

func newBreaker(name string, logger *logrus.Logger) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// client errors mean the service is up
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Name returns the client name
func (c *Client) Name() string {
	return c.name
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request and decodes the response into result
func (c *Client) Get(ctx context.Context, path string, query url.Values, result interface{}) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, result)
}

// Put performs a PUT request with a JSON body
func (c *Client) Put(ctx context.Context, path string, body, result interface{}) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, result)
}

// Do performs an HTTP request, retrying transient failures
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, result interface{}) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	c.logger.WithFields(logrus.Fields{
		"client": c.name,
		"method": method,
		"path":   path,
	}).Debug("Making API request")

	notify := func(err error, wait time.Duration) {
		c.logger.WithFields(logrus.Fields{
			"client": c.name,
			"method": method,
			"path":   path,
			"wait":   wait.String(),
		}).WithError(err).Warn("API request failed, retrying")
	}

	data, err := utils.Retry(ctx, c.retry, notify, func() ([]byte, error) {
		data, err := c.breaker.Execute(func() ([]byte, error) {
			return c.doOnce(ctx, method, path, fullURL, payload)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				metrics.RemoteRequests.WithLabelValues(c.name, "rejected").Inc()
				return nil, utils.Permanent(fmt.Errorf("%s unavailable: %w", c.name, err))
			}
			metrics.RemoteRequests.WithLabelValues(c.name, "failure").Inc()
			if isClientError(err) || ctx.Err() != nil {
				return nil, utils.Permanent(err)
			}
			return nil, err
		}
		metrics.RemoteRequests.WithLabelValues(c.name, "success").Inc()
		return data, nil
	})
	if err != nil {
		return err
	}

	if result != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) doOnce(ctx context.Context, method, path, fullURL string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RemoteRequestDuration.WithLabelValues(c.name, method).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	return data, nil
}
