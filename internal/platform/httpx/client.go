// Package httpx is the JSON-over-HTTP helper shared by the platform bindings.
// It maps transport and status outcomes onto the models.FetchError taxonomy.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tOgg1/threadline/internal/logging"
	"github.com/tOgg1/threadline/internal/models"
)

const maxErrorBody = 512

// Config configures a Client.
type Config struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration

	// Platform names the binding in logs.
	Platform string

	// RequestsPerSecond throttles requests; 0 disables throttling.
	RequestsPerSecond float64
	Burst             int

	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
}

// Client issues authenticated GET requests against one API root.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		client:    httpClient,
		logger:    logging.WithPlatform(cfg.Platform),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON fetches path with query and decodes the body into out. op names the
// operation in returned errors.
func (c *Client) GetJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return models.NewFetchError(models.FetchErrorNetwork, op, fmt.Errorf("rate limiter: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return models.NewFetchError(models.FetchErrorNetwork, op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug().Str("url", logging.RedactURL(requestURL)).Err(err).Msg("request failed")
		return models.NewFetchError(models.FetchErrorNetwork, op, errors.New(logging.Redact(err.Error())))
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("op", op).
		Str("url", logging.RedactURL(requestURL)).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("request completed")

	if err := StatusError(op, resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return models.NewFetchError(models.FetchErrorDecode, op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// StatusError returns nil for 2xx responses and a classified FetchError
// otherwise. It reads at most a short prefix of the body for the message.
func StatusError(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	cause := fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, logging.Redact(strings.TrimSpace(string(body))))

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return models.NewFetchError(models.FetchErrorNotFound, op, cause)
	case http.StatusTooManyRequests:
		return models.NewFetchError(models.FetchErrorRateLimited, op, cause)
	default:
		return models.NewFetchError(models.FetchErrorNetwork, op, cause)
	}
}
