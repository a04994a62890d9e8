package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/config"
)

// Client fetches portal pages. Every request goes through the rate
// limiter; retryable failures push the limiter into backoff mode and
// the request is retried with exponential delay up to the attempt cap.
type Client struct {
	http        *http.Client
	limiter     *Limiter
	logger      *log.Logger
	userAgent   string
	maxAttempts int
	maxBody     int64
}

// NewClient builds a client from configuration.
func NewClient(cfg config.Config, limiter *Limiter, logger *log.Logger) *Client {
	return &Client{
		http:        &http.Client{Timeout: cfg.FetchTimeout()},
		limiter:     limiter,
		logger:      logger,
		userAgent:   cfg.Fetch.UserAgent,
		maxAttempts: cfg.Fetch.MaxAttempts,
		maxBody:     cfg.Fetch.MaxBodyBytes,
	}
}

// Fetch downloads one page and returns its HTML. Retryable failures
// are retried up to the configured attempt cap; the returned error is
// a *FatalError or *RetryableError depending on what exhausted the
// attempts.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	var body string
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		html, err := c.fetchOnce(ctx, url)
		if err != nil {
			var retryable *RetryableError
			if errors.As(err, &retryable) {
				c.limiter.EnterBackoff()
				c.logger.Printf("fetch: retryable failure for %s: %v", url, retryable.Err)
				return err
			}
			return backoff.Permanent(err)
		}
		body = html
		return nil
	}

	attempts := c.maxAttempts
	if attempts < 1 {
		attempts = 1
	}
	exp := backoff.NewExponentialBackOff()
	exp.MaxInterval = backoffCeiling
	policy := backoff.WithContext(
		backoff.WithMaxRetries(exp, uint64(attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return body, nil
}

func (c *Client) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FatalError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", &FatalError{URL: url, Err: ctx.Err()}
		}
		return "", &RetryableError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &RetryableError{URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	default:
		return "", &FatalError{URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return "", &RetryableError{URL: url, Err: err}
	}
	html := string(raw)
	if strings.TrimSpace(html) == "" {
		return "", &RetryableError{URL: url, Err: errors.New("empty response body")}
	}
	return html, nil
}

// backoffCeiling bounds a single retry wait; the limiter's own backoff
// band handles the longer site-wide slowdown.
const backoffCeiling = 30 * time.Second
