package fetch

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/config"
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

// instantLimiter removes real sleeping so client tests run fast.
func instantLimiter() *Limiter {
	l := NewLimiter(config.RateConfig{}, config.RetryConfig{Requests: 3})
	l.sleep = func(context.Context, time.Duration) error { return nil }
	return l
}

func testClient(t *testing.T, limiter *Limiter) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.Fetch.MaxAttempts = 3
	c := NewClient(cfg, limiter, quietLogger())
	c.http = &http.Client{Timeout: 2 * time.Second}
	return c
}

func TestFetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, config.Default().Fetch.UserAgent, r.Header.Get("User-Agent"))
		io.WriteString(w, "<html><body>ok</body></html>")
	}))
	defer srv.Close()

	c := testClient(t, instantLimiter())
	html, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Contains(t, html, "ok")
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "<html>recovered</html>")
	}))
	defer srv.Close()

	limiter := instantLimiter()
	c := testClient(t, limiter)
	html, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Contains(t, html, "recovered")
	require.Equal(t, int32(3), calls.Load())
	require.True(t, limiter.InBackoff())
}

func TestFetchNotFoundIsFatalAndNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := testClient(t, instantLimiter())
	_, err := c.Fetch(context.Background(), srv.URL)
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	require.Equal(t, int32(1), calls.Load())
}

func TestFetchEmptyBodyIsRetryable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, "   \n ")
	}))
	defer srv.Close()

	c := testClient(t, instantLimiter())
	_, err := c.Fetch(context.Background(), srv.URL)
	var retryable *RetryableError
	require.ErrorAs(t, err, &retryable)
	require.Equal(t, int32(3), calls.Load())
}

func TestFetchHonoursContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>late</html>")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient(t, NewLimiter(config.Default().Rate, config.Default().Retry))
	_, err := c.Fetch(ctx, srv.URL)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestLimiterNormalModeSpacing(t *testing.T) {
	l := NewLimiter(
		config.RateConfig{MinDelaySeconds: 2, MaxDelaySeconds: 2},
		config.RetryConfig{},
	)
	now := time.Unix(1000, 0)
	var slept []time.Duration
	l.now = func() time.Time { return now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	l.randF = func() float64 { return 0 }

	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))
	require.Equal(t, []time.Duration{0, 2 * time.Second}, slept)
}

func TestLimiterBackoffThenCooldownThenNormal(t *testing.T) {
	l := NewLimiter(
		config.RateConfig{MinDelaySeconds: 1, MaxDelaySeconds: 1},
		config.RetryConfig{
			BaseDelaySeconds: 10,
			MaxDelaySeconds:  10,
			Requests:         2,
			CooldownSeconds:  60,
		},
	)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	l.sleep = func(context.Context, time.Duration) error { return nil }
	l.randF = func() float64 { return 0 }

	l.EnterBackoff()
	require.True(t, l.InBackoff())

	// two backoff slots at the retry band
	require.NoError(t, l.Wait(context.Background()))
	require.Equal(t, now.Add(10*time.Second), l.nextSlot)
	now = l.nextSlot
	require.NoError(t, l.Wait(context.Background()))
	require.Equal(t, now.Add(10*time.Second), l.nextSlot)
	now = l.nextSlot

	// cooldown slot follows the counted window
	require.True(t, l.InBackoff())
	require.NoError(t, l.Wait(context.Background()))
	require.Equal(t, now.Add(60*time.Second), l.nextSlot)
	now = l.nextSlot

	// back to the normal band
	require.False(t, l.InBackoff())
	require.NoError(t, l.Wait(context.Background()))
	require.Equal(t, now.Add(1*time.Second), l.nextSlot)
}

func TestLimiterReenteringBackoffRestartsWindow(t *testing.T) {
	l := NewLimiter(config.RateConfig{}, config.RetryConfig{Requests: 5})
	l.EnterBackoff()
	l.retryLeft = 1
	l.EnterBackoff()
	require.Equal(t, 5, l.retryLeft)
}
