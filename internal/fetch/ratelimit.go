package fetch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/config"
)

// Limiter spaces requests out with a randomized delay. It has two
// modes: normal, drawing delays from the configured rate band, and
// backoff, entered after a retryable failure, which uses the slower
// retry band for a counted number of requests and finishes with a
// cooldown before returning to normal.
type Limiter struct {
	mu sync.Mutex

	rate  config.RateConfig
	retry config.RetryConfig

	nextSlot     time.Time
	retryLeft    int
	cooldownWait bool

	// injected for tests
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	randF func() float64
}

// NewLimiter returns a limiter in normal mode.
func NewLimiter(rate config.RateConfig, retry config.RetryConfig) *Limiter {
	return &Limiter{
		rate:  rate,
		retry: retry,
		now:   time.Now,
		sleep: sleepCtx,
		randF: rand.Float64,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait blocks until the caller may issue the next request. Each call
// claims the current slot and schedules the following one, so
// concurrent callers are serialized with a full delay between them.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	wait := l.nextSlot.Sub(now)
	if wait < 0 {
		wait = 0
	}
	l.nextSlot = now.Add(wait + l.nextDelay())
	l.mu.Unlock()

	return l.sleep(ctx, wait)
}

// EnterBackoff switches the limiter into backoff mode for the
// configured number of requests. Calling it while already in backoff
// restarts the counter.
func (l *Limiter) EnterBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.retryLeft = l.retry.Requests
	l.cooldownWait = false
}

// InBackoff reports whether the limiter is currently in backoff mode.
func (l *Limiter) InBackoff() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retryLeft > 0 || l.cooldownWait
}

// nextDelay draws the delay before the slot after this one. Caller
// holds the mutex.
func (l *Limiter) nextDelay() time.Duration {
	if l.cooldownWait {
		l.cooldownWait = false
		return seconds(l.retry.CooldownSeconds)
	}
	if l.retryLeft > 0 {
		l.retryLeft--
		if l.retryLeft == 0 {
			// last backoff request: cooldown follows before
			// normal pacing resumes
			l.cooldownWait = true
		}
		d := l.between(l.retry.BaseDelaySeconds, l.retry.MaxDelaySeconds)
		return d + l.between(l.retry.MinJitterSeconds, l.retry.MaxJitterSeconds)
	}
	d := l.between(l.rate.MinDelaySeconds, l.rate.MaxDelaySeconds)
	return d + l.between(l.rate.MinJitterSeconds, l.rate.MaxJitterSeconds)
}

func (l *Limiter) between(min, max float64) time.Duration {
	if max <= min {
		return seconds(min)
	}
	return seconds(min + l.randF()*(max-min))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
