package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/apictl/pkg/apierrors"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "apictl_rate_limit_remaining",
		Help: "Requests remaining in the current rate limit window",
	}, []string{"host"})

	rateLimitWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apictl_rate_limit_waits_total",
		Help: "Total number of requests held until the rate limit window reset",
	}, []string{"host"})

	rateLimitBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apictl_rate_limit_blocks_total",
		Help: "Total number of requests refused because the rate limit was exhausted",
	}, []string{"host"})

	rateLimitThrottlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apictl_rate_limit_throttles_total",
		Help: "Total number of requests throttled near the end of the quota",
	}, []string{"host"})
)

// Config controls how the tracker reacts to an exhausted quota.
type Config struct {
	// AutoWait sleeps until the window resets instead of failing
	AutoWait bool

	// MaxWait caps a single AutoWait sleep; longer waits fail with ErrRateLimited
	MaxWait time.Duration

	// ThrottleDelay is the pause applied below RemainingWarning
	ThrottleDelay time.Duration
}

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	return Config{
		AutoWait:      true,
		MaxWait:       15 * time.Minute,
		ThrottleDelay: time.Second,
	}
}

// Tracker monitors API rate limits and gates requests per host.
type Tracker struct {
	store  Store
	config Config
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewTracker creates a new rate limit tracker. A nil store uses a MemoryStore.
func NewTracker(store Store, config Config, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:  store,
		config: config,
		logger: logger,
		sleep:  sleepContext,
	}
}

// GetState returns the known state for host, or nil if none is known or the
// known state is from an earlier window.
func (t *Tracker) GetState(ctx context.Context, host string) (*State, error) {
	state, err := t.store.Load(ctx, host)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}
	if !state.ResetAt.IsZero() && time.Now().After(state.ResetAt) {
		return nil, nil
	}
	return state, nil
}

// UpdateFromHeaders records the quota advertised by a response from host.
// Responses without rate limit headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, host string, status int, headers http.Header) error {
	state, ok, err := ParseHeaders(host, status, headers, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := t.store.Save(ctx, state); err != nil {
		return err
	}

	rateLimitRemaining.WithLabelValues(host).Set(float64(state.Remaining))

	switch {
	case state.NeedsBlock():
		t.logger.Warn().
			Str("host", host).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit exhausted")
	case state.NeedsThrottling():
		t.logger.Warn().
			Str("host", host).
			Int("remaining", state.Remaining).
			Msg("Rate limit nearly exhausted - throttling requests")
	default:
		t.logger.Debug().
			Str("host", host).
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit state updated")
	}

	return nil
}

// Wait blocks until a request to host may be sent. With an exhausted quota it
// sleeps until the reset when AutoWait allows it, and otherwise returns an
// error wrapping apierrors.ErrRateLimited.
func (t *Tracker) Wait(ctx context.Context, host string) error {
	state, err := t.GetState(ctx, host)
	if err != nil {
		// A broken store must not stop requests; the API still enforces its limit.
		t.logger.Warn().Err(err).Str("host", host).Msg("Rate limit state unavailable")
		return nil
	}
	if state == nil {
		return nil
	}

	if state.NeedsBlock() {
		wait := state.TimeUntilReset()
		if !t.config.AutoWait || (t.config.MaxWait > 0 && wait > t.config.MaxWait) {
			rateLimitBlocksTotal.WithLabelValues(host).Inc()
			return fmt.Errorf("%w: %s resets in %s", apierrors.ErrRateLimited, host, wait.Round(time.Second))
		}

		t.logger.Warn().
			Str("host", host).
			Dur("wait_duration", wait).
			Msg("Rate limit exhausted - waiting for reset")
		rateLimitWaitsTotal.WithLabelValues(host).Inc()
		return t.sleep(ctx, wait)
	}

	if state.NeedsThrottling() && t.config.ThrottleDelay > 0 {
		rateLimitThrottlesTotal.WithLabelValues(host).Inc()
		return t.sleep(ctx, t.config.ThrottleDelay)
	}

	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
