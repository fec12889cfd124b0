// Package ratelimit tracks the request quota that REST APIs advertise in
// X-RateLimit-Remaining / X-RateLimit-Reset (and Retry-After on 429) and
// gates requests per host before the quota runs out.
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Response headers read by the tracker.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Thresholds for rate limit decisions.
const (
	// RemainingCritical blocks requests when the remaining quota falls below it.
	RemainingCritical = 1

	// RemainingWarning throttles requests when the remaining quota falls below it.
	RemainingWarning = 10
)

// epochCutoff separates reset values given as Unix timestamps (GitHub,
// Bitbucket) from values given as seconds until reset.
const epochCutoff = 1_000_000_000

// State is the last known quota of one API host.
type State struct {
	// Host the state belongs to, e.g. "api.bitbucket.org"
	Host string `json:"host"`

	// Remaining is the number of requests left in the current window
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was derived from response headers
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state is older than maxAge or its window has
// already reset.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge || (!s.ResetAt.IsZero() && time.Now().After(s.ResetAt))
}

// NeedsBlock returns true if requests must wait for the window to reset.
func (s *State) NeedsBlock() bool {
	return s.Remaining < RemainingCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < RemainingWarning && !s.NeedsBlock()
}

// TimeUntilReset returns the duration until the window resets, or 0 if it
// already has.
func (s *State) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// ParseHeaders derives a State from response headers. ok is false when the
// response carries no rate limit information.
func ParseHeaders(host string, status int, headers http.Header, now time.Time) (state *State, ok bool, err error) {
	state = &State{Host: host, LastUpdate: now}

	if retryAfter := headers.Get(HeaderRetryAfter); retryAfter != "" && status == http.StatusTooManyRequests {
		resetAt, err := parseRetryAfter(retryAfter, now)
		if err != nil {
			return nil, false, err
		}
		state.Remaining = 0
		state.ResetAt = resetAt
		return state, true, nil
	}

	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, false, nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}
	state.Remaining = remain

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		// Without a reset the window is unknown; assume one minute.
		state.ResetAt = now.Add(time.Minute)
		return state, true, nil
	}

	reset, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}
	if reset >= epochCutoff {
		state.ResetAt = time.Unix(reset, 0)
	} else {
		state.ResetAt = now.Add(time.Duration(reset) * time.Second)
	}

	return state, true, nil
}

func parseRetryAfter(v string, now time.Time) (time.Time, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return now.Add(time.Duration(secs) * time.Second), nil
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s header: %w", HeaderRetryAfter, err)
	}
	return t, nil
}
