package github

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	// Below this many remaining requests, pagination waits for the reset.
	throttleThreshold = 100

	maxBackoff = 60 * time.Second

	// Retries for server errors, per page.
	maxRetries = 3

	defaultRateLimitWait = 60 * time.Second
)

// RateLimitInfo is the rate limit state reported by a GitHub API response.
type RateLimitInfo struct {
	Remaining int
	Reset     time.Time
}

// ParseRateLimit reads the X-RateLimit headers of resp. It returns nil when
// neither header is present.
func ParseRateLimit(resp *http.Response) *RateLimitInfo {
	if resp == nil {
		return nil
	}
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	reset := resp.Header.Get("X-RateLimit-Reset")
	if remaining == "" && reset == "" {
		return nil
	}

	info := &RateLimitInfo{}
	if n, err := strconv.Atoi(remaining); err == nil {
		info.Remaining = n
	}
	if unix, err := strconv.ParseInt(reset, 10, 64); err == nil {
		info.Reset = time.Unix(unix, 0)
	}
	return info
}

// ShouldThrottle reports whether few enough requests remain that the caller
// should wait for the reset.
func (r *RateLimitInfo) ShouldThrottle() bool {
	return r != nil && r.Remaining < throttleThreshold
}

// WaitDuration returns the time until the reset, or zero if it has passed.
func (r *RateLimitInfo) WaitDuration() time.Duration {
	if r == nil {
		return 0
	}
	return max(time.Until(r.Reset), 0)
}

// HandleRateLimitError returns how long to wait after a 403 or 429 response.
// The reset header wins, then Retry-After, then a 60 second default.
func HandleRateLimitError(resp *http.Response) (time.Duration, error) {
	if resp == nil {
		return 0, fmt.Errorf("nil response")
	}
	if !IsRateLimitError(resp) {
		return 0, fmt.Errorf("not a rate limit error: status %d", resp.StatusCode)
	}

	if info := ParseRateLimit(resp); info != nil && !info.Reset.IsZero() {
		if wait := info.WaitDuration(); wait > 0 {
			return wait, nil
		}
	}
	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return defaultRateLimitWait, nil
}

// BackoffDuration is the wait before retry attempt+1: 1s, 2s, 4s, ... capped
// at 60s.
func BackoffDuration(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 6 {
		return maxBackoff
	}
	return min(time.Duration(1<<attempt)*time.Second, maxBackoff)
}

// IsServerError reports a 5xx response.
func IsServerError(resp *http.Response) bool {
	return resp != nil && resp.StatusCode >= 500 && resp.StatusCode < 600
}

// IsRateLimitError reports a 403 or 429 response.
func IsRateLimitError(resp *http.Response) bool {
	return resp != nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests)
}
