package github

import (
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"
)

func TestParseRateLimit(t *testing.T) {
	reset := time.Now().Add(10 * time.Minute).Unix()

	tests := []struct {
		name          string
		resp          *http.Response
		wantNil       bool
		wantRemaining int
		wantReset     int64
	}{
		{"nil response", nil, true, 0, 0},
		{"no headers", &http.Response{Header: http.Header{}}, true, 0, 0},
		{
			"both headers",
			&http.Response{Header: http.Header{
				"X-Ratelimit-Remaining": []string{"42"},
				"X-Ratelimit-Reset":     []string{strconv.FormatInt(reset, 10)},
			}},
			false, 42, reset,
		},
		{
			"remaining only",
			&http.Response{Header: http.Header{"X-Ratelimit-Remaining": []string{"50"}}},
			false, 50, 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseRateLimit(tt.resp)
			if tt.wantNil {
				if info != nil {
					t.Fatalf("expected nil, got %+v", info)
				}
				return
			}
			if info == nil {
				t.Fatal("expected non-nil RateLimitInfo")
			}
			if info.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", info.Remaining, tt.wantRemaining)
			}
			if tt.wantReset != 0 && info.Reset.Unix() != tt.wantReset {
				t.Errorf("Reset = %d, want %d", info.Reset.Unix(), tt.wantReset)
			}
			if tt.wantReset == 0 && !info.Reset.IsZero() {
				t.Errorf("expected zero Reset, got %v", info.Reset)
			}
		})
	}
}

func TestShouldThrottle(t *testing.T) {
	for remaining, want := range map[int]bool{0: true, 50: true, 99: true, 100: false, 500: false} {
		info := &RateLimitInfo{Remaining: remaining}
		if got := info.ShouldThrottle(); got != want {
			t.Errorf("ShouldThrottle() with remaining=%d: got %v, want %v", remaining, got, want)
		}
	}

	var info *RateLimitInfo
	if info.ShouldThrottle() {
		t.Error("nil RateLimitInfo should not throttle")
	}
}

func TestWaitDuration(t *testing.T) {
	future := &RateLimitInfo{Reset: time.Now().Add(30 * time.Second)}
	if d := future.WaitDuration(); d < 25*time.Second || d > 30*time.Second {
		t.Errorf("expected ~30s, got %s", d)
	}

	past := &RateLimitInfo{Reset: time.Now().Add(-10 * time.Second)}
	if d := past.WaitDuration(); d != 0 {
		t.Errorf("expected 0 for past reset, got %s", d)
	}

	var none *RateLimitInfo
	if d := none.WaitDuration(); d != 0 {
		t.Errorf("expected 0 for nil info, got %s", d)
	}
}

func TestBackoffDuration(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{40, 60 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := BackoffDuration(tt.attempt); got != tt.want {
				t.Errorf("BackoffDuration(%d) = %s, want %s", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestHandleRateLimitError(t *testing.T) {
	t.Run("reset header wins", func(t *testing.T) {
		resp := &http.Response{
			StatusCode: http.StatusForbidden,
			Header: http.Header{
				"X-Ratelimit-Remaining": []string{"0"},
				"X-Ratelimit-Reset":     []string{strconv.FormatInt(time.Now().Add(30*time.Second).Unix(), 10)},
				"Retry-After":           []string{"5"},
			},
		}
		wait, err := HandleRateLimitError(resp)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if wait < 25*time.Second || wait > 31*time.Second {
			t.Errorf("expected ~30s wait, got %s", wait)
		}
	})

	t.Run("retry-after", func(t *testing.T) {
		resp := &http.Response{
			StatusCode: http.StatusTooManyRequests,
			Header:     http.Header{"Retry-After": []string{"45"}},
		}
		wait, err := HandleRateLimitError(resp)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if wait != 45*time.Second {
			t.Errorf("expected 45s wait, got %s", wait)
		}
	})

	t.Run("no headers defaults to 60s", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusForbidden, Header: http.Header{}}
		wait, err := HandleRateLimitError(resp)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if wait != 60*time.Second {
			t.Errorf("expected 60s fallback, got %s", wait)
		}
	})

	t.Run("not a rate limit", func(t *testing.T) {
		if _, err := HandleRateLimitError(&http.Response{StatusCode: http.StatusOK, Header: http.Header{}}); err == nil {
			t.Error("expected error for 200 response")
		}
		if _, err := HandleRateLimitError(nil); err == nil {
			t.Error("expected error for nil response")
		}
	})
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		code      int
		server    bool
		rateLimit bool
	}{
		{200, false, false},
		{403, false, true},
		{404, false, false},
		{429, false, true},
		{500, true, false},
		{502, true, false},
		{599, true, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.code}
			if got := IsServerError(resp); got != tt.server {
				t.Errorf("IsServerError = %v, want %v", got, tt.server)
			}
			if got := IsRateLimitError(resp); got != tt.rateLimit {
				t.Errorf("IsRateLimitError = %v, want %v", got, tt.rateLimit)
			}
		})
	}
	if IsServerError(nil) || IsRateLimitError(nil) {
		t.Error("nil responses are never errors")
	}
}
