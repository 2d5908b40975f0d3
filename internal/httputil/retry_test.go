// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/m1score/pkg/types"
)

// fastPolicy keeps backoff sleeps in the millisecond range.
func fastPolicy() types.RetryConfig {
	return types.RetryConfig{
		Total:         5,
		Connect:       5,
		BackoffFactor: 0.001,
	}
}

func statusSequence(t *testing.T, codes ...int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		code := codes[len(codes)-1]
		if n <= len(codes) {
			code = codes[n-1]
		}
		w.WriteHeader(code)
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func TestRetrier_ImmediateSuccess(t *testing.T) {
	ts, calls := statusSequence(t, http.StatusOK)

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	resp, err := NewRetrier(ts.Client(), fastPolicy(), 0, nil).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestRetrier_RetriesForcelistThen200(t *testing.T) {
	for _, code := range []int{429, 502, 503, 504} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			ts, calls := statusSequence(t, code, code, http.StatusOK)

			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			require.NoError(t, err)

			resp, err := NewRetrier(ts.Client(), fastPolicy(), 0, nil).Do(context.Background(), req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, int32(3), atomic.LoadInt32(calls))
		})
	}
}

func TestRetrier_ExhaustsRetries(t *testing.T) {
	ts, calls := statusSequence(t, http.StatusServiceUnavailable)

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	policy := fastPolicy()
	policy.Total = 3
	resp, err := NewRetrier(ts.Client(), policy, 0, nil).Do(context.Background(), req)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "after 4 attempt(s)")

	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, http.StatusServiceUnavailable, exhausted.StatusCode)
	// 1 initial + 3 retries = 4 total calls.
	assert.Equal(t, int32(4), atomic.LoadInt32(calls))
}

func TestRetrier_ExhaustedJSONBodyIsNotReturned(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"message": "slow down"}`)
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	policy := fastPolicy()
	policy.Total = 2
	resp, err := NewRetrier(ts.Client(), policy, 0, nil).Do(context.Background(), req)
	assert.Nil(t, resp)

	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, http.StatusTooManyRequests, exhausted.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetrier_NegativeTotalDisablesRetries(t *testing.T) {
	ts, calls := statusSequence(t, http.StatusBadGateway)

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	policy := fastPolicy()
	policy.Total = -1
	resp, err := NewRetrier(ts.Client(), policy, 0, nil).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestRetrier_NonForcelistStatusPassesThrough(t *testing.T) {
	for _, code := range []int{400, 404, 422, 500} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			ts, calls := statusSequence(t, code)

			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			require.NoError(t, err)

			resp, err := NewRetrier(ts.Client(), fastPolicy(), 0, nil).Do(context.Background(), req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, code, resp.StatusCode)
			assert.Equal(t, int32(1), atomic.LoadInt32(calls))
		})
	}
}

func TestRetrier_MethodNotAllowedIsNotRetried(t *testing.T) {
	ts, calls := statusSequence(t, http.StatusServiceUnavailable, http.StatusOK)

	req, err := http.NewRequest(http.MethodPatch, ts.URL, nil)
	require.NoError(t, err)

	resp, err := NewRetrier(ts.Client(), fastPolicy(), 0, nil).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestRetrier_ReplaysPostBody(t *testing.T) {
	var calls int32
	var bodies []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(`{"targets":["CCO"]}`))
	require.NoError(t, err)

	resp, err := NewRetrier(ts.Client(), fastPolicy(), 0, nil).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{`{"targets":["CCO"]}`, `{"targets":["CCO"]}`}, bodies)
}

func TestRetrier_HonoursRetryAfter(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	// A large backoff factor would stall the test if Retry-After were ignored.
	policy := fastPolicy()
	policy.BackoffFactor = 60
	start := time.Now()
	resp, err := NewRetrier(ts.Client(), policy, 0, nil).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRetrier_ContextCancelledDuringBackoff(t *testing.T) {
	ts, _ := statusSequence(t, http.StatusTooManyRequests)

	policy := fastPolicy()
	policy.BackoffFactor = 0.5

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	_, err = NewRetrier(ts.Client(), policy, 0, nil).Do(ctx, req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetrier_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := ts.URL
	ts.Close()

	req, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)

	policy := fastPolicy()
	policy.Connect = 2
	_, err = NewRetrier(&http.Client{Timeout: time.Second}, policy, 0, nil).Do(context.Background(), req)
	require.Error(t, err)
	assert.True(t, IsConnectError(err))
	assert.Contains(t, err.Error(), "after 3 attempt(s)")
}

func TestRetrier_RateLimited(t *testing.T) {
	ts, calls := statusSequence(t, http.StatusOK)

	r := NewRetrier(ts.Client(), fastPolicy(), 1000, nil)
	for i := 0; i < 5; i++ {
		req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
		require.NoError(t, err)
		resp, err := r.Do(context.Background(), req)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(calls))
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		factor float64
		n      int
		limit  time.Duration
		want   time.Duration
	}{
		{0.5, 1, time.Minute, 500 * time.Millisecond},
		{0.5, 2, time.Minute, time.Second},
		{0.5, 3, time.Minute, 2 * time.Second},
		{1, 10, 120 * time.Second, 120 * time.Second},
		{0, 3, time.Minute, 0},
		{1, 0, time.Minute, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.factor, tt.n, tt.limit), "factor=%v n=%d", tt.factor, tt.n)
	}
}

func TestDefaultPolicy(t *testing.T) {
	var p types.RetryConfig
	p.SetDefaults()
	assert.Equal(t, []int{104, 111, 429, 502, 503, 504}, p.StatusForcelist)
	assert.ElementsMatch(t, []string{"HEAD", "GET", "OPTIONS", "POST", "DELETE", "PUT"}, p.AllowedMethods)
	assert.Equal(t, types.DefaultRetryTotal, p.Total)
	assert.Equal(t, types.DefaultRetryConnect, p.Connect)
}
