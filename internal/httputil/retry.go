// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retrying HTTP transport used by the scoring
// client.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"slices"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/m1score/pkg/logger"
	"github.com/pdiddy/m1score/pkg/types"
)

// Retrier executes HTTP requests and transparently retries transient
// failures according to a types.RetryConfig:
//
//   - connection failures (dial errors, ECONNREFUSED) are retried for any
//     method, bounded by both Connect and Total;
//   - other transport errors are retried for AllowedMethods, bounded by Total;
//   - responses whose status is in StatusForcelist are retried for
//     AllowedMethods, bounded by Total.
//
// Before retry n (1-based) it sleeps BackoffFactor * 2^(n-1) seconds, capped
// at MaxBackoff. A Retry-After header on 429 or 503 overrides the computed
// delay. When retries run out on a forcelisted status, Do returns a
// *RetriesExhaustedError carrying that status instead of the response. With
// a negative Total the response is returned as-is.
type Retrier struct {
	client  *http.Client
	policy  types.RetryConfig
	limiter *rate.Limiter
	log     logger.Logger
}

// RetriesExhaustedError reports that the service kept answering with a
// forcelisted status until the retry budget ran out.
type RetriesExhaustedError struct {
	StatusCode int
	Status     string
}

func (e *RetriesExhaustedError) Error() string {
	return "too many retryable responses, last: " + e.Status
}

// NewRetrier builds a Retrier. A zero rateLimit disables client-side rate
// limiting. Unset policy fields take their defaults.
func NewRetrier(client *http.Client, policy types.RetryConfig, rateLimit float64, log logger.Logger) *Retrier {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logger.NewNop()
	}
	policy.SetDefaults()

	r := &Retrier{client: client, policy: policy, log: log}
	if rateLimit > 0 {
		burst := int(math.Ceil(rateLimit))
		r.limiter = rate.NewLimiter(rate.Limit(rateLimit), burst)
	}
	return r
}

// Do sends req, retrying as described on Retrier. The request body is
// replayed through req.GetBody, so requests built with http.NewRequest over
// a bytes.Reader or strings.Reader are safe to retry.
func (r *Retrier) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var retries, connectRetries int

	for attempt := 1; ; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		attemptReq, err := cloneRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		resp, err := r.client.Do(attemptReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			connectErr := IsConnectError(err)
			if !r.canRetryError(req.Method, connectErr, retries, connectRetries) {
				return nil, fmt.Errorf("%s %s failed after %d attempt(s): %w", req.Method, req.URL.Path, attempt, err)
			}
			retries++
			if connectErr {
				connectRetries++
			}

			delay := Backoff(r.policy.BackoffFactor, retries, r.policy.MaxBackoff)
			r.log.Warn("request failed, retrying",
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.Int("attempt", attempt),
				logger.Bool("connect", connectErr),
				logger.Duration("backoff", delay),
				logger.Error(err),
			)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		if !r.retryableStatus(req.Method, resp.StatusCode) || r.policy.Total < 0 {
			return resp, nil
		}
		if retries >= r.policy.Total {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("%s %s failed after %d attempt(s): %w", req.Method, req.URL.Path, attempt,
				&RetriesExhaustedError{StatusCode: resp.StatusCode, Status: resp.Status})
		}
		retries++

		delay := Backoff(r.policy.BackoffFactor, retries, r.policy.MaxBackoff)
		if after, ok := retryAfter(resp); ok {
			delay = min(after, r.policy.MaxBackoff)
		}

		// Drain and close the body before retrying.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		r.log.Warn("retryable status, retrying",
			logger.String("method", req.Method),
			logger.String("path", req.URL.Path),
			logger.Int("status", resp.StatusCode),
			logger.Int("attempt", attempt),
			logger.Duration("backoff", delay),
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (r *Retrier) canRetryError(method string, connectErr bool, retries, connectRetries int) bool {
	if retries >= r.policy.Total {
		return false
	}
	if connectErr {
		return connectRetries < r.policy.Connect
	}
	return r.methodAllowed(method)
}

func (r *Retrier) retryableStatus(method string, status int) bool {
	return r.methodAllowed(method) && slices.Contains(r.policy.StatusForcelist, status)
}

func (r *Retrier) methodAllowed(method string) bool {
	return slices.Contains(r.policy.AllowedMethods, method)
}

// Backoff returns the delay before retry n (1-based):
// factor * 2^(n-1) seconds, capped at limit.
func Backoff(factor float64, n int, limit time.Duration) time.Duration {
	if factor <= 0 || n <= 0 {
		return 0
	}
	secs := factor * math.Pow(2, float64(n-1))
	d := time.Duration(secs * float64(time.Second))
	if limit > 0 && (d > limit || d < 0) {
		return limit
	}
	return d
}

// IsConnectError reports whether err happened while establishing the
// connection, i.e. before any part of the request reached the server.
func IsConnectError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// retryAfter parses a Retry-After header on 429 and 503 responses.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	c := req.Clone(ctx)
	if req.Body != nil && req.Body != http.NoBody && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		c.Body = body
	}
	return c, nil
}

func sleep(ctx context.Context, d time.Duration) error {
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
