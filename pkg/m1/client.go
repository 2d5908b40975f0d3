// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package m1 is a client for the Molecule One batch retrosynthesis scoring
// API. A Client holds credentials and the versioned API root; it submits
// batch searches and rehydrates existing ones as BatchSearch handles, which
// poll status and fetch results.
//
// All calls are synchronous. Transient failures are retried by the
// transport (see types.RetryConfig); application errors are not.
package m1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/m1score/internal/httputil"
	"github.com/pdiddy/m1score/pkg/logger"
	"github.com/pdiddy/m1score/pkg/types"
)

// Version is reported in the User-Agent header.
const Version = "2.0.1"

const (
	searchEndpoint  = "search"
	statusEndpoint  = "search_status"
	resultsEndpoint = "results"
)

// Client talks to one scoring service with one set of credentials. It is
// immutable after NewClient and safe to share.
type Client struct {
	apiRoot      string
	headers      http.Header
	transport    *httputil.Retrier
	log          logger.Logger
	pollInterval time.Duration
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient   *http.Client
	log          logger.Logger
	pollInterval time.Duration
}

// WithHTTPClient replaces the underlying http.Client. Its Timeout is used
// as-is; the configured HTTP timeout is ignored.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(o *clientOptions) { o.log = l }
}

// WithPollInterval overrides the delay between status polls in Results.
func WithPollInterval(d time.Duration) Option {
	return func(o *clientOptions) { o.pollInterval = d }
}

// NewClient validates cfg, applies defaults, and builds a Client.
func NewClient(cfg types.ClientConfig, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	if _, err := url.Parse(cfg.APIRoot()); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}

	o := clientOptions{pollInterval: cfg.PollInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.NewNop()
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.HTTP.Timeout}
	}
	if o.pollInterval <= 0 {
		o.pollInterval = types.DefaultPollInterval
	}

	userAgent := cfg.HTTP.UserAgent
	if userAgent == "" {
		userAgent = "api-wrapper-go/" + Version
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("User-Agent", userAgent)
	headers.Set("Authorization", cfg.AuthorizationHeader())

	return &Client{
		apiRoot:      cfg.APIRoot(),
		headers:      headers,
		transport:    httputil.NewRetrier(o.httpClient, cfg.Retry, cfg.HTTP.RateLimit, o.log),
		log:          o.log,
		pollInterval: o.pollInterval,
	}, nil
}

// APIRoot returns the versioned API root, e.g. "https://host/api/v2/".
func (c *Client) APIRoot() string { return c.apiRoot }

// ListSearches returns the service's list of batch searches as decoded JSON.
func (c *Client) ListSearches(ctx context.Context) (any, error) {
	var out any
	if err := c.do(ctx, http.MethodGet, searchEndpoint, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RunBatchSearch submits req and returns a handle to the new search.
func (c *Client) RunBatchSearch(ctx context.Context, req types.SearchRequest) (*BatchSearch, error) {
	return submit(ctx, c, req)
}

// RunBatchSearchWithMetadata submits items, each of which holds a "smiles"
// target and any number of extra fields. The extra fields are sent as
// per-target metadata keyed by the item's index. Targets and
// TargetsMetadata already set on req are replaced.
func (c *Client) RunBatchSearchWithMetadata(ctx context.Context, items []map[string]any, req types.SearchRequest) (*BatchSearch, error) {
	targets, metadata, err := SplitTargets(items)
	if err != nil {
		return nil, err
	}
	req.Targets = targets
	req.TargetsMetadata = metadata
	return submit(ctx, c, req)
}

// BatchSearchFromID returns a handle for an existing search without
// contacting the service.
func (c *Client) BatchSearchFromID(id string) *BatchSearch {
	return &BatchSearch{
		client: c,
		id:     id,
		log:    c.log.With(logger.String("search_id", id)),
	}
}

// GetBatchSearch returns a handle for an existing search after checking
// that the service knows it.
func (c *Client) GetBatchSearch(ctx context.Context, id string) (*BatchSearch, error) {
	s := c.BatchSearchFromID(id)
	if _, err := s.Get(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteBatchSearch deletes the search with the given id.
func (c *Client) DeleteBatchSearch(ctx context.Context, id string) error {
	return c.BatchSearchFromID(id).Delete(ctx)
}

// do sends one request relative to the API root. A non-nil body is
// encoded as JSON; a non-nil out receives the decoded response with
// numbers preserved as json.Number.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	reqURL := c.apiRoot + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	start := time.Now()
	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		te := &TransportError{Method: method, URL: reqURL, Err: err}
		var exhausted *httputil.RetriesExhaustedError
		if errors.As(err, &exhausted) {
			te.StatusCode = exhausted.StatusCode
			te.Status = exhausted.Status
		}
		return te
	}
	defer resp.Body.Close()

	c.log.Debug("request completed",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.String("request_id", requestID),
		logger.Duration("elapsed", time.Since(start)),
	)

	if err := Classify(resp); err != nil {
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("parsing %s %s response: %w", method, path, err)
	}
	return nil
}
