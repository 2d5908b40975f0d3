// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package m1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/m1score/pkg/logger"
	"github.com/pdiddy/m1score/pkg/types"
)

// BatchSearch is a handle to one server-side batch search. The handle only
// holds the search id; status and results are fetched fresh on every call.
// After a successful Delete every method returns ErrSearchDeleted.
//
// A BatchSearch is not safe for concurrent use.
type BatchSearch struct {
	client  *Client
	id      string
	deleted bool
	log     logger.Logger
}

// submit validates req, POSTs it and returns a handle carrying the
// server-assigned id.
func submit(ctx context.Context, c *Client, req types.SearchRequest) (*BatchSearch, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	var created struct {
		ID any `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, searchEndpoint, nil, req, &created); err != nil {
		return nil, err
	}

	id := idString(created.ID)
	if id == "" {
		return nil, fmt.Errorf("service did not return a search id")
	}

	s := c.BatchSearchFromID(id)
	s.log.Info("batch search submitted",
		logger.Int("targets", len(req.Targets)),
		logger.String("detail_level", string(req.DetailLevel)),
		logger.String("priority", req.Priority.String()),
	)
	return s, nil
}

// idString accepts string and numeric ids.
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	}
	return ""
}

// ID returns the server-assigned search id.
func (s *BatchSearch) ID() string { return s.id }

// Get returns the service's full representation of the search.
func (s *BatchSearch) Get(ctx context.Context) (map[string]any, error) {
	if s.deleted {
		return nil, ErrSearchDeleted
	}
	var out map[string]any
	if err := s.client.do(ctx, http.MethodGet, s.path(searchEndpoint), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status fetches the current queued and running counts.
func (s *BatchSearch) Status(ctx context.Context) (types.Status, error) {
	if s.deleted {
		return types.Status{}, ErrSearchDeleted
	}
	var st types.Status
	if err := s.client.do(ctx, http.MethodGet, s.path(statusEndpoint), nil, nil, &st); err != nil {
		return types.Status{}, err
	}
	return st, nil
}

// IsFinished fetches the status and reports whether nothing is queued or
// running.
func (s *BatchSearch) IsFinished(ctx context.Context) (bool, error) {
	st, err := s.Status(ctx)
	if err != nil {
		return false, err
	}
	return st.Finished(), nil
}

// PartialResults returns whatever results the service has now, finished or
// not. With opts.Precision set, the result, certainty and price fields are
// rendered as fixed-point strings; without it numbers are returned as the
// service sent them (json.Number).
func (s *BatchSearch) PartialResults(ctx context.Context, opts types.ResultsOptions) ([]map[string]any, error) {
	if s.deleted {
		return nil, ErrSearchDeleted
	}
	if opts.Precision != nil && *opts.Precision < 0 {
		return nil, fmt.Errorf("precision must not be negative, got %d", *opts.Precision)
	}

	query := url.Values{}
	if opts.Precision != nil {
		query.Set("precision", strconv.Itoa(*opts.Precision))
	}
	for _, field := range opts.Only {
		query.Add("only", field)
	}

	var raw any
	if err := s.client.do(ctx, http.MethodGet, s.path(resultsEndpoint), query, nil, &raw); err != nil {
		return nil, err
	}
	if opts.Precision != nil {
		raw = FormatResults(raw, *opts.Precision)
	}
	return asRecords(raw)
}

// Results waits until the search has finished and then returns its
// results. It polls the status every poll interval with no upper bound on
// the total wait; cancel ctx to give up. A failed status poll ends the wait
// with that error.
func (s *BatchSearch) Results(ctx context.Context, opts types.ResultsOptions) ([]map[string]any, error) {
	for polls := 1; ; polls++ {
		st, err := s.Status(ctx)
		if err != nil {
			return nil, err
		}
		if st.Finished() {
			s.log.Debug("batch search finished", logger.Int("polls", polls))
			break
		}
		s.log.Debug("batch search in progress",
			logger.Int("queued", st.Queued),
			logger.Int("running", st.Running),
		)
		if err := wait(ctx, s.client.pollInterval); err != nil {
			return nil, err
		}
	}
	return s.PartialResults(ctx, opts)
}

// Delete removes the search from the service. The handle is unusable
// afterwards.
func (s *BatchSearch) Delete(ctx context.Context) error {
	if s.deleted {
		return ErrSearchDeleted
	}
	if err := s.client.do(ctx, http.MethodDelete, s.path(searchEndpoint), nil, nil, nil); err != nil {
		return err
	}
	s.deleted = true
	s.log.Info("batch search deleted")
	return nil
}

func (s *BatchSearch) path(endpoint string) string {
	return endpoint + "/" + url.PathEscape(s.id)
}

// asRecords converts a decoded results payload into its records.
func asRecords(raw any) ([]map[string]any, error) {
	if raw == nil {
		return []map[string]any{}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected results payload: want a list, got %T", raw)
	}
	records := make([]map[string]any, len(list))
	for i, item := range list {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected result record %d: want an object, got %T", i, item)
		}
		records[i] = rec
	}
	return records, nil
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
