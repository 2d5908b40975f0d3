// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package m1

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// ErrSearchDeleted is returned by every BatchSearch method after Delete
// has succeeded on that handle.
var ErrSearchDeleted = errors.New("batch search has been deleted")

// ApplicationError is a 4xx response carrying a JSON error body. It
// indicates a defect in the request and is never retried.
type ApplicationError struct {
	StatusCode int
	// Message is the composed human-readable message.
	Message string
	// Errors is the decoded "errors" field, if any.
	Errors any
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("application error (HTTP %d): %s", e.StatusCode, e.Message)
}

// TransportError is any other failed exchange: a non-success status
// without a structured body, or a request that never produced a response
// (connection failures and exhausted transport retries).
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport error: %s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("transport error: %s %s: HTTP %s", e.Method, e.URL, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Classify turns a response into nil (1xx-3xx), an *ApplicationError (4xx
// with a JSON body) or a *TransportError (anything else). Only the
// ApplicationError path reads the body.
func Classify(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	if resp.StatusCode < http.StatusInternalServerError && isJSON(resp.Header) {
		data, err := io.ReadAll(resp.Body)
		if err == nil {
			if appErr, ok := parseApplicationError(resp.StatusCode, data); ok {
				return appErr
			}
		}
	}

	te := &TransportError{StatusCode: resp.StatusCode, Status: resp.Status}
	if resp.Request != nil {
		te.Method = resp.Request.Method
		te.URL = resp.Request.URL.String()
	}
	if te.Status == "" {
		te.Status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return te
}

func parseApplicationError(status int, data []byte) (*ApplicationError, bool) {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, false
	}

	// Only an object can carry message and errors; any other JSON value
	// still makes an ApplicationError, with nothing to report.
	var body map[string]json.RawMessage
	if _, ok := decoded.(map[string]any); ok {
		_ = json.Unmarshal(data, &body)
	}

	appErr := &ApplicationError{StatusCode: status}
	if raw, ok := body["errors"]; ok {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			appErr.Errors = v
		}
	}
	appErr.Message = FormatErrorMessage(body)
	return appErr, true
}

// FormatErrorMessage composes "message: errors", the message alone, the
// errors alone, or "unknown error", keyed on which fields are present in
// body. A string message is used verbatim; every other value is rendered
// as compact JSON.
func FormatErrorMessage(body map[string]json.RawMessage) string {
	message, hasMessage := body["message"]
	errs, hasErrors := body["errors"]

	switch {
	case hasMessage && hasErrors:
		return messageText(message) + ": " + compactJSON(errs)
	case hasMessage:
		return messageText(message)
	case hasErrors:
		return compactJSON(errs)
	default:
		return "unknown error"
	}
}

func messageText(raw json.RawMessage) string {
	var s string
	if len(raw) > 0 && raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return compactJSON(raw)
}

func compactJSON(raw json.RawMessage) string {
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		return string(raw)
	}
	return b.String()
}

func isJSON(h http.Header) bool {
	ct := h.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.HasPrefix(ct, "application/json")
	}
	return mt == "application/json"
}
