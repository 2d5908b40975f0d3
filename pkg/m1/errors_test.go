// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package m1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackingBody records whether Classify read the response body.
type trackingBody struct {
	io.Reader
	read bool
}

func (b *trackingBody) Read(p []byte) (int, error) {
	b.read = true
	return b.Reader.Read(p)
}

func (b *trackingBody) Close() error { return nil }

func response(status int, contentType, body string) (*http.Response, *trackingBody) {
	tb := &trackingBody{Reader: strings.NewReader(body)}
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	req, _ := http.NewRequest(http.MethodGet, "https://example.test/api/v2/search/1", nil)
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     h,
		Body:       tb,
		Request:    req,
	}, tb
}

func TestClassifySuccess(t *testing.T) {
	for _, code := range []int{200, 201, 204, 301, 304} {
		resp, _ := response(code, "application/json", `{}`)
		assert.NoError(t, Classify(resp), "status %d", code)
	}
}

func TestClassifyApplicationErrorMessageAndErrors(t *testing.T) {
	resp, _ := response(422, "application/json",
		`{"message": "bad target", "errors": {"targets": ["invalid"]}}`)

	err := Classify(resp)
	var appErr *ApplicationError
	require.ErrorAs(t, err, &appErr)

	assert.Equal(t, 422, appErr.StatusCode)
	assert.Contains(t, appErr.Message, "bad target")
	assert.Contains(t, appErr.Message, `{"targets":["invalid"]}`)
	assert.Equal(t, `bad target: {"targets":["invalid"]}`, appErr.Message)
	assert.Equal(t, map[string]any{"targets": []any{"invalid"}}, appErr.Errors)
}

func TestClassifyApplicationErrorVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message only", `{"message": "not found"}`, "not found"},
		{"errors only", `{"errors": ["a", "b"]}`, `["a","b"]`},
		{"null errors still present", `{"message": "nope", "errors": null}`, "nope: null"},
		{"empty message still present", `{"message": "", "errors": "x"}`, `: "x"`},
		{"numeric message", `{"message": 42}`, "42"},
		{"object message", `{"message": {"code": 7}, "errors": []}`, `{"code":7}: []`},
		{"neither", `{}`, "unknown error"},
		{"array body", `["bad", "request"]`, "unknown error"},
		{"string body", `"bad request"`, "unknown error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := response(400, "application/json; charset=utf-8", tt.body)
			var appErr *ApplicationError
			require.ErrorAs(t, Classify(resp), &appErr)
			assert.Equal(t, tt.want, appErr.Message)
		})
	}
}

func TestClassifyNonStringMessageIsApplicationError(t *testing.T) {
	resp, _ := response(422, "application/json",
		`{"message": 42, "errors": {"targets": ["invalid"]}}`)

	var appErr *ApplicationError
	require.ErrorAs(t, Classify(resp), &appErr)
	assert.Equal(t, 422, appErr.StatusCode)
	assert.Equal(t, `42: {"targets":["invalid"]}`, appErr.Message)
	assert.Equal(t, map[string]any{"targets": []any{"invalid"}}, appErr.Errors)
}

func TestClassifyServerErrorIsTransportError(t *testing.T) {
	resp, body := response(500, "text/html", "<html>oops</html>")

	err := Classify(resp)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 500, te.StatusCode)
	assert.Equal(t, http.MethodGet, te.Method)
	assert.False(t, body.read, "body must not be parsed")

	var appErr *ApplicationError
	assert.False(t, errors.As(err, &appErr))
}

func TestClassifyServerErrorWithJSONIsTransportError(t *testing.T) {
	resp, body := response(503, "application/json", `{"message": "down"}`)

	var te *TransportError
	require.ErrorAs(t, Classify(resp), &te)
	assert.False(t, body.read)
}

func TestClassifyClientErrorWithoutJSONFallsThrough(t *testing.T) {
	resp, body := response(404, "text/plain", "not found")

	var te *TransportError
	require.ErrorAs(t, Classify(resp), &te)
	assert.Equal(t, 404, te.StatusCode)
	assert.False(t, body.read)
}

func TestClassifyMalformedJSONFallsThrough(t *testing.T) {
	resp, _ := response(400, "application/json", `not json`)

	var te *TransportError
	require.ErrorAs(t, Classify(resp), &te)
	assert.Equal(t, 400, te.StatusCode)
}

func TestFormatErrorMessage(t *testing.T) {
	msg := json.RawMessage(`"m"`)
	errs := json.RawMessage(`[1, 2]`)
	assert.Equal(t, "m: [1,2]", FormatErrorMessage(map[string]json.RawMessage{"message": msg, "errors": errs}))
	assert.Equal(t, "m", FormatErrorMessage(map[string]json.RawMessage{"message": msg}))
	assert.Equal(t, "[1,2]", FormatErrorMessage(map[string]json.RawMessage{"errors": errs}))
	assert.Equal(t, ": [1,2]", FormatErrorMessage(map[string]json.RawMessage{"message": json.RawMessage(`""`), "errors": errs}))
	assert.Equal(t, "unknown error", FormatErrorMessage(nil))
}

func TestTransportErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &TransportError{Method: "GET", URL: "u", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "connection refused")
}
