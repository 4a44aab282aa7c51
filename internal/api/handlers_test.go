package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lexiroute/lexiroute/internal/apperr"
	"github.com/lexiroute/lexiroute/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// stubInvoker returns a scripted result for every call.
type stubInvoker struct {
	out string
	err error
}

func (s stubInvoker) Translate(context.Context, config.Endpoint, string, string) (string, error) {
	return s.out, s.err
}

func testServerConfig() *config.Config {
	return &config.Config{
		Port: 8318,
		Endpoints: []config.Endpoint{{
			ID:             "primary",
			BaseURL:        "https://primary.example/v1",
			Enabled:        true,
			Weight:         50,
			MaxConcurrency: 2,
		}},
	}
}

func newTestServer(invoker stubInvoker) *Server {
	rt := BuildRuntime(testServerConfig(), invoker, nil)
	return NewServer(rt, nil)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleTranslateSuccess(t *testing.T) {
	srv := newTestServer(stubInvoker{out: "hallo"})
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/v1/translate", `{"text":"hello","system_prompt":"to German"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hallo", gjson.Get(rec.Body.String(), "translated_text").String())
}

func TestHandleTranslateEmptyTextPassesThrough(t *testing.T) {
	srv := newTestServer(stubInvoker{err: errors.New("must not be called")})
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/v1/translate", `{"text":"   "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "   ", gjson.Get(rec.Body.String(), "translated_text").String())
}

func TestHandleTranslateBadRequest(t *testing.T) {
	srv := newTestServer(stubInvoker{out: "x"})
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/translate", `{"text": 42`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTranslateNoEndpoints(t *testing.T) {
	cfg := testServerConfig()
	cfg.Endpoints = nil
	srv := NewServer(BuildRuntime(cfg, stubInvoker{out: "x"}, nil), nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/translate", `{"text":"hello"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no_endpoints", gjson.Get(rec.Body.String(), "error.code").String())
}

func TestHandleEndpointsTelemetry(t *testing.T) {
	srv := newTestServer(stubInvoker{out: "ok"})
	handler := srv.Handler()

	// One successful dispatch so the snapshot carries history.
	rec := doJSON(t, handler, http.MethodPost, "/v1/translate", `{"text":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/v1/endpoints", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "primary", gjson.Get(body, "endpoints.0.id").String())
	assert.Equal(t, int64(1), gjson.Get(body, "endpoints.0.stats.success_count").Int())
	assert.Equal(t, float64(1), gjson.Get(body, "endpoints.0.stats.success_rate").Float())
}

func TestHandleResetEndpoint(t *testing.T) {
	srv := newTestServer(stubInvoker{out: "ok"})
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/v1/translate", `{"text":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/v1/endpoints/primary/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/v1/endpoints", "")
	assert.Equal(t, int64(0), gjson.Get(rec.Body.String(), "endpoints.0.stats.total_requests").Int())

	rec = doJSON(t, handler, http.MethodPost, "/v1/endpoints/ghost/reset", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUsageDisabled(t *testing.T) {
	srv := newTestServer(stubInvoker{out: "ok"})
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/usage", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleLogs(t *testing.T) {
	srv := newTestServer(stubInvoker{out: "ok"})
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/logs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "logs").Exists())
}

func TestSwapRuntime(t *testing.T) {
	srv := newTestServer(stubInvoker{out: "first"})
	old := srv.Runtime()

	next := BuildRuntime(testServerConfig(), stubInvoker{out: "second"}, nil)
	swapped := srv.SwapRuntime(next)
	assert.Same(t, old, swapped)
	assert.Same(t, next, srv.Runtime())

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/translate", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "second", gjson.Get(rec.Body.String(), "translated_text").String())
}

func TestClassifyDispatchError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"cancelled", context.Canceled, 499, "request_cancelled"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "request_timeout"},
		{"config", apperr.NewConfigError("no endpoints"), http.StatusServiceUnavailable, "no_endpoints"},
		{"exhausted", &apperr.ExhaustedError{Attempts: 5, Last: errors.New("boom")}, http.StatusBadGateway, "translation_failed"},
		{"other", errors.New("unknown"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := classifyDispatchError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, code)
		})
	}
}
