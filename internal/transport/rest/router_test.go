package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voice-journal/core/internal/journal/extractor"
	"github.com/voice-journal/core/internal/journal/instructions"
	"github.com/voice-journal/core/internal/journal/model"
	"github.com/voice-journal/core/internal/journal/repo"
	"github.com/voice-journal/core/internal/journal/turn"
	logx "github.com/voice-journal/core/pkg/logger"
	"github.com/voice-journal/core/pkg/metrics"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 4, 21, 0, 0, 0, time.UTC) }

func newTestServer(t *testing.T, ping func(context.Context) error) (*httptest.Server, *metrics.Collector) {
	t.Helper()
	logx.Silence()

	proc, err := turn.NewProcessor(turn.Config{
		States:      repo.NewMemoryStateRepository(),
		Transcripts: repo.NewMemoryTranscriptRepository(),
		Extractor:   extractor.NewKeywordExtractor(),
		Builder:     instructions.MustNewBuilder(),
	})
	require.NoError(t, err)

	m := metrics.NewCollector("test")
	srv := httptest.NewServer(NewRouter(Config{Service: proc, Metrics: m, Ping: ping, Now: fixedNow}).Setup())
	t.Cleanup(srv.Close)
	return srv, m
}

func do(t *testing.T, srv *httptest.Server, method, path, body, user string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSessionLifecycle(t *testing.T) {
	srv, m := newTestServer(t, nil)

	resp := do(t, srv, http.MethodPost, "/v1/sessions", "", "u1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[sessionResponse](t, resp)
	assert.NotEmpty(t, created.SessionID)
	assert.Equal(t, "2025-03-04", created.Date)
	assert.Equal(t, model.PhaseListening, created.State.Phase)

	turnPath := "/v1/sessions/" + created.SessionID + "/turns"
	resp = do(t, srv, http.MethodPost, turnPath,
		`{"date":"2025-03-04","utterance":"I felt behind on my project","is_finished_sharing":true}`, "u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[model.TurnResult](t, resp)
	assert.Equal(t, model.PhaseMoodConfirmation, result.State.Phase)
	assert.Contains(t, result.Instructions, instructions.SpeakOpen)

	resp = do(t, srv, http.MethodGet, "/v1/sessions/"+created.SessionID+"?date=2025-03-04", "", "u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[sessionResponse](t, resp)
	assert.Equal(t, model.PhaseMoodConfirmation, got.State.Phase)

	resp = do(t, srv, http.MethodGet, "/v1/sessions/"+created.SessionID+"?date=2025-03-04", "", "someone-else")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "sessions are scoped to their user")

	resp = do(t, srv, http.MethodDelete, "/v1/sessions/"+created.SessionID+"?date=2025-03-04", "", "u1")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/v1/sessions/"+created.SessionID+"?date=2025-03-04", "", "u1")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/v1/sessions/{sessionID}/turns", "200")))
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := do(t, srv, http.MethodPost, "/v1/sessions/s1/turns", `{"date":"2025-03-04","utterance":"hi"}`, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing user header")

	resp = do(t, srv, http.MethodPost, "/v1/sessions/s1/turns", `{"date":"2025-03-04"}`, "u1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	assert.True(t, body.Error)
	assert.Equal(t, http.StatusBadRequest, body.Code)
	assert.Contains(t, body.Message, "Utterance")

	resp = do(t, srv, http.MethodPost, "/v1/sessions/s1/turns", `{"date":"2025-03-04","utterance":"hi","bogus":1}`, "u1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown fields are rejected")

	resp = do(t, srv, http.MethodPost, "/v1/sessions/s1/turns", `{"date":"2025-03-04","utterance":"bye","completed":true}`, "u1")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/v1/sessions/s1/turns",
		`{"date":"2025-03-04","utterance":"work","is_finished_sharing":true,"skip_mood":true}`, "u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, srv, http.MethodPost, "/v1/sessions/s1/turns", `{"date":"2025-03-04","utterance":"that's it","completed":true}`, "u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, srv, http.MethodPost, "/v1/sessions/s1/turns", `{"date":"2025-03-04","utterance":"wait"}`, "u1")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/v1/sessions/s1", "", "u1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "date is required")
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp := do(t, srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	down, _ := newTestServer(t, func(context.Context) error { return errors.New("redis down") })
	resp = do(t, down, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
