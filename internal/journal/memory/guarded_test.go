package memory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/voice-journal/core/internal/core/error"
	"github.com/voice-journal/core/internal/journal/cache"
	"github.com/voice-journal/core/internal/journal/model"
	logx "github.com/voice-journal/core/pkg/logger"
	"github.com/voice-journal/core/pkg/metrics"
)

type stubSearcher struct {
	results []model.MemorySnippet
	err     error
	calls   int
}

func (s *stubSearcher) Search(context.Context, string, string, int) ([]model.MemorySnippet, error) {
	s.calls++
	return s.results, s.err
}

var testBreaker = model.BreakerConfig{
	MaxRequests:      1,
	Interval:         time.Minute,
	Timeout:          time.Minute,
	FailureThreshold: 0.5,
	MinRequests:      2,
}

func TestGuardedSearcherCachesResults(t *testing.T) {
	logx.Silence()
	stub := &stubSearcher{results: []model.MemorySnippet{{Text: "gym on monday", Score: 0.9}}}
	g := NewGuardedSearcher(stub, cache.NewTopicCache(time.Minute), testBreaker, metrics.NewCollector("test"))

	first, err := g.Search(context.Background(), "u1", "gym", 3)
	require.NoError(t, err)
	second, err := g.Search(context.Background(), "u1", "gym", 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, stub.calls)
}

func TestGuardedSearcherMapsFailuresToUpstream(t *testing.T) {
	logx.Silence()
	stub := &stubSearcher{err: errors.New("connection refused")}
	g := NewGuardedSearcher(stub, nil, testBreaker, nil)

	_, err := g.Search(context.Background(), "u1", "gym", 3)

	require.Error(t, err)
	assert.ErrorIs(t, err, errx.ErrUpstreamUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, errx.StatusOf(err))
}

func TestGuardedSearcherOpensBreaker(t *testing.T) {
	logx.Silence()
	stub := &stubSearcher{err: errors.New("boom")}
	g := NewGuardedSearcher(stub, nil, testBreaker, nil)

	for i := 0; i < 2; i++ {
		_, _ = g.Search(context.Background(), "u1", "work", 3)
	}
	require.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.Search(context.Background(), "u1", "work", 3)

	assert.ErrorIs(t, err, errx.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, stub.calls, "open breaker short-circuits the call")
}

func TestHTTPSearcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "u1", req.UserID)
		assert.Equal(t, "focus", req.Topic)

		_ = json.NewEncoder(w).Encode(searchResponse{Results: []model.MemorySnippet{
			{Date: "2025-03-03", Text: "could not focus after lunch", Score: 0.8},
			{Date: "2025-03-01", Text: "deep work block went well", Score: 0.6},
		}})
	}))
	defer srv.Close()

	s := NewHTTPSearcher(srv.URL, time.Second)
	got, err := s.Search(context.Background(), "u1", "focus", 1)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "could not focus after lunch", got[0].Text)
}

func TestHTTPSearcherNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index rebuilding", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPSearcher(srv.URL, time.Second).Search(context.Background(), "u1", "focus", 3)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
