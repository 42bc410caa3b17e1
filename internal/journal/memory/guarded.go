package memory

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	errx "github.com/voice-journal/core/internal/core/error"
	"github.com/voice-journal/core/internal/journal/cache"
	"github.com/voice-journal/core/internal/journal/model"
	logx "github.com/voice-journal/core/pkg/logger"
	"github.com/voice-journal/core/pkg/metrics"
)

// GuardedSearcher serves lookups from the topic cache and sends misses through
// a circuit breaker. Every failure is returned as errx.ErrUpstreamUnavailable.
// Failed lookups are never retried here.
type GuardedSearcher struct {
	next    Searcher
	cache   *cache.TopicCache
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Collector
}

func NewGuardedSearcher(next Searcher, topicCache *cache.TopicCache, cfg model.BreakerConfig, m *metrics.Collector) *GuardedSearcher {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "memory-search",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logx.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// A cancelled caller says nothing about the health of the service.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &GuardedSearcher{
		next:    next,
		cache:   topicCache,
		breaker: breaker,
		metrics: m,
	}
}

func (g *GuardedSearcher) Search(ctx context.Context, userID, topic string, limit int) ([]model.MemorySnippet, error) {
	if g.cache != nil {
		if results, ok := g.cache.Get(userID, topic); ok {
			g.count("cache")
			return results, nil
		}
	}

	out, err := g.breaker.Execute(func() (any, error) {
		return g.next.Search(ctx, userID, topic, limit)
	})
	if err != nil {
		g.count("error")
		logx.Warn().Err(err).Str("user_id", userID).Str("topic", topic).Msg("memory search unavailable")
		return nil, errx.Upstream(err)
	}

	results, _ := out.([]model.MemorySnippet)
	if results == nil {
		results = []model.MemorySnippet{}
	}
	if g.cache != nil {
		g.cache.Set(userID, topic, results)
	}
	g.count("ok")
	return results, nil
}

// State exposes the breaker state for health reporting.
func (g *GuardedSearcher) State() gobreaker.State {
	return g.breaker.State()
}

func (g *GuardedSearcher) count(result string) {
	if g.metrics != nil {
		g.metrics.MemoryLookups.WithLabelValues(result).Inc()
	}
}

var _ Searcher = (*GuardedSearcher)(nil)
