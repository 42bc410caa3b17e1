package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voice-journal/core/internal/journal/cache"
	"github.com/voice-journal/core/internal/journal/extractor"
	"github.com/voice-journal/core/internal/journal/instructions"
	"github.com/voice-journal/core/internal/journal/memory"
	"github.com/voice-journal/core/internal/journal/model"
	"github.com/voice-journal/core/internal/journal/phase"
	"github.com/voice-journal/core/internal/journal/repo"
	"github.com/voice-journal/core/internal/journal/turn"
	logx "github.com/voice-journal/core/pkg/logger"
	"github.com/voice-journal/core/pkg/metrics"
)

const (
	backendRedis  = "redis"
	backendMemory = "memory"

	strategyKeyword = "keyword"
	strategyModel   = "model"
)

// app is the wired service. Every collaborator is an explicit instance owned here.
type app struct {
	processor *turn.Processor
	metrics   *metrics.Collector
	location  *time.Location
	rdb       *redis.Client
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

// ping reports store health; the in-memory backend is always healthy.
func (a *app) ping(ctx context.Context) error {
	if a.rdb == nil {
		return nil
	}
	return a.rdb.Ping(ctx).Err()
}

func buildApp(ctx context.Context, cfg AppConfig) (*app, error) {
	loc, err := time.LoadLocation(cfg.Conversation.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Conversation.Timezone, err)
	}

	a := &app{
		metrics:  metrics.NewCollector("journal"),
		location: loc,
	}

	var (
		states      model.StateRepository
		transcripts model.TranscriptRepository
	)
	switch cfg.StoreBackend {
	case backendRedis:
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialise redis client: %w", err)
		}
		a.rdb = rdb
		states = repo.NewRedisStateRepository(rdb, cfg.Conversation.StateGrace, loc)
		transcripts = repo.NewRedisTranscriptRepository(rdb, cfg.Conversation.TranscriptTTL)
		logx.Info().Msg("Connected to Redis successfully")
	case backendMemory:
		states = repo.NewMemoryStateRepository()
		transcripts = repo.NewMemoryTranscriptRepository()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	ext, err := buildExtractor(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	builder, err := instructions.NewBuilder()
	if err != nil {
		a.Close()
		return nil, err
	}

	topicCache := cache.NewTopicCache(cfg.Cache.TopicTTL, cache.WithMetrics(a.metrics))
	var searcher memory.Searcher = memory.NopSearcher{}
	if cfg.Memory.URL != "" {
		searcher = memory.NewHTTPSearcher(cfg.Memory.URL, cfg.Memory.Timeout)
	}

	a.processor, err = turn.NewProcessor(turn.Config{
		States:       states,
		Transcripts:  transcripts,
		Extractor:    ext,
		Controller:   phase.NewController(),
		Builder:      builder,
		Memory:       memory.NewGuardedSearcher(searcher, topicCache, cfg.Memory.Breaker, a.metrics),
		TopicCache:   topicCache,
		Metrics:      a.metrics,
		Conversation: cfg.Conversation,
		MemoryLimit:  cfg.Memory.Limit,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func buildExtractor(ctx context.Context, cfg AppConfig) (extractor.Extractor, error) {
	switch cfg.Extractor.Strategy {
	case strategyKeyword, "":
		return extractor.NewKeywordExtractor(), nil
	case strategyModel:
		chatModel, err := extractor.NewChatModel(ctx, extractor.ChatModelConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Extractor: cfg.Extractor,
		})
		if err != nil {
			return nil, err
		}
		return extractor.NewModelExtractor(ctx, chatModel, cfg.Extractor)
	default:
		return nil, fmt.Errorf("unknown extractor strategy %q", cfg.Extractor.Strategy)
	}
}
