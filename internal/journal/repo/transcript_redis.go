package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	errx "github.com/voice-journal/core/internal/core/error"
	"github.com/voice-journal/core/internal/journal/model"
	logx "github.com/voice-journal/core/pkg/logger"
)

// RedisTranscriptRepository appends the spoken exchange of a session to a Redis list.
type RedisTranscriptRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisTranscriptRepository(rdb redis.Cmdable, ttl time.Duration) *RedisTranscriptRepository {
	return &RedisTranscriptRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisTranscriptRepository) transcriptKey(key model.SessionKey) string {
	return fmt.Sprintf("journal:transcript:%s:%s:%s", key.UserID, key.Date, key.SessionID)
}

func (r *RedisTranscriptRepository) AddMessage(ctx context.Context, key model.SessionKey, message *schema.Message) error {
	b, err := json.Marshal(message)
	if err != nil {
		logx.Error().Err(err).Str("session", key.String()).Msg("failed to marshal message")
		return fmt.Errorf("marshal message: %w", err)
	}
	k := r.transcriptKey(key)

	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, k, b)
	if r.ttl > 0 {
		// extend TTL on touch
		pipe.Expire(ctx, k, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to append transcript message")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisTranscriptRepository) LoadTranscript(ctx context.Context, key model.SessionKey) (*model.Transcript, error) {
	k := r.transcriptKey(key)

	rows, err := r.rdb.LRange(ctx, k, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logx.Error().Err(err).Str("key", k).Msg("failed to load transcript from redis")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]*schema.Message, 0, len(rows))
	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Error().Err(err).Str("key", k).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, &m)
	}
	return &model.Transcript{Key: key, Messages: msgs}, nil
}

func (r *RedisTranscriptRepository) ClearTranscript(ctx context.Context, key model.SessionKey) error {
	k := r.transcriptKey(key)
	if err := r.rdb.Del(ctx, k).Err(); err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to delete transcript from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.TranscriptRepository = (*RedisTranscriptRepository)(nil)
