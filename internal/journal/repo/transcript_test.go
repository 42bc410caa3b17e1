package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voice-journal/core/internal/journal/model"
	logx "github.com/voice-journal/core/pkg/logger"
)

func TestTranscriptRepositories(t *testing.T) {
	logx.Silence()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	repos := map[string]model.TranscriptRepository{
		"redis":  NewRedisTranscriptRepository(rdb, time.Hour),
		"memory": NewMemoryTranscriptRepository(),
	}

	for name, r := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := r.LoadTranscript(ctx, key)
			require.NoError(t, err)
			assert.Empty(t, empty.Messages)

			require.NoError(t, r.AddMessage(ctx, key, schema.UserMessage("I had a long day")))
			require.NoError(t, r.AddMessage(ctx, key, schema.AssistantMessage("How are you feeling now?", nil)))

			tr, err := r.LoadTranscript(ctx, key)
			require.NoError(t, err)
			require.Len(t, tr.Messages, 2)
			assert.Equal(t, schema.User, tr.Messages[0].Role)
			assert.Equal(t, "How are you feeling now?", tr.Messages[1].Content)

			require.NoError(t, r.ClearTranscript(ctx, key))
			tr, err = r.LoadTranscript(ctx, key)
			require.NoError(t, err)
			assert.Empty(t, tr.Messages)
		})
	}
}

func TestRedisTranscriptTTL(t *testing.T) {
	logx.Silence()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	r := NewRedisTranscriptRepository(rdb, 72*time.Hour)
	require.NoError(t, r.AddMessage(context.Background(), key, schema.UserMessage("hi")))

	assert.Equal(t, 72*time.Hour, mr.TTL("journal:transcript:u1:2025-03-04:s1"))
}
