package repo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/voice-journal/core/internal/core/error"
	"github.com/voice-journal/core/internal/journal/model"
	logx "github.com/voice-journal/core/pkg/logger"
)

var key = model.SessionKey{UserID: "u1", Date: "2025-03-04", SessionID: "s1"}

type repoFactory func(t *testing.T) model.StateRepository

func newRedisRepo(t *testing.T) model.StateRepository {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStateRepository(rdb, 48*time.Hour, time.UTC)
}

func newMemoryRepo(*testing.T) model.StateRepository {
	return NewMemoryStateRepository()
}

func forEachRepo(t *testing.T, fn func(t *testing.T, r model.StateRepository)) {
	logx.Silence()
	for name, factory := range map[string]repoFactory{"redis": newRedisRepo, "memory": newMemoryRepo} {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestLoadMissingSession(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r model.StateRepository) {
		_, err := r.Load(context.Background(), key)

		assert.ErrorIs(t, err, errx.ErrSessionNotFound)
	})
}

func TestCreateAndLoad(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r model.StateRepository) {
		ctx := context.Background()

		created, err := r.Create(ctx, key)
		require.NoError(t, err)
		loaded, err := r.Load(ctx, key)
		require.NoError(t, err)

		assert.Equal(t, model.PhaseListening, loaded.Phase)
		assert.Equal(t, model.Vocabulary, loaded.UnexploredThemes)
		assert.Empty(t, loaded.ExploredThemes)
		assert.Nil(t, loaded.UserInitialSharing)
		assert.Equal(t, key, loaded.Key())
		assert.True(t, created.CreatedAt.Equal(loaded.CreatedAt))
	})
}

func TestCreateIsIdempotent(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r model.StateRepository) {
		ctx := context.Background()
		_, err := r.Create(ctx, key)
		require.NoError(t, err)
		_, err = r.Update(ctx, key, model.StatePatch{Mood: model.Ptr("calm")})
		require.NoError(t, err)

		again, err := r.Create(ctx, key)
		require.NoError(t, err)

		require.NotNil(t, again.Mood)
		assert.Equal(t, "calm", *again.Mood)
	})
}

func TestUpdateMissingSession(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r model.StateRepository) {
		_, err := r.Update(context.Background(), key, model.StatePatch{Mood: model.Ptr("tired")})

		assert.ErrorIs(t, err, errx.ErrSessionNotFound)
	})
}

func TestUpdateMergesFields(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r model.StateRepository) {
		ctx := context.Background()
		_, err := r.Create(ctx, key)
		require.NoError(t, err)

		_, err = r.Update(ctx, key, model.StatePatch{
			Mood:   model.Ptr("tired"),
			Anchor: model.Ptr(model.ThemeProjects),
		})
		require.NoError(t, err)
		updated, err := r.Update(ctx, key, model.StatePatch{
			Phase:              model.Ptr(model.PhaseReflecting),
			UserInitialSharing: model.Ptr("long day"),
			YesterdayContext:   []model.MemorySnippet{{Text: "gym monday", Score: 0.7}},
		})
		require.NoError(t, err)

		assert.Equal(t, model.PhaseReflecting, updated.Phase)
		assert.Equal(t, "tired", *updated.Mood)
		assert.Equal(t, model.ThemeProjects, *updated.Anchor)
		assert.Equal(t, "gym monday", updated.YesterdayContext[0].Text)
		assert.False(t, updated.LastUpdated.Before(updated.CreatedAt))

		loaded, err := r.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, updated.Phase, loaded.Phase)
		assert.Equal(t, *updated.Mood, *loaded.Mood)
	})
}

func TestUpdateClearsAnchor(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r model.StateRepository) {
		ctx := context.Background()
		_, err := r.Create(ctx, key)
		require.NoError(t, err)
		_, err = r.Update(ctx, key, model.StatePatch{Anchor: model.Ptr(model.ThemeGym)})
		require.NoError(t, err)

		updated, err := r.Update(ctx, key, model.StatePatch{ClearAnchor: true})
		require.NoError(t, err)

		assert.Nil(t, updated.Anchor)
	})
}

func TestConcurrentUpdatesKeepUntouchedFields(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r model.StateRepository) {
		ctx := context.Background()
		_, err := r.Create(ctx, key)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := r.Update(ctx, key, model.StatePatch{Mood: model.Ptr("tired"), Tone: model.Ptr("sad")})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := r.Update(ctx, key, model.StatePatch{Anchor: model.Ptr(model.ThemeWork), Tone: model.Ptr("calm")})
			assert.NoError(t, err)
		}()
		wg.Wait()

		final, err := r.Load(ctx, key)
		require.NoError(t, err)

		require.NotNil(t, final.Mood)
		require.NotNil(t, final.Anchor)
		assert.Equal(t, "tired", *final.Mood)
		assert.Equal(t, model.ThemeWork, *final.Anchor)
		require.NotNil(t, final.Tone)
		assert.Contains(t, []string{"sad", "calm"}, *final.Tone, "last write wins on the shared field")
	})
}

func TestLaterWriteWinsSharedField(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r model.StateRepository) {
		ctx := context.Background()
		_, err := r.Create(ctx, key)
		require.NoError(t, err)

		_, err = r.Update(ctx, key, model.StatePatch{Tone: model.Ptr("sad"), Mood: model.Ptr("low")})
		require.NoError(t, err)
		_, err = r.Update(ctx, key, model.StatePatch{Tone: model.Ptr("calm")})
		require.NoError(t, err)

		final, err := r.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "calm", *final.Tone)
		assert.Equal(t, "low", *final.Mood)
	})
}

func without(list []model.Theme, drop ...model.Theme) []model.Theme {
	out := make([]model.Theme, 0, len(list))
	for _, t := range list {
		if !model.ContainsTheme(drop, t) {
			out = append(out, t)
		}
	}
	return out
}

func TestStalePatchKeepsExploredThemesAndQuestions(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r model.StateRepository) {
		ctx := context.Background()
		_, err := r.Create(ctx, key)
		require.NoError(t, err)
		_, err = r.Update(ctx, key, model.StatePatch{
			Phase:              model.Ptr(model.PhaseReflecting),
			UserInitialSharing: model.Ptr("behind on my project"),
			ExploredThemes:     []model.Theme{model.ThemeProjects},
			UnexploredThemes:   without(model.Vocabulary, model.ThemeProjects),
			AskedQuestions:     []string{"what felt hardest"},
		})
		require.NoError(t, err)

		// Both turns start from the same record; the gym turn lands first.
		_, err = r.Update(ctx, key, model.StatePatch{
			Phase:            model.Ptr(model.PhaseQuestioning),
			ExploredThemes:   []model.Theme{model.ThemeProjects, model.ThemeGym},
			UnexploredThemes: without(model.Vocabulary, model.ThemeProjects, model.ThemeGym),
			AskedQuestions:   []string{"what felt hardest", "what got in the way of the gym"},
		})
		require.NoError(t, err)
		final, err := r.Update(ctx, key, model.StatePatch{
			Phase:            model.Ptr(model.PhaseQuestioning),
			ExploredThemes:   []model.Theme{model.ThemeProjects, model.ThemeWork},
			UnexploredThemes: without(model.Vocabulary, model.ThemeProjects, model.ThemeWork),
			AskedQuestions:   []string{"what felt hardest", "what happened at work"},
		})
		require.NoError(t, err)

		assert.Equal(t, []model.Theme{model.ThemeProjects, model.ThemeGym, model.ThemeWork}, final.ExploredThemes)
		assert.Equal(t, without(model.Vocabulary, model.ThemeProjects, model.ThemeGym, model.ThemeWork), final.UnexploredThemes)
		assert.Equal(t, []string{"what felt hardest", "what got in the way of the gym", "what happened at work"}, final.AskedQuestions)
		require.NoError(t, final.Validate())

		loaded, err := r.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, final.ExploredThemes, loaded.ExploredThemes)
		assert.Equal(t, final.UnexploredThemes, loaded.UnexploredThemes)
	})
}

func TestClosedSessionRejectsUpdates(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r model.StateRepository) {
		ctx := context.Background()
		_, err := r.Create(ctx, key)
		require.NoError(t, err)
		_, err = r.Update(ctx, key, model.StatePatch{Phase: model.Ptr(model.PhaseClosed)})
		require.NoError(t, err)

		_, err = r.Update(ctx, key, model.StatePatch{
			Phase:          model.Ptr(model.PhaseQuestioning),
			ExploredThemes: []model.Theme{model.ThemeGym},
		})
		assert.ErrorIs(t, err, errx.ErrInvalidTransition)

		loaded, err := r.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, model.PhaseClosed, loaded.Phase)
		assert.Empty(t, loaded.ExploredThemes)
	})
}

func TestDelete(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r model.StateRepository) {
		ctx := context.Background()
		_, err := r.Create(ctx, key)
		require.NoError(t, err)

		require.NoError(t, r.Delete(ctx, key))
		require.NoError(t, r.Delete(ctx, key))

		_, err = r.Load(ctx, key)
		assert.ErrorIs(t, err, errx.ErrSessionNotFound)
	})
}

func TestRedisStateKeyLayoutAndExpiry(t *testing.T) {
	logx.Silence()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	now := time.Date(2025, 3, 4, 20, 0, 0, 0, time.UTC)
	mr.SetTime(now)
	r := NewRedisStateRepository(rdb, 48*time.Hour, time.UTC)
	r.now = func() time.Time { return now }

	_, err := r.Create(context.Background(), key)
	require.NoError(t, err)

	stored := "journal:state:u1:2025-03-04:s1"
	require.True(t, mr.Exists(stored))
	assert.Equal(t, `"listening"`, mr.HGet(stored, "session_phase"))
	// end of 2025-03-04 plus 48h, measured from 20:00 that day
	assert.Equal(t, 52*time.Hour, mr.TTL(stored))
}

func TestExpiryFor(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	today := expiryFor("2025-03-10", time.UTC, 24*time.Hour, now)
	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), today)

	old := expiryFor("2025-01-01", time.UTC, 24*time.Hour, now)
	assert.Equal(t, now.Add(24*time.Hour), old)

	bad := expiryFor("not-a-date", time.UTC, time.Hour, now)
	assert.Equal(t, now.Add(time.Hour), bad)
}
