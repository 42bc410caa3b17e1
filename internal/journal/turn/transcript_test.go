package turn

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voice-journal/core/internal/journal/model"
	"github.com/voice-journal/core/internal/journal/repo"
)

func TestTranscriptManagerRender(t *testing.T) {
	ctx := context.Background()
	key := model.SessionKey{UserID: "u1", Date: "2025-03-03", SessionID: "s0"}
	m := NewTranscriptManager(repo.NewMemoryTranscriptRepository(), model.ConversationConfig{TranscriptMaxTurns: 3})

	empty, err := m.Render(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "", empty)

	require.NoError(t, m.RecordTurn(ctx, key, "I had a long day", nil))
	require.NoError(t, m.RecordTurn(ctx, key, "I skipped the gym", []string{"That sounds hard.", "What got in the way?"}))
	require.NoError(t, m.RecordTurn(ctx, key, "  work ran late  ", []string{"How are you now?"}))

	out, err := m.Render(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Assistant: That sounds hard. What got in the way?\nUser: work ran late\nAssistant: How are you now?", out)
}

func TestRenderTranscriptSkipsEmptyAndSystem(t *testing.T) {
	out := renderTranscript([]*schema.Message{
		nil,
		schema.SystemMessage("hidden"),
		schema.UserMessage(" "),
		schema.UserMessage("hello"),
	})
	assert.Equal(t, "User: hello", out)
}

func TestTrimTail(t *testing.T) {
	msgs := []*schema.Message{schema.UserMessage("a"), schema.UserMessage("b"), schema.UserMessage("c")}
	assert.Len(t, trimTail(msgs, 2), 2)
	assert.Equal(t, "b", trimTail(msgs, 2)[0].Content)
	assert.Len(t, trimTail(msgs, 0), 3)
	assert.Len(t, trimTail(msgs, 10), 3)
}
