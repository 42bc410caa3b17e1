package turn

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/voice-journal/core/internal/journal/model"
)

// TranscriptManager keeps the spoken exchange of each session and renders it
// back as continuity context for a later session.
type TranscriptManager struct {
	repo     model.TranscriptRepository
	maxTurns int
}

func NewTranscriptManager(repo model.TranscriptRepository, config model.ConversationConfig) *TranscriptManager {
	return &TranscriptManager{
		repo:     repo,
		maxTurns: config.TranscriptMaxTurns,
	}
}

// RecordTurn appends the user utterance and whatever was spoken back.
func (m *TranscriptManager) RecordTurn(ctx context.Context, key model.SessionKey, utterance string, spoken []string) error {
	if err := m.repo.AddMessage(ctx, key, schema.UserMessage(utterance)); err != nil {
		return err
	}
	if len(spoken) == 0 {
		return nil
	}
	return m.repo.AddMessage(ctx, key, schema.AssistantMessage(strings.Join(spoken, " "), nil))
}

// Render returns the tail of a session transcript as plain dialogue lines, or
// an empty string when nothing was recorded.
func (m *TranscriptManager) Render(ctx context.Context, key model.SessionKey) (string, error) {
	t, err := m.repo.LoadTranscript(ctx, key)
	if err != nil {
		return "", err
	}
	return renderTranscript(trimTail(t.Messages, m.maxTurns)), nil
}

func (m *TranscriptManager) Clear(ctx context.Context, key model.SessionKey) error {
	return m.repo.ClearTranscript(ctx, key)
}

func renderTranscript(messages []*schema.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			b.WriteString("User: ")
		case schema.Assistant:
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(strings.TrimSpace(msg.Content))
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// trimTail keeps the last maxTurns messages. A non-positive limit keeps all.
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}
