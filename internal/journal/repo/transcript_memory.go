package repo

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/voice-journal/core/internal/journal/model"
)

// MemoryTranscriptRepository keeps transcripts in process.
type MemoryTranscriptRepository struct {
	mu   sync.Mutex
	msgs map[model.SessionKey][]*schema.Message
}

func NewMemoryTranscriptRepository() *MemoryTranscriptRepository {
	return &MemoryTranscriptRepository{msgs: make(map[model.SessionKey][]*schema.Message)}
}

func (r *MemoryTranscriptRepository) AddMessage(_ context.Context, key model.SessionKey, message *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[key] = append(r.msgs[key], message)
	return nil
}

func (r *MemoryTranscriptRepository) LoadTranscript(_ context.Context, key model.SessionKey) (*model.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]*schema.Message, len(r.msgs[key]))
	copy(msgs, r.msgs[key])
	return &model.Transcript{Key: key, Messages: msgs}, nil
}

func (r *MemoryTranscriptRepository) ClearTranscript(_ context.Context, key model.SessionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.msgs, key)
	return nil
}

var _ model.TranscriptRepository = (*MemoryTranscriptRepository)(nil)
