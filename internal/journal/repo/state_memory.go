package repo

import (
	"context"
	"sync"
	"time"

	errx "github.com/voice-journal/core/internal/core/error"
	"github.com/voice-journal/core/internal/journal/model"
)

// MemoryStateRepository is an in-process store with the same merge semantics
// as the Redis repository. Records do not expire.
type MemoryStateRepository struct {
	mu     sync.Mutex
	states map[model.SessionKey]*model.ConversationState
	now    func() time.Time
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{
		states: make(map[model.SessionKey]*model.ConversationState),
		now:    time.Now,
	}
}

// WithClock replaces time.Now. Intended for tests.
func (r *MemoryStateRepository) WithClock(now func() time.Time) *MemoryStateRepository {
	r.now = now
	return r
}

func (r *MemoryStateRepository) Load(_ context.Context, key model.SessionKey) (*model.ConversationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[key]
	if !ok {
		return nil, errx.SessionNotFound(key.String())
	}
	return s.Clone(), nil
}

func (r *MemoryStateRepository) Create(_ context.Context, key model.SessionKey) (*model.ConversationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.states[key]; ok {
		return s.Clone(), nil
	}
	s := model.NewConversationState(key, r.now().UTC())
	r.states[key] = s
	return s.Clone(), nil
}

func (r *MemoryStateRepository) Update(_ context.Context, key model.SessionKey, patch model.StatePatch) (*model.ConversationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[key]
	if !ok {
		return nil, errx.SessionNotFound(key.String())
	}
	if s.Phase == model.PhaseClosed {
		return nil, errx.InvalidTransition("session " + key.String() + " is closed")
	}
	s.Apply(patch.Rebase(s), r.now().UTC())
	return s.Clone(), nil
}

func (r *MemoryStateRepository) Delete(_ context.Context, key model.SessionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, key)
	return nil
}

var _ model.StateRepository = (*MemoryStateRepository)(nil)
