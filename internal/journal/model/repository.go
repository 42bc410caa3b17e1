package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// StateRepository is the session state store. It is the only writer of
// persisted state.
type StateRepository interface {
	// Load returns the persisted state or errx.ErrSessionNotFound.
	Load(ctx context.Context, key SessionKey) (*ConversationState, error)

	// Create stores the initial state. Creating an existing session returns the stored record.
	Create(ctx context.Context, key SessionKey) (*ConversationState, error)

	// Update merges patch into the persisted record and returns the result.
	Update(ctx context.Context, key SessionKey, patch StatePatch) (*ConversationState, error)

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, key SessionKey) error
}

// TranscriptRepository stores the spoken exchange of a session.
type TranscriptRepository interface {
	AddMessage(ctx context.Context, key SessionKey, message *schema.Message) error
	LoadTranscript(ctx context.Context, key SessionKey) (*Transcript, error)
	ClearTranscript(ctx context.Context, key SessionKey) error
}

// Transcript is the loaded message list of one session.
type Transcript struct {
	Key      SessionKey
	Messages []*schema.Message
}
