package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Phase is the stage of the journaling protocol. It is the only field that
// drives control flow.
type Phase string

const (
	PhaseListening        Phase = "listening"
	PhaseMoodConfirmation Phase = "mood_confirmation"
	PhaseReflecting       Phase = "reflecting"
	PhaseQuestioning      Phase = "questioning"
	PhaseClosed           Phase = "closed"
)

var phases = []Phase{PhaseListening, PhaseMoodConfirmation, PhaseReflecting, PhaseQuestioning, PhaseClosed}

func (p Phase) Valid() bool {
	return slices.Contains(phases, p)
}

func (p Phase) String() string {
	return string(p)
}

func (p *Phase) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if !Phase(s).Valid() {
		return fmt.Errorf("unknown session phase %q", s)
	}
	*p = Phase(s)
	return nil
}

type ConversationMode string

const (
	ModeListener  ConversationMode = "listener"
	ModeExploring ConversationMode = "exploring"
	ModeDeepening ConversationMode = "deepening"
	ModeClosing   ConversationMode = "closing"
)

func (m ConversationMode) Valid() bool {
	switch m {
	case ModeListener, ModeExploring, ModeDeepening, ModeClosing:
		return true
	}
	return false
}

func (m *ConversationMode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if !ConversationMode(s).Valid() {
		return fmt.Errorf("unknown conversation mode %q", s)
	}
	*m = ConversationMode(s)
	return nil
}

type ReflectionMode string

const (
	ReflectionNeutral  ReflectionMode = "neutral"
	ReflectionCoaching ReflectionMode = "coaching"
	ReflectionLearning ReflectionMode = "learning"
)

func (m ReflectionMode) Valid() bool {
	switch m {
	case ReflectionNeutral, ReflectionCoaching, ReflectionLearning:
		return true
	}
	return false
}

func (m *ReflectionMode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if !ReflectionMode(s).Valid() {
		return fmt.Errorf("unknown reflection mode %q", s)
	}
	*m = ReflectionMode(s)
	return nil
}

// MemorySnippet is one ranked result from the long-term memory service.
type MemorySnippet struct {
	Date  string  `json:"date,omitempty"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// SessionKey identifies a day-scoped session.
type SessionKey struct {
	UserID    string `validate:"required,max=128"`
	Date      string `validate:"required,datetime=2006-01-02"`
	SessionID string `validate:"required,max=128"`
}

func (k SessionKey) String() string {
	return k.UserID + ":" + k.Date + ":" + k.SessionID
}

// ConversationState is the persisted record of one journaling session.
// JSON names double as the flat field names in the store.
type ConversationState struct {
	SessionID   string    `json:"session_id"`
	Date        string    `json:"date"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`

	Phase              Phase   `json:"session_phase"`
	UserInitialSharing *string `json:"user_initial_sharing"`
	SharingDraft       string  `json:"sharing_draft"`
	Mood               *string `json:"mood"`
	Anchor             *Theme  `json:"anchor"`

	ExploredThemes   []Theme  `json:"explored_themes"`
	UnexploredThemes []Theme  `json:"unexplored_themes"`
	AskedQuestions   []string `json:"asked_questions"`

	Tone             *string         `json:"tone"`
	YesterdayContext []MemorySnippet `json:"yesterday_context"`

	ConversationMode ConversationMode `json:"conversation_mode"`
	ReflectionMode   ReflectionMode   `json:"reflection_mode"`
	LastAIAction     *string          `json:"last_ai_action"`

	FocusTheme      Theme  `json:"focus_theme"`
	PendingQuestion string `json:"pending_question"`
	TurnCount       int    `json:"turn_count"`
}

// NewConversationState returns the initial record for a session.
func NewConversationState(key SessionKey, now time.Time) *ConversationState {
	return &ConversationState{
		SessionID:        key.SessionID,
		Date:             key.Date,
		UserID:           key.UserID,
		CreatedAt:        now,
		LastUpdated:      now,
		Phase:            PhaseListening,
		ExploredThemes:   []Theme{},
		UnexploredThemes: slices.Clone(Vocabulary),
		AskedQuestions:   []string{},
		YesterdayContext: []MemorySnippet{},
		ConversationMode: ModeListener,
		ReflectionMode:   ReflectionNeutral,
	}
}

// Key returns the identity triple of the state.
func (s *ConversationState) Key() SessionKey {
	return SessionKey{UserID: s.UserID, Date: s.Date, SessionID: s.SessionID}
}

// Clone returns a deep copy.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	c := *s
	c.UserInitialSharing = clonePtr(s.UserInitialSharing)
	c.Mood = clonePtr(s.Mood)
	c.Anchor = clonePtr(s.Anchor)
	c.Tone = clonePtr(s.Tone)
	c.LastAIAction = clonePtr(s.LastAIAction)
	c.ExploredThemes = slices.Clone(s.ExploredThemes)
	c.UnexploredThemes = slices.Clone(s.UnexploredThemes)
	c.AskedQuestions = slices.Clone(s.AskedQuestions)
	c.YesterdayContext = slices.Clone(s.YesterdayContext)
	return &c
}

// Validate checks the data invariants of the record. Phase stays authoritative;
// a field combination that disagrees with it is reported, never used to
// re-derive the phase.
func (s *ConversationState) Validate() error {
	if !s.Phase.Valid() {
		return fmt.Errorf("unknown session phase %q", s.Phase)
	}
	explored := make(map[Theme]struct{}, len(s.ExploredThemes))
	for _, t := range s.ExploredThemes {
		explored[t] = struct{}{}
	}
	for _, t := range s.UnexploredThemes {
		if _, ok := explored[t]; ok {
			return fmt.Errorf("theme %q is both explored and unexplored", t)
		}
	}
	switch s.Phase {
	case PhaseReflecting, PhaseQuestioning:
		if s.UserInitialSharing == nil {
			return fmt.Errorf("phase %s without initial sharing", s.Phase)
		}
	}
	if s.LastUpdated.Before(s.CreatedAt) {
		return fmt.Errorf("last_updated before created_at")
	}
	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
