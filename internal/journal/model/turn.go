package model

// TurnInput is one user turn as submitted by the caller.
type TurnInput struct {
	UserID            string  `json:"user_id" validate:"required,max=128"`
	SessionID         string  `json:"session_id" validate:"required,max=128"`
	Date              string  `json:"date" validate:"required,datetime=2006-01-02"`
	Utterance         string  `json:"utterance" validate:"required,max=10000"`
	IsFinishedSharing bool    `json:"is_finished_sharing"`
	Completed         bool    `json:"completed"`
	SkipMood          bool    `json:"skip_mood"`
	Mood              *string `json:"mood,omitempty" validate:"omitempty,min=1,max=64"`
	ReflectionMode    *string `json:"reflection_mode,omitempty" validate:"omitempty,oneof=neutral coaching learning"`
	// AskedQuestion is the follow-up the speech layer actually asked last turn, if any.
	AskedQuestion string `json:"asked_question,omitempty" validate:"max=1000"`
	// PriorConversation is an already rendered transcript of an earlier session.
	PriorConversation string `json:"prior_conversation,omitempty"`
	// PriorSessionID names an earlier session of the same user whose stored
	// transcript is used when PriorConversation is empty.
	PriorSessionID string `json:"prior_session_id,omitempty" validate:"max=128"`
	PriorDate      string `json:"prior_date,omitempty" validate:"required_with=PriorSessionID,omitempty,datetime=2006-01-02"`
}

// Key returns the session key addressed by the turn.
func (in TurnInput) Key() SessionKey {
	return SessionKey{UserID: in.UserID, Date: in.Date, SessionID: in.SessionID}
}

// TurnResult is the persisted state after the turn plus the rendered instructions.
type TurnResult struct {
	State        *ConversationState `json:"state"`
	Instructions string             `json:"instructions"`
	// Degraded is set when an optional context source failed during the turn.
	Degraded bool `json:"degraded,omitempty"`
}
