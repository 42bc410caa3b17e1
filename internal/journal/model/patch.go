package model

import (
	"slices"
	"time"
)

// StatePatch is a partial update. Nil pointers and nil slices leave the
// persisted value untouched; a non-nil empty slice clears it.
type StatePatch struct {
	Phase              *Phase
	UserInitialSharing *string
	SharingDraft       *string
	Mood               *string
	Anchor             *Theme
	ClearAnchor        bool

	ExploredThemes   []Theme
	UnexploredThemes []Theme
	AskedQuestions   []string

	Tone             *string
	YesterdayContext []MemorySnippet

	ConversationMode *ConversationMode
	ReflectionMode   *ReflectionMode
	LastAIAction     *string

	FocusTheme      *Theme
	PendingQuestion *string
	TurnCount       *int
}

// IsEmpty reports whether the patch would only refresh last_updated.
func (p StatePatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Fields returns the patch as flat field name to value pairs, using the same
// names as the JSON form of ConversationState.
func (p StatePatch) Fields() map[string]any {
	f := make(map[string]any)
	if p.Phase != nil {
		f["session_phase"] = *p.Phase
	}
	if p.UserInitialSharing != nil {
		f["user_initial_sharing"] = *p.UserInitialSharing
	}
	if p.SharingDraft != nil {
		f["sharing_draft"] = *p.SharingDraft
	}
	if p.Mood != nil {
		f["mood"] = *p.Mood
	}
	if p.ClearAnchor {
		f["anchor"] = nil
	} else if p.Anchor != nil {
		f["anchor"] = *p.Anchor
	}
	if p.ExploredThemes != nil {
		f["explored_themes"] = p.ExploredThemes
	}
	if p.UnexploredThemes != nil {
		f["unexplored_themes"] = p.UnexploredThemes
	}
	if p.AskedQuestions != nil {
		f["asked_questions"] = p.AskedQuestions
	}
	if p.Tone != nil {
		f["tone"] = *p.Tone
	}
	if p.YesterdayContext != nil {
		f["yesterday_context"] = p.YesterdayContext
	}
	if p.ConversationMode != nil {
		f["conversation_mode"] = *p.ConversationMode
	}
	if p.ReflectionMode != nil {
		f["reflection_mode"] = *p.ReflectionMode
	}
	if p.LastAIAction != nil {
		f["last_ai_action"] = *p.LastAIAction
	}
	if p.FocusTheme != nil {
		f["focus_theme"] = *p.FocusTheme
	}
	if p.PendingQuestion != nil {
		f["pending_question"] = *p.PendingQuestion
	}
	if p.TurnCount != nil {
		f["turn_count"] = *p.TurnCount
	}
	return f
}

// Rebase adjusts p to the stored record s. Explored themes and asked
// questions become unions with what s holds, and unexplored themes are what
// s still has unexplored. A patch computed from an older copy of s therefore
// never puts an explored theme back or drops an asked question.
func (p StatePatch) Rebase(s *ConversationState) StatePatch {
	if p.ExploredThemes != nil || p.UnexploredThemes != nil {
		explored := append(slices.Clone(s.ExploredThemes), p.ExploredThemes...)
		p.ExploredThemes, p.UnexploredThemes = ReconcileThemes(explored, s.UnexploredThemes)
	}
	if p.AskedQuestions != nil {
		p.AskedQuestions = union(s.AskedQuestions, p.AskedQuestions)
	}
	return p
}

func union(stored, incoming []string) []string {
	out := make([]string, 0, len(stored)+len(incoming))
	for _, v := range slices.Concat(stored, incoming) {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Apply merges p into s in place and refreshes LastUpdated. LastUpdated never
// moves backwards.
func (s *ConversationState) Apply(p StatePatch, now time.Time) {
	if p.Phase != nil {
		s.Phase = *p.Phase
	}
	if p.UserInitialSharing != nil {
		s.UserInitialSharing = Ptr(*p.UserInitialSharing)
	}
	if p.SharingDraft != nil {
		s.SharingDraft = *p.SharingDraft
	}
	if p.Mood != nil {
		s.Mood = Ptr(*p.Mood)
	}
	if p.ClearAnchor {
		s.Anchor = nil
	} else if p.Anchor != nil {
		s.Anchor = Ptr(*p.Anchor)
	}
	if p.ExploredThemes != nil {
		s.ExploredThemes = slices.Clone(p.ExploredThemes)
	}
	if p.UnexploredThemes != nil {
		s.UnexploredThemes = slices.Clone(p.UnexploredThemes)
	}
	if p.AskedQuestions != nil {
		s.AskedQuestions = slices.Clone(p.AskedQuestions)
	}
	if p.Tone != nil {
		s.Tone = Ptr(*p.Tone)
	}
	if p.YesterdayContext != nil {
		s.YesterdayContext = slices.Clone(p.YesterdayContext)
	}
	if p.ConversationMode != nil {
		s.ConversationMode = *p.ConversationMode
	}
	if p.ReflectionMode != nil {
		s.ReflectionMode = *p.ReflectionMode
	}
	if p.LastAIAction != nil {
		s.LastAIAction = Ptr(*p.LastAIAction)
	}
	if p.FocusTheme != nil {
		s.FocusTheme = *p.FocusTheme
	}
	if p.PendingQuestion != nil {
		s.PendingQuestion = *p.PendingQuestion
	}
	if p.TurnCount != nil {
		s.TurnCount = *p.TurnCount
	}
	if now.After(s.LastUpdated) {
		s.LastUpdated = now
	}
}
