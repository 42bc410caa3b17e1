// Package phase implements the journaling session state machine:
//
//	listening -> mood_confirmation -> reflecting <-> questioning -> closed
//
// The controller is pure. It reads a state snapshot and the extracted signals
// and returns the patch to persist; it never touches the store.
package phase

import (
	"slices"
	"strings"

	errx "github.com/voice-journal/core/internal/core/error"
	"github.com/voice-journal/core/internal/journal/model"
)

// Actions recorded in last_ai_action.
const (
	ActionListen      = "listen"
	ActionConfirmMood = "confirm_mood"
	ActionReflect     = "reflect"
	ActionFollowUp    = "ask_followup"
	ActionClose       = "close"
)

// Decision is the outcome of one controller run.
type Decision struct {
	Patch model.StatePatch
	From  model.Phase
	Next  model.Phase
	// MemoryTopic is set when the turn warrants a long-term memory lookup.
	MemoryTopic *model.Theme
	Action      string
}

type Controller struct {
	fingerprint Fingerprinter
	questions   QuestionBank
}

type Option func(*Controller)

func WithFingerprinter(f Fingerprinter) Option {
	return func(c *Controller) { c.fingerprint = f }
}

func WithQuestionBank(b QuestionBank) Option {
	return func(c *Controller) { c.questions = b }
}

func NewController(opts ...Option) *Controller {
	c := &Controller{
		fingerprint: NormalizedText,
		questions:   DefaultBank,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SharingText is the text the extractor should classify for this turn. On the
// turn that finishes the opening share it is the whole share accumulated so
// far; otherwise it is the utterance alone.
func SharingText(state *model.ConversationState, in model.TurnInput) string {
	if state.Phase != model.PhaseListening || !in.IsFinishedSharing {
		return in.Utterance
	}
	return joinSharing(state.SharingDraft, in.Utterance)
}

// turn carries the working copy of the mutable sets through one run.
type turn struct {
	state    *model.ConversationState
	in       model.TurnInput
	sig      model.Signals
	patch    model.StatePatch
	explored []model.Theme
	open     []model.Theme
	asked    []string
	focus    model.Theme
}

// Advance computes the next phase and the patch for one turn.
func (c *Controller) Advance(state *model.ConversationState, sig model.Signals, in model.TurnInput) (Decision, error) {
	if state.Phase == model.PhaseClosed {
		return Decision{}, errx.InvalidTransition("session " + state.Key().String() + " is closed")
	}

	t := &turn{
		state:    state,
		in:       in,
		sig:      sig,
		explored: slices.Clone(state.ExploredThemes),
		open:     slices.Clone(state.UnexploredThemes),
		asked:    slices.Clone(state.AskedQuestions),
		focus:    state.FocusTheme,
	}
	if t.asked == nil {
		t.asked = []string{}
	}
	if t.explored == nil {
		t.explored = []model.Theme{}
	}

	t.patch.TurnCount = model.Ptr(state.TurnCount + 1)
	if sig.Tone != nil {
		t.patch.Tone = model.Ptr(*sig.Tone)
	}
	if in.ReflectionMode != nil {
		t.patch.ReflectionMode = model.Ptr(model.ReflectionMode(*in.ReflectionMode))
	}
	if q := strings.TrimSpace(in.AskedQuestion); q != "" {
		c.recordAsked(t, q)
	}

	d := Decision{From: state.Phase}
	var err error
	switch state.Phase {
	case model.PhaseListening:
		err = c.listening(t, &d)
	case model.PhaseMoodConfirmation:
		err = c.moodConfirmation(t, &d)
	case model.PhaseReflecting, model.PhaseQuestioning:
		c.reflecting(t, &d)
	default:
		return Decision{}, errx.InvalidTransition("unknown phase " + string(state.Phase))
	}
	if err != nil {
		return Decision{}, err
	}

	explored, open := model.ReconcileThemes(t.explored, t.open)
	t.patch.ExploredThemes = explored
	t.patch.UnexploredThemes = open
	t.patch.AskedQuestions = t.asked
	t.patch.Phase = model.Ptr(d.Next)
	t.patch.LastAIAction = model.Ptr(d.Action)
	t.patch.FocusTheme = model.Ptr(t.focus)
	d.Patch = t.patch
	return d, nil
}

func (c *Controller) listening(t *turn, d *Decision) error {
	if t.in.Completed {
		return errx.MissingPrecondition("initial sharing is not finished")
	}

	// Long-term memory is only fetched on demand, never while the user is still sharing.
	t.patch.YesterdayContext = []model.MemorySnippet{}
	t.patch.PendingQuestion = model.Ptr("")

	if !t.in.IsFinishedSharing {
		if !t.sig.IsBackchannel() {
			t.patch.SharingDraft = model.Ptr(joinSharing(t.state.SharingDraft, t.in.Utterance))
		}
		d.Next = model.PhaseListening
		d.Action = ActionListen
		t.patch.ConversationMode = model.Ptr(model.ModeListener)
		return nil
	}

	t.patch.UserInitialSharing = model.Ptr(joinSharing(t.state.SharingDraft, t.in.Utterance))
	t.patch.SharingDraft = model.Ptr("")
	if t.sig.Theme != nil {
		c.touch(t, *t.sig.Theme)
		t.focus = *t.sig.Theme
	}
	if t.in.Mood != nil {
		t.patch.Mood = model.Ptr(*t.in.Mood)
	}
	t.patch.ConversationMode = model.Ptr(model.ModeExploring)

	if t.in.Mood != nil || t.state.Mood != nil || t.in.SkipMood {
		d.Next = model.PhaseReflecting
		d.Action = ActionReflect
		c.pickQuestion(t)
		return nil
	}
	d.Next = model.PhaseMoodConfirmation
	d.Action = ActionConfirmMood
	return nil
}

func (c *Controller) moodConfirmation(t *turn, d *Decision) error {
	hasMood := t.in.Mood != nil || t.state.Mood != nil
	if t.in.Mood != nil {
		t.patch.Mood = model.Ptr(*t.in.Mood)
	}

	switch {
	case t.in.Completed:
		if !hasMood && !t.in.SkipMood {
			return errx.MissingPrecondition("mood is required before closing")
		}
		c.close(t, d)
	case hasMood || t.in.SkipMood:
		d.Next = model.PhaseReflecting
		d.Action = ActionReflect
		t.patch.ConversationMode = model.Ptr(model.ModeExploring)
		c.pickQuestion(t)
	case t.in.IsFinishedSharing:
		return errx.MissingPrecondition("mood is required before reflecting")
	default:
		d.Next = model.PhaseMoodConfirmation
		d.Action = ActionConfirmMood
		t.patch.PendingQuestion = model.Ptr("")
	}
	return nil
}

func (c *Controller) reflecting(t *turn, d *Decision) {
	if t.in.Completed {
		c.close(t, d)
		return
	}

	if t.sig.Theme != nil && !model.ContainsTheme(t.explored, *t.sig.Theme) {
		theme := *t.sig.Theme
		c.touch(t, theme)
		t.focus = theme
		d.Next = model.PhaseQuestioning
		d.Action = ActionFollowUp
		d.MemoryTopic = model.Ptr(theme)
		t.patch.ConversationMode = model.Ptr(model.ModeDeepening)
	} else {
		d.Next = model.PhaseReflecting
		d.Action = ActionReflect
		t.patch.ConversationMode = model.Ptr(model.ModeExploring)
	}
	c.pickQuestion(t)
}

func (c *Controller) close(t *turn, d *Decision) {
	d.Next = model.PhaseClosed
	d.Action = ActionClose
	t.patch.ConversationMode = model.Ptr(model.ModeClosing)
	t.patch.PendingQuestion = model.Ptr("")
}

// touch marks theme as explored and anchors the session on it if nothing else
// anchors it yet.
func (c *Controller) touch(t *turn, theme model.Theme) {
	if t.state.Anchor == nil && t.patch.Anchor == nil {
		t.patch.Anchor = model.Ptr(theme)
	}
	if !model.ContainsTheme(t.explored, theme) {
		t.explored = append(t.explored, theme)
	}
}

// pickQuestion stores the first question for the current focus whose
// fingerprint has not been asked in this session.
func (c *Controller) pickQuestion(t *turn) {
	focus := t.focus
	if focus == "" && t.state.Anchor != nil {
		focus = *t.state.Anchor
	}
	if focus == "" && t.patch.Anchor != nil {
		focus = *t.patch.Anchor
	}
	t.focus = focus

	for _, q := range c.questions.Questions(focus) {
		fp := c.fingerprint.Fingerprint(q)
		if fp == "" || containsFingerprint(t.asked, fp) {
			continue
		}
		t.asked = append(t.asked, fp)
		t.patch.PendingQuestion = model.Ptr(q)
		return
	}
	t.patch.PendingQuestion = model.Ptr("")
}

func (c *Controller) recordAsked(t *turn, question string) {
	fp := c.fingerprint.Fingerprint(question)
	if fp != "" && !containsFingerprint(t.asked, fp) {
		t.asked = append(t.asked, fp)
	}
}

// AlreadyAsked reports whether question matches a fingerprint in state.
func (c *Controller) AlreadyAsked(state *model.ConversationState, question string) bool {
	return containsFingerprint(state.AskedQuestions, c.fingerprint.Fingerprint(question))
}

func joinSharing(draft, utterance string) string {
	draft = strings.TrimSpace(draft)
	utterance = strings.TrimSpace(utterance)
	switch {
	case draft == "":
		return utterance
	case utterance == "":
		return draft
	default:
		return draft + " " + utterance
	}
}
