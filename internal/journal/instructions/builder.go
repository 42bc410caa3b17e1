// Package instructions renders the per-turn directive text handed to the
// speech layer. Rendering is pure: the same state and prior transcript always
// produce the same text.
package instructions

import (
	"context"
	"embed"
	"fmt"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/voice-journal/core/internal/journal/model"
	"github.com/voice-journal/core/internal/journal/observers"
	"github.com/voice-journal/core/internal/journal/phase"
)

// Markers understood by the speech layer. Text between SpeakOpen and
// SpeakClose is spoken verbatim; Silent on its own line means no audio.
const (
	SpeakOpen  = "[[SPEAK]]"
	SpeakClose = "[[/SPEAK]]"
	Silent     = "[[SILENT]]"
)

// RestLine is spoken in place of a follow-up once every question for the
// session has been asked. It is a statement, so it is never fingerprinted.
const RestLine = "Take your time. We can sit with that, or wrap up whenever you're ready."

//go:embed template/*.txt
var templateFS embed.FS

var renderedPhases = []model.Phase{
	model.PhaseListening,
	model.PhaseMoodConfirmation,
	model.PhaseReflecting,
	model.PhaseQuestioning,
	model.PhaseClosed,
}

var styles = map[model.ReflectionMode]string{
	model.ReflectionNeutral:  "mirror and validate what they said without judging or advising.",
	model.ReflectionCoaching: "be warm but forward looking, and gently point toward one small concrete step.",
	model.ReflectionLearning: "help them put into words what today taught them.",
}

type Builder struct {
	phases      map[model.Phase]prompt.ChatTemplate
	continuity  prompt.ChatTemplate
	fingerprint phase.Fingerprinter
}

type Option func(*Builder)

// WithFingerprinter must match the fingerprinter used by the phase controller
// so the pending question is not listed as forbidden.
func WithFingerprinter(f phase.Fingerprinter) Option {
	return func(b *Builder) { b.fingerprint = f }
}

func NewBuilder(opts ...Option) (*Builder, error) {
	b := &Builder{
		phases:      make(map[model.Phase]prompt.ChatTemplate, len(renderedPhases)),
		fingerprint: phase.NormalizedText,
	}
	for _, opt := range opts {
		opt(b)
	}

	for _, p := range renderedPhases {
		tpl, err := loadTemplate(string(p))
		if err != nil {
			return nil, err
		}
		b.phases[p] = tpl
	}
	tpl, err := loadTemplate("continuity")
	if err != nil {
		return nil, err
	}
	b.continuity = tpl
	return b, nil
}

func MustNewBuilder(opts ...Option) *Builder {
	b, err := NewBuilder(opts...)
	if err != nil {
		panic(err)
	}
	return b
}

func loadTemplate(name string) (prompt.ChatTemplate, error) {
	raw, err := templateFS.ReadFile("template/" + name + ".txt")
	if err != nil {
		return nil, fmt.Errorf("instruction template %s: %w", name, err)
	}
	return prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(string(raw))), nil
}

// Build renders the instructions for state. A non-empty prior transcript is
// embedded as a continuity block ahead of the phase block, except once the
// session is closed.
func (b *Builder) Build(ctx context.Context, state *model.ConversationState, prior string) (string, error) {
	if state == nil {
		return "", fmt.Errorf("instructions: nil state")
	}
	tpl, ok := b.phases[state.Phase]
	if !ok {
		return "", fmt.Errorf("instructions: no template for phase %q", state.Phase)
	}

	ctx = einocb.InitCallbacks(ctx, &einocb.RunInfo{
		Name:      "instructions." + string(state.Phase),
		Type:      "GoTemplate",
		Component: components.ComponentOfPrompt,
	}, observers.NewPromptCallbacks())

	blocks := make([]string, 0, 2)
	if prior = strings.TrimSpace(prior); prior != "" && state.Phase != model.PhaseClosed {
		text, err := render(ctx, b.continuity, map[string]any{"prior": scrub(prior)})
		if err != nil {
			return "", err
		}
		blocks = append(blocks, text)
	}

	text, err := render(ctx, tpl, b.vars(state))
	if err != nil {
		return "", err
	}
	blocks = append(blocks, text)
	return strings.Join(blocks, "\n\n"), nil
}

func render(ctx context.Context, tpl prompt.ChatTemplate, vars map[string]any) (string, error) {
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("instruction render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("instruction render: empty result")
	}
	return strings.TrimSpace(msgs[0].Content), nil
}

// vars picks the fields a phase block may show. The state record itself is
// never handed to a template.
func (b *Builder) vars(s *model.ConversationState) map[string]any {
	style, ok := styles[s.ReflectionMode]
	if !ok {
		style = styles[model.ReflectionNeutral]
	}

	explored := make([]string, len(s.ExploredThemes))
	for i, t := range s.ExploredThemes {
		explored[i] = string(t)
	}

	memories := make([]model.MemorySnippet, 0, len(s.YesterdayContext))
	for _, m := range s.YesterdayContext {
		if text := scrub(strings.TrimSpace(m.Text)); text != "" {
			memories = append(memories, model.MemorySnippet{Date: m.Date, Text: text, Score: m.Score})
		}
	}

	pendingFP := ""
	if s.PendingQuestion != "" {
		pendingFP = b.fingerprint.Fingerprint(s.PendingQuestion)
	}
	forbidden := make([]string, 0, len(s.AskedQuestions))
	for _, fp := range s.AskedQuestions {
		if fp != pendingFP {
			forbidden = append(forbidden, scrub(fp))
		}
	}

	return map[string]any{
		"SPEAK":     SpeakOpen,
		"END":       SpeakClose,
		"SILENT":    Silent,
		"anchor":    themeText(s.Anchor),
		"focus":     focusText(s),
		"mood":      scrub(deref(s.Mood)),
		"tone":      scrub(deref(s.Tone)),
		"sharing":   scrub(deref(s.UserInitialSharing)),
		"explored":  strings.Join(explored, ", "),
		"memories":  memories,
		"question":  scrub(s.PendingQuestion),
		"rest":      RestLine,
		"forbidden": forbidden,
		"style":     style,
	}
}

func focusText(s *model.ConversationState) string {
	if s.FocusTheme != "" {
		return string(s.FocusTheme)
	}
	if s.Anchor != nil {
		return string(*s.Anchor)
	}
	return "this"
}

func themeText(t *model.Theme) string {
	if t == nil {
		return ""
	}
	return string(*t)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// scrub keeps caller supplied text from forging speech markers.
var markerReplacer = strings.NewReplacer("[", "(", "]", ")")

func scrub(s string) string {
	return markerReplacer.Replace(s)
}
