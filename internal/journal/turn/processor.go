// Package turn runs one journaling turn end to end: validate, load, extract,
// advance the phase, persist, render.
package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	errx "github.com/voice-journal/core/internal/core/error"
	"github.com/voice-journal/core/internal/journal/cache"
	"github.com/voice-journal/core/internal/journal/extractor"
	"github.com/voice-journal/core/internal/journal/instructions"
	"github.com/voice-journal/core/internal/journal/memory"
	"github.com/voice-journal/core/internal/journal/model"
	"github.com/voice-journal/core/internal/journal/phase"
	logx "github.com/voice-journal/core/pkg/logger"
	"github.com/voice-journal/core/pkg/metrics"
)

// Config holds the collaborators of a Processor. States, Extractor and
// Builder are required; the rest fall back to no-op behaviour.
type Config struct {
	States      model.StateRepository
	Transcripts model.TranscriptRepository
	Extractor   extractor.Extractor
	Controller  *phase.Controller
	Builder     *instructions.Builder
	Memory      memory.Searcher
	TopicCache  *cache.TopicCache
	Metrics     *metrics.Collector

	Conversation model.ConversationConfig
	MemoryLimit  int
}

type Processor struct {
	states      model.StateRepository
	transcripts *TranscriptManager
	extractor   extractor.Extractor
	controller  *phase.Controller
	builder     *instructions.Builder
	memory      memory.Searcher
	topicCache  *cache.TopicCache
	metrics     *metrics.Collector
	validate    *validator.Validate
	memoryLimit int
}

func NewProcessor(cfg Config) (*Processor, error) {
	switch {
	case cfg.States == nil:
		return nil, fmt.Errorf("turn processor: state repository is required")
	case cfg.Extractor == nil:
		return nil, fmt.Errorf("turn processor: extractor is required")
	case cfg.Builder == nil:
		return nil, fmt.Errorf("turn processor: instruction builder is required")
	}

	p := &Processor{
		states:      cfg.States,
		extractor:   cfg.Extractor,
		controller:  cfg.Controller,
		builder:     cfg.Builder,
		memory:      cfg.Memory,
		topicCache:  cfg.TopicCache,
		metrics:     cfg.Metrics,
		validate:    validator.New(),
		memoryLimit: cfg.MemoryLimit,
	}
	if p.controller == nil {
		p.controller = phase.NewController()
	}
	if p.memory == nil {
		p.memory = memory.NopSearcher{}
	}
	if cfg.Transcripts != nil {
		p.transcripts = NewTranscriptManager(cfg.Transcripts, cfg.Conversation)
	}
	return p, nil
}

// Start creates the session record if it does not exist yet.
func (p *Processor) Start(ctx context.Context, key model.SessionKey) (*model.ConversationState, error) {
	if err := p.validate.Struct(key); err != nil {
		return nil, errx.Validation(err)
	}
	return p.states.Create(ctx, key)
}

// State returns the persisted record of a session.
func (p *Processor) State(ctx context.Context, key model.SessionKey) (*model.ConversationState, error) {
	if err := p.validate.Struct(key); err != nil {
		return nil, errx.Validation(err)
	}
	return p.states.Load(ctx, key)
}

// ResetSession drops the session record, its transcript and the user's cached
// memory lookups.
func (p *Processor) ResetSession(ctx context.Context, key model.SessionKey) error {
	if err := p.validate.Struct(key); err != nil {
		return errx.Validation(err)
	}
	if err := p.states.Delete(ctx, key); err != nil {
		return err
	}
	if p.transcripts != nil {
		if err := p.transcripts.Clear(ctx, key); err != nil {
			return err
		}
	}
	if p.topicCache != nil {
		p.topicCache.Invalidate(key.UserID)
	}
	logx.Info().Str("session", key.String()).Msg("session reset")
	return nil
}

// ProcessTurn runs one turn. Caller mistakes come back as validation,
// transition or precondition errors; an unavailable optional context source
// only marks the result as degraded.
func (p *Processor) ProcessTurn(ctx context.Context, in model.TurnInput) (result *model.TurnResult, err error) {
	start := time.Now()
	defer func() {
		p.observe(start, result, err)
	}()

	if err := p.validate.Struct(in); err != nil {
		return nil, errx.Validation(err)
	}
	key := in.Key()

	state, err := p.load(ctx, key)
	if err != nil {
		return nil, err
	}

	degraded := false
	sig, err := p.extractor.Extract(ctx, phase.SharingText(state, in), state.Anchor)
	if err != nil {
		logx.Warn().Err(err).Str("session", key.String()).Msg("extraction failed, continuing without signals")
		sig = model.Signals{}
		degraded = true
	}

	decision, err := p.controller.Advance(state, sig, in)
	if err != nil {
		logx.Debug().Err(err).Str("session", key.String()).Str("phase", state.Phase.String()).Msg("turn rejected")
		return nil, err
	}

	if decision.MemoryTopic != nil {
		snippets, err := p.memory.Search(ctx, key.UserID, string(*decision.MemoryTopic), p.memoryLimit)
		if err != nil {
			logx.Warn().Err(err).Str("session", key.String()).Str("topic", decision.MemoryTopic.String()).Msg("memory lookup failed, continuing without it")
			snippets = []model.MemorySnippet{}
			degraded = true
		}
		if snippets == nil {
			snippets = []model.MemorySnippet{}
		}
		decision.Patch.YesterdayContext = snippets
	}

	updated, err := p.states.Update(ctx, key, decision.Patch)
	if err != nil {
		return nil, err
	}

	prior, ok := p.prior(ctx, in)
	if !ok {
		degraded = true
	}
	text, err := p.builder.Build(ctx, updated, prior)
	if err != nil {
		return nil, err
	}

	p.record(ctx, key, in.Utterance, text)

	if decision.From != decision.Next && p.metrics != nil {
		p.metrics.Transitions.WithLabelValues(string(decision.From), string(decision.Next)).Inc()
	}
	logx.Info().
		Str("session", key.String()).
		Str("from", decision.From.String()).
		Str("to", decision.Next.String()).
		Str("action", decision.Action).
		Int("turn", updated.TurnCount).
		Bool("degraded", degraded).
		Msg("turn processed")

	return &model.TurnResult{State: updated, Instructions: text, Degraded: degraded}, nil
}

func (p *Processor) load(ctx context.Context, key model.SessionKey) (*model.ConversationState, error) {
	state, err := p.states.Load(ctx, key)
	if errors.Is(err, errx.ErrSessionNotFound) {
		return p.states.Create(ctx, key)
	}
	return state, err
}

// prior resolves the continuity transcript. The second result is false when
// a stored transcript was requested but could not be read.
func (p *Processor) prior(ctx context.Context, in model.TurnInput) (string, bool) {
	if in.PriorConversation != "" {
		return in.PriorConversation, true
	}
	if in.PriorSessionID == "" || p.transcripts == nil {
		return "", true
	}
	priorKey := model.SessionKey{UserID: in.UserID, Date: in.PriorDate, SessionID: in.PriorSessionID}
	text, err := p.transcripts.Render(ctx, priorKey)
	if err != nil {
		logx.Warn().Err(err).Str("prior_session", priorKey.String()).Msg("prior transcript unavailable")
		return "", false
	}
	return text, true
}

// record appends the turn to the transcript. The turn is already persisted,
// so a failure here is logged and not returned.
func (p *Processor) record(ctx context.Context, key model.SessionKey, utterance, text string) {
	if p.transcripts == nil {
		return
	}
	var spoken []string
	if d, err := instructions.ParseDirective(text); err == nil {
		spoken = d.Speak
	} else {
		logx.Warn().Err(err).Str("session", key.String()).Msg("rendered instructions carry no usable directive")
	}
	if err := p.transcripts.RecordTurn(ctx, key, utterance, spoken); err != nil {
		logx.Warn().Err(err).Str("session", key.String()).Msg("failed to record transcript")
	}
}

func (p *Processor) observe(start time.Time, result *model.TurnResult, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.TurnDuration.Observe(time.Since(start).Seconds())
	p.metrics.Turns.WithLabelValues(outcome(result, err)).Inc()
}

func outcome(result *model.TurnResult, err error) string {
	switch {
	case err == nil && result != nil && result.Degraded:
		return "degraded"
	case err == nil:
		return "ok"
	case errors.Is(err, errx.ErrValidation):
		return "validation"
	case errors.Is(err, errx.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, errx.ErrMissingPrecondition):
		return "missing_precondition"
	case errors.Is(err, errx.ErrSessionNotFound):
		return "not_found"
	default:
		return "error"
	}
}
