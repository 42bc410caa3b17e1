package extractor

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/voice-journal/core/internal/journal/model"
	"github.com/voice-journal/core/internal/journal/observers"
	logx "github.com/voice-journal/core/pkg/logger"
)

//go:embed template/classify_prompt.txt
var classifySystemPrompt string

// ModelExtractor asks a chat model to classify the utterance and falls back to
// keyword matching whenever the model fails or returns nothing usable.
type ModelExtractor struct {
	runnable  compose.Runnable[map[string]any, *Classification]
	modelName string
	timeout   time.Duration
	fallback  *KeywordExtractor
}

// NewModelExtractor compiles the template -> chat model -> parser chain.
func NewModelExtractor(ctx context.Context, chatModel einomodel.BaseChatModel, cfg model.ExtractorConfig) (*ModelExtractor, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(classifySystemPrompt),
		schema.UserMessage("{{.utterance}}"),
	)

	chain := compose.NewChain[map[string]any, *Classification]()
	chain.
		AppendChatTemplate(tpl).
		AppendChatModel(chatModel).
		AppendLambda(compose.InvokableLambda(func(ctx context.Context, out *schema.Message) (*Classification, error) {
			if out == nil {
				return nil, fmt.Errorf("classifier returned no message")
			}
			if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
				c := model.ComputeCost(cfg.Model, out.ResponseMeta.Usage)
				logx.Debug().
					Str("model", c.Model).
					Int("prompt_tokens", c.PromptTokens).
					Int("completion_tokens", c.CompletionTokens).
					Float64("total_cost_usd", c.TotalUSD).
					Msg("LLM usage")
			}
			return ParseClassification(out.Content)
		}))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling classifier chain")
		return nil, fmt.Errorf("error compiling classifier chain: %w", err)
	}

	return &ModelExtractor{
		runnable:  runnable,
		modelName: cfg.Model,
		timeout:   cfg.Timeout,
		fallback:  NewKeywordExtractor(),
	}, nil
}

func (m *ModelExtractor) Extract(ctx context.Context, utterance string, anchor *model.Theme) (model.Signals, error) {
	// Backchannel speech never needs a model call.
	if label := backchannelLabel(strings.ToLower(strings.TrimSpace(utterance))); label != model.LabelNone {
		return model.Signals{Label: label}, nil
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	vars := map[string]any{
		"utterance":  utterance,
		"anchor":     "",
		"vocabulary": vocabularyList(),
		"TD":         tupDelim,
		"RD":         recDelim,
		"CD":         endDelim,
	}
	if anchor != nil {
		vars["anchor"] = string(*anchor)
	}

	c, err := m.runnable.Invoke(ctx, vars, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		logx.Warn().Err(err).Str("model", m.modelName).Msg("classifier failed, using keyword extraction")
		return m.fallback.Extract(ctx, utterance, anchor)
	}
	if len(c.ParseErrors) > 0 {
		logx.Debug().Strs("parse_errors", c.ParseErrors).Msg("classifier output had bad records")
	}
	if !c.Usable() {
		return m.fallback.Extract(ctx, utterance, anchor)
	}

	sig := c.Signals()
	// Tone is independent of the theme; keep the lexicon guess when the model gave none.
	if sig.Tone == nil && sig.Label == model.LabelNone {
		sig.Tone = matchTone(strings.ToLower(utterance))
	}
	return sig, nil
}

func vocabularyList() string {
	names := make([]string, len(model.Vocabulary))
	for i, t := range model.Vocabulary {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

var _ Extractor = (*ModelExtractor)(nil)
