package observers

import (
	"context"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/voice-journal/core/pkg/logger"
)

const maxLoggedContent = 240

func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ev := logx.Debug().Str("component", string(info.Component)).Str("name", info.Name)
			if input != nil {
				ev = ev.Int("messages", len(input.Messages)).Str("user", clip(lastUserContent(input.Messages)))
			}
			ev.Msg("model call start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			ev := logx.Debug().Str("component", string(info.Component)).Str("name", info.Name)
			if output != nil && output.Message != nil {
				ev = ev.Str("assistant", clip(output.Message.Content))
			}
			if output != nil && output.TokenUsage != nil {
				ev = ev.Int("total_tokens", output.TokenUsage.TotalTokens)
			}
			ev.Msg("model call end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Warn().Err(err).Str("component", string(info.Component)).Str("name", info.Name).Msg("model call failed")
			return ctx
		},
	}
}

func lastUserContent(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m == nil {
			continue
		}
		if m.Role == schema.User {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLoggedContent {
		return s
	}
	return s[:maxLoggedContent] + "..."
}
