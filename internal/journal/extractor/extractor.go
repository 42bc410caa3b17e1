// Package extractor detects the theme and emotional tone of a user utterance.
package extractor

import (
	"context"

	"github.com/voice-journal/core/internal/journal/model"
)

// Extractor classifies one utterance. The anchor is the session's current
// anchor theme and may be nil.
type Extractor interface {
	Extract(ctx context.Context, utterance string, anchor *model.Theme) (model.Signals, error)
}
