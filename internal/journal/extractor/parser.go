package extractor

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	errx "github.com/voice-journal/core/internal/core/error"
	"github.com/voice-journal/core/internal/journal/model"
	logx "github.com/voice-journal/core/pkg/logger"
)

const (
	recDelim = "##"
	tupDelim = "<||>"
	endDelim = "<|COMPLETE|>"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 16 * 1024
	maxRecords    = 32
	maxTupleLen   = 1024
	maxLabelLen   = 48
	maxErrSnippet = 120
)

// minConfidence drops low-confidence model guesses.
const minConfidence = 0.5

// Classification is the parsed output of the classifier model.
type Classification struct {
	Theme           *model.Theme
	ThemeConfidence float64
	Tone            *string
	ToneConfidence  float64
	Label           model.NonTopicalLabel
	ParseErrors     []string
	Truncated       bool
}

// Signals converts the classification into extractor signals.
func (c *Classification) Signals() model.Signals {
	if c.Label != model.LabelNone {
		return model.Signals{Label: c.Label}
	}
	return model.Signals{Theme: c.Theme, Tone: c.Tone}
}

// Usable reports whether the model produced at least one accepted record.
func (c *Classification) Usable() bool {
	return c.Theme != nil || c.Tone != nil || c.Label != model.LabelNone
}

type rawTuple struct {
	Type  string
	Parts []string
}

func parseRawTuple(s string) (*rawTuple, error) {
	if s == "" {
		return nil, fmt.Errorf("empty tuple")
	}
	if len(s) > maxTupleLen {
		return nil, fmt.Errorf("tuple too large")
	}

	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, fmt.Errorf("invalid tuple parens")
	}
	parts := strings.Split(s[1:len(s)-1], tupDelim)
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid tuple parts")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return &rawTuple{Type: parts[0], Parts: parts}, nil
}

func parseConfidence(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("confidence parse: %w", err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
		return 0, fmt.Errorf("confidence out of range")
	}
	return v, nil
}

// normalizeLabel lowercases a model label and rejects anything that is not a
// short slug.
func normalizeLabel(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > maxLabelLen || !utf8.ValidString(s) {
		return "", false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && r != '-' && r != '_' {
			return "", false
		}
	}
	return s, true
}

// ParseClassification reads `(theme<||>name<||>conf)##(tone<||>label<||>conf)<|COMPLETE|>`
// records. A bad record is skipped and noted in ParseErrors.
func ParseClassification(content string) (c *Classification, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "classification_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("classification parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			c = nil
		}
	}()

	c = &Classification{}
	if len(content) > maxContentLen {
		content = content[:maxContentLen]
		c.Truncated = true
	}
	if idx := strings.Index(content, endDelim); idx >= 0 {
		content = content[:idx]
	}

	processed := 0
	for _, rec := range strings.Split(content, recDelim) {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		if processed >= maxRecords {
			c.ParseErrors = append(c.ParseErrors, "records capped")
			break
		}
		processed++

		rt, rerr := parseRawTuple(rec)
		if rerr != nil {
			c.ParseErrors = append(c.ParseErrors, "bad_record: "+safeSnippet(rec))
			continue
		}
		if len(rt.Parts) < 3 {
			c.ParseErrors = append(c.ParseErrors, rt.Type+": insufficient parts")
			continue
		}
		name, ok := normalizeLabel(rt.Parts[1])
		if !ok {
			c.ParseErrors = append(c.ParseErrors, rt.Type+": invalid name")
			continue
		}
		conf, cerr := parseConfidence(rt.Parts[2])
		if cerr != nil {
			c.ParseErrors = append(c.ParseErrors, rt.Type+": invalid confidence")
			continue
		}
		if conf < minConfidence {
			continue
		}

		switch rt.Type {
		case "theme":
			if name == "none" {
				continue
			}
			if c.Theme == nil || conf > c.ThemeConfidence {
				theme := model.Theme(name)
				c.Theme = &theme
				c.ThemeConfidence = conf
			}
		case "tone":
			if c.Tone == nil || conf > c.ToneConfidence {
				tone := name
				c.Tone = &tone
				c.ToneConfidence = conf
			}
		case "label":
			switch l := model.NonTopicalLabel(name); l {
			case model.LabelAcknowledgment, model.LabelFiller, model.LabelGratitude, model.LabelGreeting:
				c.Label = l
			default:
				c.ParseErrors = append(c.ParseErrors, "label: unknown value")
			}
		default:
			c.ParseErrors = append(c.ParseErrors, "unknown tuple type")
		}
	}

	return c, nil
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
