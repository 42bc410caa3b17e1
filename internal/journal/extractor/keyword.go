package extractor

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/voice-journal/core/internal/journal/model"
)

type trigger struct {
	theme   model.Theme
	pattern *regexp.Regexp
}

// themeTriggers follow model.Vocabulary order.
var themeTriggers = []trigger{
	{model.ThemeFocus, regexp.MustCompile(`\b(focus\w*|concentrat\w*|attention|zon(e|ed|ing) out|productiv\w*|deep work)\b`)},
	{model.ThemeEnergy, regexp.MustCompile(`\b(energy|energi[sz]ed|exhausted|drained|fatigue\w*|sleep\w*|slept|burn(ed|t)? ?out)\b`)},
	{model.ThemeMotivation, regexp.MustCompile(`\b(motivat\w*|inspir\w*|procrastinat\w*|lazy|can'?t be bothered|don'?t feel like)\b`)},
	{model.ThemeSelfControl, regexp.MustCompile(`\b(self[- ]?control|disciplin\w*|willpower|tempt\w*|impuls\w*|binge\w*|urges?)\b`)},
	{model.ThemeRoutine, regexp.MustCompile(`\b(routines?|habits?|schedul\w*|morning ritual|bedtime|every day|daily)\b`)},
	{model.ThemeGym, regexp.MustCompile(`\b(gym|work ?outs?|working out|exercis\w*|training|lift(ing|ed)?|weights|cardio|running|yoga)\b`)},
	{model.ThemeWork, regexp.MustCompile(`\b(work(ing|ed)?|job|boss|office|meetings?|deadlines?|colleagues?|co-?workers?|manager)\b`)},
	{model.ThemeProjects, regexp.MustCompile(`\b(projects?|side project|prototype|launch\w*|portfolio|assignments?|thesis)\b`)},
	{model.ThemeEmotions, regexp.MustCompile(`\b(emotion\w*|stress\w*|anxi\w*|sad(ness)?|upset|angry|anger|overwhelm\w*|lonely|cried|crying|heartbroken)\b`)},
	{model.ThemeGuilt, regexp.MustCompile(`\b(guilt\w*|ashamed|shame|regret\w*|should(n'?t)? have|let (myself|\w+) down)\b`)},
	{model.ThemeProgress, regexp.MustCompile(`\b(progress\w*|improv\w*|milestones?|achiev\w*|accomplish\w*|on track|falling behind|better than)\b`)},
	{model.ThemeDistractions, regexp.MustCompile(`\b(distract\w*|phone|social media|scroll\w*|instagram|tiktok|youtube|netflix|notifications?)\b`)},
}

type toneRule struct {
	label   string
	pattern *regexp.Regexp
}

// toneLexicon is checked in order; the first entry that matches wins.
var toneLexicon = []toneRule{
	{"stressed", regexp.MustCompile(`\b(stress\w*|pressure|overwhelm\w*|swamped)\b`)},
	{"anxious", regexp.MustCompile(`\b(anxious|anxiety|worr(y|ied)|nervous|panic\w*)\b`)},
	{"sad", regexp.MustCompile(`\b(sad|down|depressed|lonely|cried|crying|upset|heartbroken)\b`)},
	{"frustrated", regexp.MustCompile(`\b(frustrat\w*|annoyed|angry|irritated|fed up)\b`)},
	{"guilty", regexp.MustCompile(`\b(guilt\w*|ashamed|regret\w*)\b`)},
	{"tired", regexp.MustCompile(`\b(tired|exhausted|drained|sleepy|worn out|long day)\b`)},
	{"motivated", regexp.MustCompile(`\b(motivated|energi[sz]ed|pumped|determined|driven)\b`)},
	{"happy", regexp.MustCompile(`\b(happy|great|excited|glad|proud|joy\w*|amazing)\b`)},
	{"calm", regexp.MustCompile(`\b(calm|relaxed|peaceful|content|fine)\b`)},
}

var (
	strongTokens = map[model.NonTopicalLabel][]string{
		model.LabelGratitude:      {"thanks", "thank", "thx", "cheers", "appreciate", "ty"},
		model.LabelGreeting:       {"hi", "hello", "hey", "morning", "evening", "afternoon", "howdy"},
		model.LabelAcknowledgment: {"yeah", "yes", "yep", "yup", "ok", "okay", "sure", "right", "mhm", "alright", "cool", "gotcha", "got", "huh", "see", "true", "exactly"},
		model.LabelFiller:         {"um", "uh", "umm", "uhh", "hmm", "er", "erm", "like", "so", "well", "anyway"},
	}
	weakTokens = map[string]struct{}{
		"you": {}, "it": {}, "good": {}, "i": {}, "there": {}, "a": {}, "lot": {}, "very": {},
		"much": {}, "oh": {}, "that": {}, "so": {}, "know": {}, "all": {}, "just": {},
	}
	labelPriority = []model.NonTopicalLabel{
		model.LabelGratitude,
		model.LabelGreeting,
		model.LabelAcknowledgment,
		model.LabelFiller,
	}
	tokenLabels = buildTokenLabels()
)

const maxBackchannelWords = 4

func buildTokenLabels() map[string][]model.NonTopicalLabel {
	m := make(map[string][]model.NonTopicalLabel)
	for _, label := range labelPriority {
		for _, tok := range strongTokens[label] {
			m[tok] = append(m[tok], label)
		}
	}
	return m
}

// KeywordExtractor matches utterances against fixed trigger patterns. It never
// fails and performs no I/O.
type KeywordExtractor struct{}

func NewKeywordExtractor() *KeywordExtractor {
	return &KeywordExtractor{}
}

// Extract picks the theme whose trigger matches earliest in the utterance.
// Themes matching at the same position resolve to the earliest vocabulary
// entry, so the result is stable across calls.
func (k *KeywordExtractor) Extract(_ context.Context, utterance string, _ *model.Theme) (model.Signals, error) {
	return Classify(utterance), nil
}

// Classify is the pure keyword classification used by KeywordExtractor.
func Classify(utterance string) model.Signals {
	text := strings.ToLower(strings.TrimSpace(utterance))
	var sig model.Signals
	if text == "" {
		return sig
	}

	if label := backchannelLabel(text); label != model.LabelNone {
		sig.Label = label
		return sig
	}

	sig.Theme = matchTheme(text)
	sig.Tone = matchTone(text)
	return sig
}

func matchTheme(text string) *model.Theme {
	best := -1
	var theme model.Theme
	for _, tr := range themeTriggers {
		loc := tr.pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < best {
			best = loc[0]
			theme = tr.theme
		}
	}
	if best == -1 {
		return nil
	}
	return &theme
}

func matchTone(text string) *string {
	for _, rule := range toneLexicon {
		if rule.pattern.MatchString(text) {
			label := rule.label
			return &label
		}
	}
	return nil
}

// backchannelLabel returns a non-topical label when every word of a short
// utterance is acknowledgement, filler, gratitude or greeting speech.
func backchannelLabel(text string) model.NonTopicalLabel {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	if len(words) == 0 {
		return model.LabelFiller
	}
	if len(words) > maxBackchannelWords {
		return model.LabelNone
	}

	found := make(map[model.NonTopicalLabel]bool)
	for _, w := range words {
		labels, strong := tokenLabels[w]
		if strong {
			for _, l := range labels {
				found[l] = true
			}
			continue
		}
		if _, ok := weakTokens[w]; !ok {
			return model.LabelNone
		}
	}
	for _, l := range labelPriority {
		if found[l] {
			return l
		}
	}
	return model.LabelNone
}

var _ Extractor = (*KeywordExtractor)(nil)
