package model

// Theme is a journaling topic. Values outside Vocabulary are allowed when a
// classifier detects a new topic, but every built-in theme is listed here.
type Theme string

const (
	ThemeFocus        Theme = "focus"
	ThemeEnergy       Theme = "energy"
	ThemeMotivation   Theme = "motivation"
	ThemeSelfControl  Theme = "self-control"
	ThemeRoutine      Theme = "routine"
	ThemeGym          Theme = "gym"
	ThemeWork         Theme = "work"
	ThemeProjects     Theme = "projects"
	ThemeEmotions     Theme = "emotions"
	ThemeGuilt        Theme = "guilt"
	ThemeProgress     Theme = "progress"
	ThemeDistractions Theme = "distractions"
)

// Vocabulary is the fixed theme list. Its order is the extractor tie-break order.
var Vocabulary = []Theme{
	ThemeFocus,
	ThemeEnergy,
	ThemeMotivation,
	ThemeSelfControl,
	ThemeRoutine,
	ThemeGym,
	ThemeWork,
	ThemeProjects,
	ThemeEmotions,
	ThemeGuilt,
	ThemeProgress,
	ThemeDistractions,
}

func (t Theme) String() string {
	return string(t)
}

// InVocabulary reports whether t is one of the built-in themes.
func (t Theme) InVocabulary() bool {
	for _, v := range Vocabulary {
		if v == t {
			return true
		}
	}
	return false
}

// NonTopicalLabel classifies backchannel speech that must never become a theme.
type NonTopicalLabel string

const (
	LabelNone           NonTopicalLabel = ""
	LabelAcknowledgment NonTopicalLabel = "acknowledgment"
	LabelFiller         NonTopicalLabel = "filler"
	LabelGratitude      NonTopicalLabel = "gratitude"
	LabelGreeting       NonTopicalLabel = "greeting"
)

// Signals is what the extractor found in a single utterance.
type Signals struct {
	Theme *Theme
	Label NonTopicalLabel
	Tone  *string
}

// IsBackchannel reports whether the utterance was acknowledgement or filler speech.
func (s Signals) IsBackchannel() bool {
	return s.Label != LabelNone
}

// ReconcileThemes returns explored (deduplicated, order kept) and unexplored
// with every explored theme removed, so the two never intersect.
func ReconcileThemes(explored, unexplored []Theme) ([]Theme, []Theme) {
	seen := make(map[Theme]struct{}, len(explored))
	outExplored := make([]Theme, 0, len(explored))
	for _, t := range explored {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		outExplored = append(outExplored, t)
	}

	outUnexplored := make([]Theme, 0, len(unexplored))
	dup := make(map[Theme]struct{}, len(unexplored))
	for _, t := range unexplored {
		if _, ok := seen[t]; ok {
			continue
		}
		if _, ok := dup[t]; ok {
			continue
		}
		dup[t] = struct{}{}
		outUnexplored = append(outUnexplored, t)
	}
	return outExplored, outUnexplored
}

// ContainsTheme reports whether list holds t.
func ContainsTheme(list []Theme, t Theme) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}
