package phase

import (
	"fmt"

	"github.com/voice-journal/core/internal/journal/model"
)

// QuestionBank supplies follow-up questions in the order they should be tried.
type QuestionBank interface {
	Questions(focus model.Theme) []string
}

// StaticBank holds a fixed question list per theme plus generic fallbacks.
type StaticBank struct {
	byTheme map[model.Theme][]string
	themed  []string
	generic []string
}

// DefaultBank is the built-in follow-up question set.
var DefaultBank = &StaticBank{
	byTheme: map[model.Theme][]string{
		model.ThemeFocus: {
			"When was your focus strongest today?",
			"What pulled your attention away the most?",
		},
		model.ThemeEnergy: {
			"When did your energy dip today?",
			"What gave you a bit of energy back?",
		},
		model.ThemeMotivation: {
			"What made it hard to get started today?",
			"What would make tomorrow feel worth showing up for?",
		},
		model.ThemeSelfControl: {
			"What was happening right before you gave in?",
			"What helped the times you held back?",
		},
		model.ThemeRoutine: {
			"Which part of your routine held up today?",
			"What knocked your routine off track?",
		},
		model.ThemeGym: {
			"How did training feel in your body today?",
			"What got in the way of the gym?",
		},
		model.ThemeWork: {
			"What part of work is staying with you tonight?",
			"What would have made work feel lighter today?",
		},
		model.ThemeProjects: {
			"What part of the project feels most stuck?",
			"What is one small next step on the project?",
		},
		model.ThemeEmotions: {
			"Where did you notice that feeling in your day?",
			"What do you need right now to feel a little steadier?",
		},
		model.ThemeGuilt: {
			"What would you say to a friend who felt this way?",
			"Is there something you want to make right tomorrow?",
		},
		model.ThemeProgress: {
			"What moved forward today, even a little?",
			"How would you know tomorrow went better?",
		},
		model.ThemeDistractions: {
			"What were you avoiding when the distraction showed up?",
			"What could make the distraction harder to reach tomorrow?",
		},
	},
	themed: []string{
		"What stood out to you about %s today?",
		"How did %s shape the rest of your day?",
		"What else comes up for you around %s?",
	},
	generic: []string{
		"What felt most important about today?",
		"What would you like to carry into tomorrow?",
		"Is there anything you want to let go of before tonight?",
		"Is there anything else you want to add before we wrap up?",
	},
}

func (b *StaticBank) Questions(focus model.Theme) []string {
	out := make([]string, 0, len(b.byTheme[focus])+len(b.themed)+len(b.generic))
	if focus != "" {
		out = append(out, b.byTheme[focus]...)
		for _, t := range b.themed {
			out = append(out, fmt.Sprintf(t, focus))
		}
	}
	return append(out, b.generic...)
}
