package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/voice-journal/core/internal/journal/instructions"
	"github.com/voice-journal/core/internal/journal/model"
	logx "github.com/voice-journal/core/pkg/logger"
)

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted journaling session and print each turn",
		RunE:  runDemo,
	}
	cmd.Flags().String("store", backendMemory, "state backend for the demo (memory or redis)")
	cmd.Flags().Bool("verbose", false, "print pipeline logs")
	return cmd
}

type demoTurn struct {
	description string
	input       model.TurnInput
}

func demoScript() []demoTurn {
	return []demoTurn{
		{
			description: "Opening share, still talking",
			input:       model.TurnInput{Utterance: "I had a long day"},
		},
		{
			description: "Finishes the opening share",
			input: model.TurnInput{
				Utterance:         "I felt behind on my project and stressed about gym",
				IsFinishedSharing: true,
			},
		},
		{
			description: "Confirms mood",
			input:       model.TurnInput{Utterance: "Honestly just tired", Mood: model.Ptr("tired")},
		},
		{
			description: "Brings up a new theme",
			input:       model.TurnInput{Utterance: "I skipped the gym again and felt bad about it"},
		},
		{
			description: "Backchannel",
			input:       model.TurnInput{Utterance: "yeah"},
		},
		{
			description: "Wraps up",
			input:       model.TurnInput{Utterance: "That's it for today", Completed: true},
		},
	}
}

func runDemo(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg.StoreBackend, _ = cmd.Flags().GetString("store")
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Level: cfg.LogLevel})
	} else {
		logx.Silence()
	}

	ctx := cmd.Context()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	userID := "demo-user"
	sessionID := uuid.New().String()
	date := time.Now().In(a.location).Format(time.DateOnly)
	fmt.Fprintf(out, "Session %s (%s)\n", sessionID, date)

	for i, step := range demoScript() {
		in := step.input
		in.UserID, in.SessionID, in.Date = userID, sessionID, date

		fmt.Fprintf(out, "\nTurn %d: %s\n", i+1, step.description)
		fmt.Fprintf(out, "User: %q\n", in.Utterance)

		res, err := a.processor.ProcessTurn(ctx, in)
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}

		s := res.State
		fmt.Fprintf(out, "Phase: %s  Anchor: %s  Focus: %s  Tone: %s\n",
			s.Phase, themeOrDash(s.Anchor), orDash(string(s.FocusTheme)), orDash(deref(s.Tone)))
		fmt.Fprintf(out, "Explored: %v\n", s.ExploredThemes)
		if d, err := instructions.ParseDirective(res.Instructions); err == nil {
			if d.Silent {
				fmt.Fprintln(out, "Assistant: (silent)")
			} else {
				fmt.Fprintf(out, "Assistant: %s\n", strings.Join(d.Speak, " "))
			}
		}
		fmt.Fprintln(out, strings.Repeat("-", 48))
	}

	// A closed session refuses further turns.
	extra := model.TurnInput{UserID: userID, SessionID: sessionID, Date: date, Utterance: "one more thing"}
	if _, err := a.processor.ProcessTurn(ctx, extra); err != nil {
		fmt.Fprintf(out, "\nAfter close: %v\n", err)
	}
	return nil
}

func themeOrDash(t *model.Theme) string {
	if t == nil {
		return "-"
	}
	return string(*t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
