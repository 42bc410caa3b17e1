package instructions

import (
	"fmt"
	"strings"
)

// Directive is what a speech renderer needs from rendered instructions.
type Directive struct {
	Silent bool
	// Speak holds the verbatim lines in order of appearance.
	Speak []string
}

// ParseDirective extracts the speech markers from rendered instructions. Text
// that mixes silence with spoken lines, or leaves a marker open, is rejected
// rather than guessed at.
func ParseDirective(text string) (Directive, error) {
	var d Directive
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == Silent {
			d.Silent = true
		}
	}

	rest := text
	for {
		open := strings.Index(rest, SpeakOpen)
		if open < 0 {
			if strings.Contains(rest, SpeakClose) {
				return Directive{}, fmt.Errorf("unmatched %s", SpeakClose)
			}
			break
		}
		if c := strings.Index(rest[:open], SpeakClose); c >= 0 {
			return Directive{}, fmt.Errorf("unmatched %s", SpeakClose)
		}
		rest = rest[open+len(SpeakOpen):]
		end := strings.Index(rest, SpeakClose)
		if end < 0 {
			return Directive{}, fmt.Errorf("unterminated %s", SpeakOpen)
		}
		line := strings.TrimSpace(rest[:end])
		if strings.Contains(line, SpeakOpen) {
			return Directive{}, fmt.Errorf("nested %s", SpeakOpen)
		}
		if line != "" {
			d.Speak = append(d.Speak, line)
		}
		rest = rest[end+len(SpeakClose):]
	}

	switch {
	case d.Silent && len(d.Speak) > 0:
		return Directive{}, fmt.Errorf("instructions are both silent and spoken")
	case !d.Silent && len(d.Speak) == 0:
		return Directive{}, fmt.Errorf("instructions carry no speech directive")
	}
	return d, nil
}
