package phase

import (
	"strings"
	"unicode"
)

// Fingerprinter reduces a question to the key used to detect repeats. Any
// implementation must be deterministic. An embedding-based matcher can replace
// NormalizedText without touching the controller.
type Fingerprinter interface {
	Fingerprint(question string) string
}

// FingerprintFunc adapts a function to Fingerprinter.
type FingerprintFunc func(string) string

func (f FingerprintFunc) Fingerprint(q string) string { return f(q) }

// NormalizedText lowercases q, drops punctuation and collapses whitespace, so
// "How did the GYM go?" and "how did the gym go" share a fingerprint.
var NormalizedText = FingerprintFunc(normalize)

func normalize(q string) string {
	var b strings.Builder
	b.Grow(len(q))
	space := false
	for _, r := range strings.ToLower(q) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
		// punctuation is dropped without introducing a word break
	}
	return b.String()
}

func containsFingerprint(asked []string, fp string) bool {
	for _, a := range asked {
		if a == fp {
			return true
		}
	}
	return false
}
