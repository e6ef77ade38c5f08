package pipeline

import (
	"strings"

	"golang.org/x/text/cases"

	"meetwatch/internal/session"
)

// Matcher flags transcript lines that mention one of the keywords.
type Matcher struct {
	fold     cases.Caser
	keywords []string
	phrases  []string
}

// NewMatcher builds a matcher. Comparison is case-insensitive using Unicode
// case folding.
func NewMatcher(keywords, questionPhrases []string) *Matcher {
	m := &Matcher{fold: cases.Fold()}
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			m.keywords = append(m.keywords, m.fold.String(k))
		}
	}
	for _, p := range questionPhrases {
		if p = strings.TrimSpace(p); p != "" {
			m.phrases = append(m.phrases, m.fold.String(p))
		}
	}
	return m
}

// Match reports whether text mentions a keyword, which keyword matched
// first, and whether the line reads as a question.
func (m *Matcher) Match(text string) (session.MentionKind, string, bool) {
	folded := m.fold.String(text)
	for _, keyword := range m.keywords {
		if !strings.Contains(folded, keyword) {
			continue
		}
		if m.isQuestion(folded) {
			return session.KindQuestion, keyword, true
		}
		return session.KindMention, keyword, true
	}
	return "", "", false
}

func (m *Matcher) isQuestion(folded string) bool {
	if strings.Contains(folded, "?") {
		return true
	}
	for _, phrase := range m.phrases {
		if strings.Contains(folded, phrase) {
			return true
		}
	}
	return false
}
