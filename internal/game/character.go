package game

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Character is one entry of the roster a round is played on.
type Character struct {
	GivenName  string
	FamilyName string
	Series     string
	ImageURL   string // optional
}

// FullName returns the given and family names joined by a space.
func (c Character) FullName() string {
	return strings.TrimSpace(c.GivenName + " " + c.FamilyName)
}

// AcceptedAnswers returns the normalized guesses that win the round.
func (c Character) AcceptedAnswers() []string {
	var answers []string
	seen := make(map[string]bool)
	for _, name := range []string{c.GivenName, c.FamilyName, c.FullName()} {
		n := Normalize(name)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		answers = append(answers, n)
	}
	return answers
}

// Matches reports whether text is one of the accepted answers.
func (c Character) Matches(text string) bool {
	guess := Normalize(text)
	if guess == "" {
		return false
	}
	for _, answer := range c.AcceptedAnswers() {
		if guess == answer {
			return true
		}
	}
	return false
}

// closeDistance is the edit distance under which a wrong guess counts as close.
const closeDistance = 2

// IsClose reports whether a non-matching guess is a near miss of an answer.
// Answers shorter than four runes never count, a one-letter typo on "Ai" is a
// different name.
func (c Character) IsClose(text string) bool {
	guess := Normalize(text)
	if guess == "" {
		return false
	}
	for _, answer := range c.AcceptedAnswers() {
		if guess == answer || len([]rune(answer)) < 4 {
			continue
		}
		if fuzzy.LevenshteinDistance(guess, answer) <= closeDistance {
			return true
		}
	}
	return false
}

// Normalize trims, NFC-normalizes and lowercases a guess or a name.
func Normalize(s string) string {
	// A Caser is stateful, so one is built per call.
	return cases.Lower(language.Und).String(norm.NFC.String(strings.TrimSpace(s)))
}
