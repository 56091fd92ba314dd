package game

import (
	"fmt"
	"strings"
)

const (
	// MaxAttempts is the number of guesses a round allows.
	MaxAttempts = 10
	// MaxHintLevel is the last hint, shown on the final attempt.
	MaxHintLevel = 3
)

// hintThresholds maps a hint level to the attempt count that unlocks it.
var hintThresholds = [MaxHintLevel + 1]int{0, 4, 6, MaxAttempts - 1}

// HintThreshold returns the attempt count at which level unlocks.
func HintThreshold(level int) int {
	if level < 0 || level > MaxHintLevel {
		return 0
	}
	return hintThresholds[level]
}

// Hint is the clue revealed at a hint level.
type Hint struct {
	Level       int
	Remaining   int
	Series      string
	GivenPart   string
	FamilyPart  string
	LastAttempt bool
}

// NewHint computes the reveal for level on character c.
func NewHint(c Character, level, remaining int) Hint {
	h := Hint{Level: level, Remaining: remaining, Series: c.Series}
	switch level {
	case 1:
		h.GivenPart = prefix(c.GivenName, 1)
	case 2:
		h.GivenPart = fraction(c.GivenName, 1, 2)
		h.FamilyPart = prefix(c.FamilyName, 2)
	case 3:
		h.GivenPart = fraction(c.GivenName, 3, 4)
		h.FamilyPart = fraction(c.FamilyName, 1, 2)
		h.LastAttempt = true
	}
	return h
}

// Text renders the hint as markdown lines.
func (h Hint) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Series:** %s", h.Series)
	switch h.Level {
	case 1:
		fmt.Fprintf(&b, "\n**Given name starts with:** %s…", h.GivenPart)
	case 2:
		fmt.Fprintf(&b, "\n**Half of the given name:** %s…", h.GivenPart)
		if h.FamilyPart != "" {
			fmt.Fprintf(&b, "\n**Family name starts with:** %s…", h.FamilyPart)
		}
	case 3:
		fmt.Fprintf(&b, "\n**Three quarters of the given name:** %s…", h.GivenPart)
		if h.FamilyPart != "" {
			fmt.Fprintf(&b, "\n**Half of the family name:** %s…", h.FamilyPart)
		}
		b.WriteString("\n\n⚠️ **Last attempt!**")
	}
	return b.String()
}

func prefix(s string, n int) string {
	r := []rune(s)
	if n > len(r) {
		n = len(r)
	}
	return string(r[:n])
}

func fraction(s string, num, den int) string {
	r := []rune(s)
	return string(r[:len(r)*num/den])
}
