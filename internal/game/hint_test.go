package game

import (
	"strings"
	"testing"
)

func TestNewHint(t *testing.T) {
	tests := []struct {
		name       string
		character  Character
		level      int
		givenPart  string
		familyPart string
		last       bool
	}{
		{"level 1", naruto, 1, "N", "", false},
		{"level 2", naruto, 2, "Nar", "Uz", false},
		{"level 3", naruto, 3, "Naru", "Uzu", true},
		{"one letter names", Character{GivenName: "L", FamilyName: "X"}, 2, "", "X", false},
		{"one letter names last", Character{GivenName: "L", FamilyName: "X"}, 3, "", "", true},
		{"empty names", Character{Series: "Bleach"}, 1, "", "", false},
		{"accented name", Character{GivenName: "Émilia", FamilyName: "Ñu"}, 2, "Émi", "Ñu", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHint(tt.character, tt.level, 3)
			if h.GivenPart != tt.givenPart {
				t.Errorf("Expected given part %q, got %q", tt.givenPart, h.GivenPart)
			}
			if h.FamilyPart != tt.familyPart {
				t.Errorf("Expected family part %q, got %q", tt.familyPart, h.FamilyPart)
			}
			if h.LastAttempt != tt.last {
				t.Errorf("Expected last attempt %v, got %v", tt.last, h.LastAttempt)
			}
			if h.Series != tt.character.Series {
				t.Errorf("Expected series %q, got %q", tt.character.Series, h.Series)
			}
		})
	}
}

func TestHintText(t *testing.T) {
	h := NewHint(naruto, 3, 1)
	text := h.Text()

	for _, want := range []string{"**Series:** Naruto", "Naru…", "Uzu…", "Last attempt"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected hint text to contain %q, got %q", want, text)
		}
	}

	if text := NewHint(naruto, 1, 6).Text(); strings.Contains(text, "Last attempt") {
		t.Errorf("Expected no last attempt warning at level 1, got %q", text)
	}
}

func TestHintThreshold(t *testing.T) {
	want := []int{0, 4, 6, 9}
	for level, threshold := range want {
		if got := HintThreshold(level); got != threshold {
			t.Errorf("Level %d: expected threshold %d, got %d", level, threshold, got)
		}
	}
	if HintThreshold(MaxHintLevel) != MaxAttempts-1 {
		t.Error("Expected the last hint to unlock on the last attempt")
	}
}
