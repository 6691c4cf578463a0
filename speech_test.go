package openclaw

import (
	"testing"
	"unicode/utf8"
)

func TestStripEmojis(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain text", "Hello world", "Hello world"},
		{"punctuation", "Punctuation: comma, period. question?", "Punctuation: comma, period. question?"},
		{"symbols", "Numbers 123 and symbols @#$", "Numbers 123 and symbols @#$"},
		{"smiley emoticon", "Hello :)", "Hello :)"},
		{"heart emoticon", "<3", "<3"},
		{"anime emoticon", "^_^", "^_^"},
		{"grinning face", "Hello \U0001F600", "Hello"},
		{"tears of joy", "Test \U0001F602 test", "Test  test"},
		{"leading emoji", "\U0001F60A Nice", "Nice"},
		{"sun face", "Weather \U0001F31E", "Weather"},
		{"fire", "\U0001F525 Fire", "Fire"},
		{"rocket", "Rocket \U0001F680", "Rocket"},
		{"check mark", "Check ✔", "Check"},
		{"star", "Star ⭐", "Star"},
		{"flag", "Go \U0001F1FA\U0001F1F8", "Go"},
		{"variation selector", "Sun ☀️ today", "Sun  today"},
		{"empty", "", ""},
		{"whitespace", "   ", ""},
		{"emoji only", "\U0001F600\U0001F601\U0001F602", ""},
		{"consecutive", "Hello \U0001F600\U0001F601\U0001F602 World", "Hello  World"},
		{"interspersed", "Hello \U0001F600 World \U0001F601 Test", "Hello  World  Test"},
		{"french", "Bonjour le monde, ça va?", "Bonjour le monde, ça va?"},
		{"german", "Grüße aus München", "Grüße aus München"},
		{"japanese", "こんにちは世界", "こんにちは世界"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripEmojis(tt.text); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTruncateForSpeech(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
		want     string
	}{
		{"short", "Hello there.", 50, "Hello there."},
		{"disabled", "Hello there. General Kenobi.", 0, "Hello there. General Kenobi."},
		{"sentence boundary", "Hello there. General Kenobi is here.", 20, "Hello there."},
		{"word boundary", "one two three four five six", 14, "one two three..."},
		{"no boundary", "abcdefghijklmnop", 5, "abcde..."},
		{"multibyte", "ääääääää", 4, "ääää..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateForSpeech(tt.text, tt.maxChars); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTruncateForSpeech_Bound(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. It was not amused by any of this at all."
	for limit := 1; limit < len(text); limit++ {
		got := TruncateForSpeech(text, limit)
		// The ellipsis is the only thing allowed past the limit
		if n := utf8.RuneCountInString(got); n > limit+3 {
			t.Errorf("limit %d: got %d chars: %q", limit, n, got)
		}
	}
}
