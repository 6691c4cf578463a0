package openclaw

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// emojiPattern matches runs of emoji and pictographic symbols. ASCII
// emoticons such as ":)" are left alone.
var emojiPattern = regexp.MustCompile("[" +
	`\x{1F600}-\x{1F64F}` + // emoticons
	`\x{1F300}-\x{1F5FF}` + // symbols & pictographs
	`\x{1F680}-\x{1F6FF}` + // transport & map symbols
	`\x{1F1E0}-\x{1F1FF}` + // flags
	`\x{1F900}-\x{1F9FF}` + // supplemental symbols & pictographs
	`\x{1FA70}-\x{1FAFF}` + // symbols & pictographs extended-A
	`\x{2600}-\x{26FF}` + // miscellaneous symbols
	`\x{2700}-\x{27BF}` + // dingbats
	`\x{2B00}-\x{2BFF}` + // arrows and stars
	`\x{FE0F}\x{200D}` + // variation selector, zero width joiner
	"]+")

// StripEmojis removes emoji from agent output so it can be spoken, and
// trims surrounding whitespace. Spaces around a removed emoji are kept.
func StripEmojis(text string) string {
	return strings.TrimSpace(emojiPattern.ReplaceAllString(text, ""))
}

// TruncateForSpeech keeps at most maxChars characters of text, cutting at
// the last sentence or word boundary when one is close to the limit. A cut
// mid-sentence is marked with "...". maxChars <= 0 disables truncation.
func TruncateForSpeech(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:maxChars])

	// Prefer a sentence end in the last half of the window
	if i := strings.LastIndexAny(cut, ".!?"); i >= len(cut)/2 {
		return strings.TrimSpace(cut[:i+1])
	}
	if i := strings.LastIndexByte(cut, ' '); i >= len(cut)/2 {
		return strings.TrimSpace(cut[:i]) + "..."
	}
	return strings.TrimSpace(cut) + "..."
}
