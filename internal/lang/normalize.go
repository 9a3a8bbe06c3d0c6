package lang

import (
	"regexp"
	"strings"
)

var emojiRanges = []struct{ lo, hi rune }{
	{0x1F600, 0x1F64F}, // emoticons
	{0x1F300, 0x1F5FF}, // symbols & pictographs
	{0x1F680, 0x1F6FF}, // transport & map symbols
	{0x1F1E0, 0x1F1FF}, // regional indicators (flags)
	{0x1F900, 0x1F9FF}, // supplemental symbols
	{0x2702, 0x27B0},   // dingbats
}

var urlWordPattern = regexp.MustCompile(`\S+\.\S+`)

// Normalize prepares post text for language detection: newlines become
// sentence breaks, emoji are removed, and URL-like words, @mentions and
// #hashtags are dropped entirely.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\n", ". ")
	text = stripEmoji(text)

	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if strings.HasPrefix(w, "@") || strings.HasPrefix(w, "#") {
			continue
		}
		if urlWordPattern.MatchString(w) {
			continue
		}
		kept = append(kept, w)
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

func stripEmoji(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isEmoji(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isEmoji(r rune) bool {
	for _, rg := range emojiRanges {
		if r >= rg.lo && r <= rg.hi {
			return true
		}
	}
	return false
}
