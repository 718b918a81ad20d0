package gateway

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	chunkMaxLen  = 90
	speechMaxLen = 350
)

var sentenceEndRE = regexp.MustCompile(`([.!?])\s+`)

// truncateAtRune caps s at max bytes without splitting a multi-byte rune,
// backing off to the preceding rune boundary.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		// Not valid UTF-8 to begin with; a byte slice is the best we can do.
		return s[:max]
	}
	return s[:cut]
}

// chunkText splits an answer at sentence boundaries into delta-sized pieces;
// sentences longer than the chunk cap are hard-split at rune boundaries.
func chunkText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	marked := sentenceEndRE.ReplaceAllString(text, "$1\x00")
	var chunks []string
	for _, part := range strings.Split(marked, "\x00") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		for len(part) > chunkMaxLen {
			head := truncateAtRune(part, chunkMaxLen)
			chunks = append(chunks, head)
			part = part[len(head):]
		}
		chunks = append(chunks, part)
	}
	return chunks
}

// renderSpeech derives the spoken form of a display answer: markdown
// emphasis and code fences stripped, capped for the voice channel.
func renderSpeech(display string) string {
	speech := strings.ReplaceAll(display, "**", "")
	speech = strings.ReplaceAll(speech, "```", "")
	speech = strings.TrimSpace(speech)
	return truncateAtRune(speech, speechMaxLen)
}
