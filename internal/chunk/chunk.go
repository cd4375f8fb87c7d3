// Package chunk splits an outbound message into parts that fit a
// transport's size limit, breaking only at line boundaries.
package chunk

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/ObiAU/feeddigest/internal/models"
)

// Split returns text as one or more parts of at most limit characters.
// A message that fits is returned unchanged. Longer ones are cut between
// lines and every line keeps its trailing newline. A single line longer
// than limit is sent alone in an oversized part rather than cut mid-tag.
// Tags left open across a part boundary are not repaired. Lengths are
// counted in runes.
func Split(text string, limit int) []models.MessagePart {
	return split(text, limit, utf8.RuneCountInString)
}

// SplitUTF16 is Split with lengths counted in UTF-16 code units, the unit
// Telegram applies its message limit in. Characters outside the Basic
// Multilingual Plane, such as most emoji, count twice.
func SplitUTF16(text string, limit int) []models.MessagePart {
	return split(text, limit, UTF16Len)
}

func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

func split(text string, limit int, length func(string) int) []models.MessagePart {
	if limit <= 0 || length(text) <= limit {
		return []models.MessagePart{{Text: text, Index: 0, Total: 1}}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, line := range strings.Split(text, "\n") {
		lineLen := length(line)
		if currentLen+lineLen+1 > limit && currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(line)
		current.WriteByte('\n')
		currentLen += lineLen + 1
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}

	parts := make([]models.MessagePart, len(chunks))
	for i, c := range chunks {
		parts[i] = models.MessagePart{Text: c, Index: i, Total: len(chunks)}
	}
	return parts
}
