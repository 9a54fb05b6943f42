package telegram

import (
	"strings"
	"unicode/utf8"
)

// splitText cuts text into pieces of at most limit UTF-16 code units. A cut
// prefers the last newline in the second half of a piece and never falls
// inside a rune. Text that already fits comes back as the only piece.
func splitText(text string, limit int) []string {
	if limit <= 0 || utf16Len(text) <= limit {
		return []string{text}
	}

	var parts []string
	for text != "" {
		end, units, lastBreak := 0, 0, -1
		for end < len(text) {
			r, size := utf8.DecodeRuneInString(text[end:])
			w := 1
			if r >= 0x10000 {
				w = 2
			}
			if units+w > limit && end > 0 {
				break
			}
			units += w
			end += size
			if r == '\n' && units > limit/2 {
				lastBreak = end
			}
		}
		if end == len(text) {
			parts = append(parts, text)
			break
		}
		if lastBreak > 0 {
			end = lastBreak
		}
		piece := strings.TrimRight(text[:end], "\n")
		if piece != "" {
			parts = append(parts, piece)
		}
		text = strings.TrimLeft(text[end:], "\n")
	}
	return parts
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
