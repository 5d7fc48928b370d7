package pipeline

import (
	"strings"
	"unicode"
)

// countWords implements the authoritative, source-language-based counting
// rule from spec §4.11: character-based languages strip whitespace and
// common punctuation and count remaining codepoints; everything else
// splits on whitespace runs and counts non-empty tokens. Grounded on the
// teacher's countWords helper in managed_stream.go (strings.Fields-based
// word counting), extended with the character-based branch.
func countWords(text string, lang Language) int {
	if lang.IsCharacterBased() {
		n := 0
		for _, r := range text {
			if unicode.IsSpace(r) || isCommonPunct(r) {
				continue
			}
			n++
		}
		return n
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	return len(strings.Fields(text))
}

func isCommonPunct(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ':', ';', '"', '\'',
		'。', '、', '，', '．', '！', '？', '：', '；', '「', '」', '『', '』', '（', '）', '(', ')':
		return true
	default:
		return false
	}
}
