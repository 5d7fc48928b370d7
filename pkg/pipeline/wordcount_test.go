package pipeline

import "testing"

func TestCountWordsWhitespaceDelimited(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"hello", 1},
		{"hello world", 2},
		{"  hello   world  ", 2},
	}
	for _, c := range cases {
		if got := countWords(c.text, LanguageEn); got != c.want {
			t.Errorf("countWords(%q, en) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestCountWordsCharacterBased(t *testing.T) {
	cases := []struct {
		text string
		lang Language
		want int
	}{
		{"こんにちは", LanguageJa, 5},
		{"こんにちは。", LanguageJa, 5},
		{"你好，世界", LanguageZh, 4},
		{"안녕 하세요", LanguageKo, 5},
	}
	for _, c := range cases {
		if got := countWords(c.text, c.lang); got != c.want {
			t.Errorf("countWords(%q, %s) = %d, want %d", c.text, c.lang, got, c.want)
		}
	}
}
