package chat

import "unicode"

var blockedWords = []string{
	"merda",
	"bosta",
	"caralho",
	"porra",
	"puta",
	"fdp",
	"shit",
	"fuck",
	"bitch",
	"nazi",
}

// FilterProfanity masks blocked words, keeping the first letter so the
// sentence stays readable. Matching is case-insensitive and ignores word
// boundaries, the way casual chat filters do. The scan lowers one rune at a
// time so multibyte case mappings cannot shift positions relative to the
// original text.
func FilterProfanity(body string) string {
	runes := []rune(body)
	lowered := make([]rune, len(runes))
	for i, r := range runes {
		lowered[i] = unicode.ToLower(r)
	}
	for _, w := range blockedWords {
		word := []rune(w)
		for i := 0; i+len(word) <= len(lowered); i++ {
			if string(lowered[i:i+len(word)]) != w {
				continue
			}
			for j := 1; j < len(word); j++ {
				runes[i+j] = '*'
				lowered[i+j] = '*'
			}
			i += len(word) - 1
		}
	}
	return string(runes)
}
