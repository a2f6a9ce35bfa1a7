package contextpack

import "unicode"

// Heuristic per-script divisors: CJK scripts run roughly one token per two
// runes, Latin-like text roughly one per four.
const (
	cjkRunesPerToken   = 2
	otherRunesPerToken = 4
)

// estimateTokens is the fast fallback used when no tiktoken encoding is
// configured. It over-counts slightly on mixed text, which is the safe
// direction for a budget.
func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	cjk, other := 0, 0
	for _, r := range s {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	tokens := cjk/cjkRunesPerToken + other/otherRunesPerToken
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hangul, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r)
}
