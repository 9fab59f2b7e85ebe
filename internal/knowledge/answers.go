package knowledge

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minContainedQuestion is the shortest stored question that may match by
// containment. Shorter ones only match exactly.
const minContainedQuestion = 8

// normalize lower-cases, drops punctuation and collapses whitespace.
func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}

// matchAnswer picks the answer whose question equals message, or failing
// that the longest stored question contained in message.
func matchAnswer(message string, answers []Answer) (string, bool) {
	msg := normalize(message)
	if msg == "" {
		return "", false
	}
	best, bestLen := "", 0
	for _, a := range answers {
		q := normalize(a.Question)
		if q == "" {
			continue
		}
		if q == msg {
			return a.Answer, true
		}
		n := utf8.RuneCountInString(q)
		if n >= minContainedQuestion && n > bestLen && containsWords(msg, q) {
			best, bestLen = a.Answer, n
		}
	}
	return best, bestLen > 0
}

// containsWords reports whether q occurs in msg on word boundaries.
func containsWords(msg, q string) bool {
	padded := " " + msg + " "
	return strings.Contains(padded, " "+q+" ")
}
