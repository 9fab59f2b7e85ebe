package policy

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	cpfPattern   = regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`)
	cnpjPattern  = regexp.MustCompile(`\b\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}\b`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

type rule struct {
	pattern *regexp.Regexp
	marker  string
}

// Order matters: document numbers and cards before phones, since the phone
// pattern would otherwise swallow them.
var rules = []rule{
	{emailPattern, "[REDACTED_EMAIL]"},
	{cnpjPattern, "[REDACTED_CNPJ]"},
	{cpfPattern, "[REDACTED_CPF]"},
	{cardPattern, "[REDACTED_CARD]"},
	{phonePattern, "[REDACTED_PHONE]"},
}

// errorIDPattern matches the ids attached to failed turns. Their digit
// runs look like card and phone numbers but must survive redaction so a
// user report can be matched to the log line.
var errorIDPattern = regexp.MustCompile(`ERR-\d{8}-\d{6}-[0-9a-f]{6}`)

// RedactPII masks common high-risk PII patterns. Error ids are left intact.
func RedactPII(input string) (redacted string, changed bool) {
	spans := errorIDPattern.FindAllStringIndex(input, -1)
	if len(spans) == 0 {
		return redactSegment(input)
	}
	var b strings.Builder
	prev := 0
	for _, sp := range spans {
		seg, segChanged := redactSegment(input[prev:sp[0]])
		changed = changed || segChanged
		b.WriteString(seg)
		b.WriteString(input[sp[0]:sp[1]])
		prev = sp[1]
	}
	seg, segChanged := redactSegment(input[prev:])
	b.WriteString(seg)
	return b.String(), changed || segChanged
}

func redactSegment(input string) (string, bool) {
	out := input
	changed := false
	for _, r := range rules {
		next := r.pattern.ReplaceAllString(out, r.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}
