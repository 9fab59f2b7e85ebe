package intent

import (
	"strings"

	"github.com/ent0n29/sofia/internal/config"
)

// Breakdown is the file score of a message in integer hundredths, so 70
// means 0.70. Total is clamped to [0, 100]; the other fields are the raw
// signal counts behind it.
type Breakdown struct {
	Extension      bool `json:"extension"`
	Naming         bool `json:"naming"`
	FileKeywords   int  `json:"file_keywords"`
	ActionKeywords int  `json:"action_keywords"`
	CasualWords    int  `json:"casual_words"`
	Total          int  `json:"total"`
}

// Value returns Total as a fraction in [0, 1].
func (b Breakdown) Value() float64 {
	return float64(b.Total) / 100
}

// Score computes how likely the message is a file request. Every phrase
// counts once no matter how often it occurs, and clamping happens after all
// signals are summed.
func (c *Classifier) Score(message string) Breakdown {
	s := c.bundle.Scoring
	kw := c.bundle.Keywords
	lower := strings.ToLower(strings.TrimSpace(message))

	b := Breakdown{
		Extension:      c.bundle.FileExtension.MatchString(lower),
		Naming:         c.bundle.FileNaming.MatchString(lower),
		FileKeywords:   config.CountContained(lower, kw.FileKeywords),
		ActionKeywords: config.CountContained(lower, kw.ActionKeywords),
		CasualWords:    config.CountContained(lower, kw.CasualWords),
	}

	total := 0
	if b.Extension {
		total += s.Extension
	}
	if b.Naming {
		total += s.Naming
	}
	total += b.FileKeywords * s.FileKeyword
	total += b.ActionKeywords * s.ActionKeyword
	total -= b.CasualWords * s.CasualPenalty
	b.Total = min(max(total, 0), 100)
	return b
}

// FileScore is Score(message).Value().
func (c *Classifier) FileScore(message string) float64 {
	return c.Score(message).Value()
}
