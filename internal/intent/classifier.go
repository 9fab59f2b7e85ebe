// Package intent routes a user message to exactly one handler intent.
//
// Classification is a fixed priority cascade where the first matching rule
// wins: admin, boards, learning, file_list, greeting, file, general. Boards
// and learning are sticky: once a user is in board mode or has a learning
// draft, every message routes there until the flow ends. Classification
// never fails and holds no mutable state.
package intent

import (
	"strings"

	"github.com/ent0n29/sofia/internal/config"
)

type Intent string

const (
	Admin    Intent = "admin"
	Boards   Intent = "boards"
	Learning Intent = "learning"
	FileList Intent = "file_list"
	Greeting Intent = "greeting"
	File     Intent = "file"
	General  Intent = "general"
)

// All lists the intents in priority order.
var All = []Intent{Admin, Boards, Learning, FileList, Greeting, File, General}

// StateView is the read-only slice of session state the classifier consults.
type StateView interface {
	BoardMode(userID string) bool
	InLearning(userID string) bool
}

// Context carries one message to classify. State may be nil, in which case
// no user is considered to be inside a sticky flow.
type Context struct {
	Message string
	UserID  string
	State   StateView
}

type Classifier struct {
	bundle *config.Bundle
}

func NewClassifier(bundle *config.Bundle) *Classifier {
	return &Classifier{bundle: bundle}
}

func (c *Classifier) Classify(in Context) Intent {
	intent, _ := c.classify(in)
	return intent
}

// Decision explains which rule produced an intent.
type Decision struct {
	Intent Intent    `json:"intent"`
	Rule   string    `json:"rule"`
	Score  Breakdown `json:"score"`
}

// Explain classifies like Classify and reports the deciding rule together
// with the file score breakdown.
func (c *Classifier) Explain(in Context) Decision {
	intent, rule := c.classify(in)
	return Decision{Intent: intent, Rule: rule, Score: c.Score(in.Message)}
}

func (c *Classifier) classify(in Context) (Intent, string) {
	kw := c.bundle.Keywords
	lower := strings.ToLower(strings.TrimSpace(in.Message))

	if config.ContainsAny(lower, kw.AdminCommands) {
		return Admin, "admin_command"
	}
	if config.ContainsAny(lower, kw.BoardsCommands) {
		return Boards, "boards_command"
	}
	if in.State != nil && in.State.BoardMode(in.UserID) {
		return Boards, "board_mode"
	}
	if config.ContainsAny(lower, kw.LearningTriggers) {
		return Learning, "learning_trigger"
	}
	if in.State != nil && in.State.InLearning(in.UserID) {
		return Learning, "learning_draft"
	}
	if config.ContainsAny(lower, kw.ListPatterns) {
		return FileList, "list_pattern"
	}
	if len(strings.Fields(in.Message)) <= c.bundle.Limits.GreetingMaxWords && c.bundle.Greeting.MatchString(in.Message) {
		return Greeting, "greeting"
	}
	if c.Score(in.Message).Total > c.bundle.Scoring.Threshold {
		return File, "file_score"
	}
	return General, "default"
}
