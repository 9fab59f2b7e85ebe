// Package knowledge holds Sofia's long-lived context: persona, company
// facts, people, projects and the answers users taught her by hand. The
// general handler renders it into the system prompt and consults learned
// answers before calling the language model.
package knowledge

import (
	"context"
	"errors"
)

var ErrEmptyAnswer = errors.New("question and answer must not be empty")

type Company struct {
	Name        string
	Description string
}

type Sector struct {
	Name        string
	Description string
}

type Employee struct {
	Name   string
	Role   string
	Sector string
}

type Manager struct {
	Name string
	Area string
}

type Project struct {
	Name         string
	Description  string
	Status       string
	Participants []string
}

// Answer is a question/answer pair taught through the learning flow.
type Answer struct {
	Question string
	Answer   string
}

type Ceremony struct {
	Name        string
	Description string
}

// Snapshot is everything the prompt builder needs, read in one go.
type Snapshot struct {
	Persona    string
	Company    *Company
	Sectors    []Sector
	Employees  []Employee
	Managers   []Manager
	Projects   []Project
	Answers    []Answer
	Ceremonies []Ceremony
}

type Store interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	// SaveAnswer stores or replaces the answer for question.
	SaveAnswer(ctx context.Context, question, answer string) error
	// LookupAnswer finds a learned answer that applies to message.
	LookupAnswer(ctx context.Context, message string) (string, bool, error)
	Close() error
}
