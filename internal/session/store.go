package session

import (
	"strings"
	"sync"
)

// Step identifies where a user is inside the manual learning flow.
type Step int

const (
	StepNone Step = iota
	StepAnswer
)

// LearningDraft is a question waiting for its answer.
type LearningDraft struct {
	Question string `json:"question"`
	Step     Step   `json:"step"`
}

// Snapshot is a point-in-time copy of one user's conversation state.
type Snapshot struct {
	UserID           string         `json:"user_id"`
	Learning         *LearningDraft `json:"learning,omitempty"`
	BoardMode        bool           `json:"board_mode"`
	LastBoard        string         `json:"last_board,omitempty"`
	LastCollaborator string         `json:"last_collaborator,omitempty"`
}

// Store keeps per-user conversation state in memory. A user missing from a
// category is in that category's default state, and writing a default value
// removes the user from the category, so the maps never hold defaults.
type Store struct {
	mu               sync.RWMutex
	learning         map[string]LearningDraft
	boardMode        map[string]struct{}
	lastBoard        map[string]string
	lastCollaborator map[string]string
}

func NewStore() *Store {
	return &Store{
		learning:         make(map[string]LearningDraft),
		boardMode:        make(map[string]struct{}),
		lastBoard:        make(map[string]string),
		lastCollaborator: make(map[string]string),
	}
}

func (s *Store) LearningDraft(userID string) (LearningDraft, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.learning[userID]
	return d, ok
}

// InLearning reports whether the user has a draft in progress.
func (s *Store) InLearning(userID string) bool {
	_, ok := s.LearningDraft(userID)
	return ok
}

// SetLearningDraft stores a draft. A draft with an empty question or StepNone
// is the default and clears the user instead.
func (s *Store) SetLearningDraft(userID string, d LearningDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(d.Question) == "" || d.Step == StepNone {
		delete(s.learning, userID)
		return
	}
	s.learning[userID] = d
}

func (s *Store) ClearLearning(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.learning, userID)
}

func (s *Store) BoardMode(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.boardMode[userID]
	return ok
}

func (s *Store) SetBoardMode(userID string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !on {
		delete(s.boardMode, userID)
		return
	}
	s.boardMode[userID] = struct{}{}
}

func (s *Store) LastBoard(userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastBoard[userID]
}

func (s *Store) SetLastBoard(userID, project string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setOrDelete(s.lastBoard, userID, project)
}

func (s *Store) LastCollaborator(userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCollaborator[userID]
}

func (s *Store) SetLastCollaborator(userID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setOrDelete(s.lastCollaborator, userID, name)
}

// Reset drops every category for one user.
func (s *Store) Reset(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.learning, userID)
	delete(s.boardMode, userID)
	delete(s.lastBoard, userID)
	delete(s.lastCollaborator, userID)
}

func (s *Store) Snapshot(userID string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		UserID:           userID,
		LastBoard:        s.lastBoard[userID],
		LastCollaborator: s.lastCollaborator[userID],
	}
	if d, ok := s.learning[userID]; ok {
		snap.Learning = &d
	}
	_, snap.BoardMode = s.boardMode[userID]
	return snap
}

// BoardModeCount returns how many users are currently in board mode.
func (s *Store) BoardModeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.boardMode)
}

func (s *Store) LearningCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.learning)
}

func setOrDelete(m map[string]string, key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		delete(m, key)
		return
	}
	m[key] = value
}
