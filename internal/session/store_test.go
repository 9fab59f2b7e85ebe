package session

import (
	"fmt"
	"sync"
	"testing"
)

func TestStoreDefaultsForUnknownUser(t *testing.T) {
	s := NewStore()

	if s.BoardMode("u1") {
		t.Fatalf("BoardMode() = true, want false")
	}
	if s.InLearning("u1") {
		t.Fatalf("InLearning() = true, want false")
	}
	if got := s.LastBoard("u1"); got != "" {
		t.Fatalf("LastBoard() = %q, want empty", got)
	}
	if got := s.LastCollaborator("u1"); got != "" {
		t.Fatalf("LastCollaborator() = %q, want empty", got)
	}
}

func TestStoreWritingDefaultDeletesKey(t *testing.T) {
	s := NewStore()

	s.SetBoardMode("u1", true)
	if got := s.BoardModeCount(); got != 1 {
		t.Fatalf("BoardModeCount() = %d, want 1", got)
	}
	s.SetBoardMode("u1", false)
	if got := s.BoardModeCount(); got != 0 {
		t.Fatalf("BoardModeCount() = %d, want 0 after writing default", got)
	}

	s.SetLastBoard("u1", "Sonar")
	s.SetLastBoard("u1", "  ")
	if got := s.LastBoard("u1"); got != "" {
		t.Fatalf("LastBoard() = %q, want empty", got)
	}
	if len(s.lastBoard) != 0 {
		t.Fatalf("lastBoard holds %d entries, want 0", len(s.lastBoard))
	}

	s.SetLearningDraft("u1", LearningDraft{Question: "q", Step: StepNone})
	if s.LearningCount() != 0 {
		t.Fatalf("LearningCount() = %d, want 0 for a StepNone draft", s.LearningCount())
	}
}

func TestStoreLearningDraftRoundTrip(t *testing.T) {
	s := NewStore()
	s.SetLearningDraft("u1", LearningDraft{Question: "qual o ramal do suporte?", Step: StepAnswer})

	d, ok := s.LearningDraft("u1")
	if !ok {
		t.Fatalf("LearningDraft() ok = false, want true")
	}
	if d.Question != "qual o ramal do suporte?" || d.Step != StepAnswer {
		t.Fatalf("unexpected draft: %+v", d)
	}
	if s.InLearning("u2") {
		t.Fatalf("InLearning(u2) = true, want false")
	}

	s.ClearLearning("u1")
	if s.InLearning("u1") {
		t.Fatalf("InLearning() = true after ClearLearning")
	}
}

func TestStoreResetClearsEveryCategory(t *testing.T) {
	s := NewStore()
	s.SetBoardMode("u1", true)
	s.SetLastBoard("u1", "Sonar")
	s.SetLastCollaborator("u1", "Ana Souza")
	s.SetLearningDraft("u1", LearningDraft{Question: "q", Step: StepAnswer})
	s.SetBoardMode("u2", true)

	s.Reset("u1")

	snap := s.Snapshot("u1")
	if snap.BoardMode || snap.LastBoard != "" || snap.LastCollaborator != "" || snap.Learning != nil {
		t.Fatalf("Snapshot() after Reset = %+v, want defaults", snap)
	}
	if !s.BoardMode("u2") {
		t.Fatalf("Reset(u1) must not touch u2")
	}
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	s := NewStore()
	s.SetLearningDraft("u1", LearningDraft{Question: "q", Step: StepAnswer})

	snap := s.Snapshot("u1")
	snap.Learning.Question = "changed"

	d, _ := s.LearningDraft("u1")
	if d.Question != "q" {
		t.Fatalf("stored draft mutated through snapshot: %+v", d)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i)
			for j := 0; j < 100; j++ {
				s.SetBoardMode(user, j%2 == 0)
				s.SetLastBoard(user, "Sonar")
				_ = s.BoardMode(user)
				_ = s.Snapshot(user)
			}
		}(i)
	}
	wg.Wait()

	if got := s.BoardModeCount(); got != 0 {
		t.Fatalf("BoardModeCount() = %d, want 0 (last write per user was false)", got)
	}
}
