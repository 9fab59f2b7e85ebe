package knowledge

import (
	"context"
	"strings"
	"sync"
)

// DefaultSeed is the initial knowledge loaded into an empty store.
func DefaultSeed() Snapshot {
	return Snapshot{
		Persona: "Você é Sofia, uma IA assistente da Sonar. Você é amigável, eficiente e proativa.",
		Company: &Company{
			Name:        "Sonar",
			Description: "A Sonar é uma empresa de tecnologia focada em soluções inovadoras de gestão.",
		},
		Sectors: []Sector{
			{Name: "Engenharia", Description: "Responsável pelo desenvolvimento e manutenção dos produtos."},
			{Name: "Design", Description: "Responsável pela experiência do utilizador e interface dos produtos."},
		},
	}
}

// InMemoryStore keeps knowledge in process. Learned answers are lost on
// restart.
type InMemoryStore struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewInMemoryStore(seed Snapshot) *InMemoryStore {
	return &InMemoryStore{snap: cloneSnapshot(seed)}
}

func (s *InMemoryStore) Snapshot(context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSnapshot(s.snap), nil
}

func (s *InMemoryStore) SaveAnswer(_ context.Context, question, answer string) error {
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return ErrEmptyAnswer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.snap.Answers {
		if a.Question == question {
			s.snap.Answers[i].Answer = answer
			return nil
		}
	}
	s.snap.Answers = append(s.snap.Answers, Answer{Question: question, Answer: answer})
	return nil
}

func (s *InMemoryStore) LookupAnswer(_ context.Context, message string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answer, ok := matchAnswer(message, s.snap.Answers)
	return answer, ok, nil
}

func (s *InMemoryStore) Close() error { return nil }

func cloneSnapshot(in Snapshot) Snapshot {
	out := in
	if in.Company != nil {
		c := *in.Company
		out.Company = &c
	}
	out.Sectors = append([]Sector(nil), in.Sectors...)
	out.Employees = append([]Employee(nil), in.Employees...)
	out.Managers = append([]Manager(nil), in.Managers...)
	out.Answers = append([]Answer(nil), in.Answers...)
	out.Ceremonies = append([]Ceremony(nil), in.Ceremonies...)
	out.Projects = make([]Project, len(in.Projects))
	for i, p := range in.Projects {
		p.Participants = append([]string(nil), p.Participants...)
		out.Projects[i] = p
	}
	return out
}
