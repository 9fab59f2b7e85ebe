package knowledge

import (
	"fmt"
	"strings"
	"time"
)

const defaultPersona = "Você é Sofia, uma assistente de IA da Sonar. Você é prestativa, eficiente e se comunica de forma clara e amigável."

const (
	maxEmployees      = 15
	maxParticipations = 5
	maxAnswers        = 10
	answerPreviewLen  = 50
)

var monthNames = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// LongDate renders t as "14 de outubro de 2026".
func LongDate(t time.Time) string {
	return fmt.Sprintf("%02d de %s de %d", t.Day(), monthNames[t.Month()-1], t.Year())
}

// BuildSystemPrompt assembles the system prompt from the knowledge snapshot,
// today's date, the reply tone and the formatted recent history. A nil
// snapshot falls back to the built-in persona.
func BuildSystemPrompt(snap *Snapshot, history, tone string, now time.Time) string {
	var parts []string
	if snap != nil {
		parts = append(parts,
			PersonaFragment(snap),
			CompanyFragment(snap),
			SectorsFragment(snap),
			EmployeesFragment(snap),
			ManagersFragment(snap),
			ProjectsFragment(snap),
			ParticipationsFragment(snap),
			AnswersFragment(snap),
			CeremoniesFragment(snap),
		)
	}
	if snap == nil || strings.TrimSpace(snap.Persona) == "" {
		parts = append([]string{defaultPersona}, parts...)
	}

	parts = append(parts, fmt.Sprintf(
		"A data de hoje é %s. Use essa informação para responder perguntas como 'qual é o dia de hoje?'.", LongDate(now)))

	switch tone {
	case "animado":
		parts = append(parts, "Adote um tom leve, simpático, entusiasmado e espontâneo. Use emoticons para deixar a interação mais agradável. 😊")
	case "sério":
		parts = append(parts, "Adote um tom mais formal, direto e profissional, mantendo cordialidade e clareza.")
	}

	if strings.TrimSpace(history) != "" {
		parts = append(parts, "\n--- Histórico da Conversa Recente ---\n"+history)
	}

	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func PersonaFragment(s *Snapshot) string {
	if strings.TrimSpace(s.Persona) == "" {
		return ""
	}
	return "### Sua Persona\n" + s.Persona
}

func CompanyFragment(s *Snapshot) string {
	if s.Company == nil {
		return ""
	}
	return fmt.Sprintf("### Sobre a Empresa (%s)\n%s", s.Company.Name, s.Company.Description)
}

func SectorsFragment(s *Snapshot) string {
	if len(s.Sectors) == 0 {
		return ""
	}
	lines := make([]string, 0, len(s.Sectors))
	for _, sec := range s.Sectors {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", sec.Name, sec.Description))
	}
	return "### Setores da Empresa\n" + strings.Join(lines, "\n")
}

func EmployeesFragment(s *Snapshot) string {
	if len(s.Employees) == 0 {
		return ""
	}
	names := make([]string, 0, maxEmployees)
	for i, e := range s.Employees {
		if i == maxEmployees {
			break
		}
		names = append(names, e.Name)
	}
	return "### Alguns Membros da Equipa\nEstes são alguns dos membros da equipa: " + strings.Join(names, ", ") + "."
}

func ManagersFragment(s *Snapshot) string {
	if len(s.Managers) == 0 {
		return ""
	}
	lines := make([]string, 0, len(s.Managers))
	for _, m := range s.Managers {
		lines = append(lines, fmt.Sprintf("- %s (Líder de %s)", m.Name, m.Area))
	}
	return "### Liderança\n" + strings.Join(lines, "\n")
}

// ProjectsFragment lists only active projects.
func ProjectsFragment(s *Snapshot) string {
	var lines []string
	for _, p := range s.Projects {
		if p.Status != "Ativo" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- **%s**: %s", p.Name, p.Description))
	}
	if len(lines) == 0 {
		return ""
	}
	return "### Principais Projetos Atuais\n" + strings.Join(lines, "\n")
}

func ParticipationsFragment(s *Snapshot) string {
	var b strings.Builder
	n := 0
	for _, p := range s.Projects {
		if len(p.Participants) == 0 {
			continue
		}
		if n == maxParticipations {
			break
		}
		fmt.Fprintf(&b, "- No projeto **%s** participam: %s.\n", p.Name, strings.Join(p.Participants, ", "))
		n++
	}
	if n == 0 {
		return ""
	}
	return "### Exemplo de Participação em Projetos\n" + b.String()
}

func AnswersFragment(s *Snapshot) string {
	if len(s.Answers) == 0 {
		return ""
	}
	lines := make([]string, 0, maxAnswers)
	for i, a := range s.Answers {
		if i == maxAnswers {
			break
		}
		lines = append(lines, fmt.Sprintf("- Se perguntarem '%s', a resposta é relacionada a '%s...'", a.Question, truncateRunes(a.Answer, answerPreviewLen)))
	}
	return "### Base de Conhecimento Rápido\n" + strings.Join(lines, "\n")
}

func CeremoniesFragment(s *Snapshot) string {
	if len(s.Ceremonies) == 0 {
		return ""
	}
	lines := make([]string, 0, len(s.Ceremonies))
	for _, c := range s.Ceremonies {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", c.Name, c.Description))
	}
	return "### Rituais e Cerimónias\n" + strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
