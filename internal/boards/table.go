package boards

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Normalized state buckets.
const (
	StateInProgress = "em andamento"
	StateTodo       = "a fazer"
	StateDone       = "concluído"
)

const (
	epicType     = "epic"
	maxListed    = 20
	maxTopListed = 5
	maxParentHop = 10
)

var stateBuckets = map[string]string{
	"active":       StateInProgress,
	"in progress":  StateInProgress,
	"doing":        StateInProgress,
	"committed":    StateInProgress,
	"em andamento": StateInProgress,
	"new":          StateTodo,
	"to do":        StateTodo,
	"proposed":     StateTodo,
	"approved":     StateTodo,
	"a fazer":      StateTodo,
	"done":         StateDone,
	"closed":       StateDone,
	"resolved":     StateDone,
	"removed":      StateDone,
	"concluído":    StateDone,
}

// NormalizeState maps an upstream state name to one of the buckets. Unknown
// states are returned lower-cased.
func NormalizeState(state string) string {
	s := strings.ToLower(strings.TrimSpace(state))
	if b, ok := stateBuckets[s]; ok {
		return b
	}
	return s
}

// Row is one processed work item.
type Row struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Responsible string `json:"responsible"`
	Type        string `json:"type"`
	State       string `json:"state"`
	Client      string `json:"client,omitempty"`
}

// Table is the processed dataset of one board. It is read-only once built
// and safe to share through the cache.
type Table struct {
	Project string
	Rows    []Row
}

// ToTable normalizes work items into rows. Epics become rows only when
// includeEpics is set, in which case items without their own client inherit
// it from the nearest epic ancestor.
func ToTable(items []WorkItem, project string, includeEpics bool) *Table {
	byID := make(map[int]WorkItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	t := &Table{Project: project, Rows: make([]Row, 0, len(items))}
	for _, it := range items {
		typ := strings.ToLower(strings.TrimSpace(it.Type))
		if typ == epicType && !includeEpics {
			continue
		}
		client := strings.TrimSpace(it.Client)
		if client == "" && includeEpics {
			client = epicClient(it, byID)
		}
		t.Rows = append(t.Rows, Row{
			ID:          it.ID,
			Title:       strings.TrimSpace(it.Title),
			Responsible: strings.TrimSpace(it.AssignedTo),
			Type:        typ,
			State:       NormalizeState(it.State),
			Client:      client,
		})
	}
	return t
}

func epicClient(it WorkItem, byID map[int]WorkItem) string {
	cur := it
	for hop := 0; hop < maxParentHop && cur.ParentID != 0; hop++ {
		parent, ok := byID[cur.ParentID]
		if !ok {
			return ""
		}
		if strings.EqualFold(strings.TrimSpace(parent.Type), epicType) {
			if c := strings.TrimSpace(parent.Client); c != "" {
				return c
			}
			return strings.TrimSpace(parent.Title)
		}
		cur = parent
	}
	return ""
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *Table) filter(keep func(Row) bool) []Row {
	var out []Row
	for _, r := range t.Rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (t *Table) InProgress() []Row {
	return t.filter(func(r Row) bool { return r.State == StateInProgress })
}

// ByResponsible matches the responsible name case-insensitively.
func (t *Table) ByResponsible(name string) []Row {
	return t.filter(func(r Row) bool { return strings.EqualFold(r.Responsible, name) })
}

func (t *Table) ByResponsibleAndState(name, state string) []Row {
	return t.filter(func(r Row) bool {
		return strings.EqualFold(r.Responsible, name) && r.State == state
	})
}

// CountType counts rows whose type equals typ, ignoring case.
func (t *Table) CountType(typ string) int {
	return len(t.filter(func(r Row) bool { return strings.EqualFold(r.Type, typ) }))
}

// Responsibles returns the distinct non-empty responsible names, sorted.
func (t *Table) Responsibles() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range t.Rows {
		if r.Responsible == "" {
			continue
		}
		if _, ok := seen[r.Responsible]; ok {
			continue
		}
		seen[r.Responsible] = struct{}{}
		out = append(out, r.Responsible)
	}
	sort.Strings(out)
	return out
}

type tally struct {
	Name  string
	Count int
}

// rank counts non-empty keys, highest count first and ties by name.
func (t *Table) rank(key func(Row) string) []tally {
	counts := map[string]int{}
	for _, r := range t.Rows {
		if k := key(r); k != "" {
			counts[k]++
		}
	}
	out := make([]tally, 0, len(counts))
	for name, n := range counts {
		out = append(out, tally{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TopResponsible returns the person with the most rows. ok is false when no
// row has a responsible.
func (t *Table) TopResponsible() (name string, count int, ok bool) {
	ranked := t.rank(func(r Row) string { return r.Responsible })
	if len(ranked) == 0 {
		return "", 0, false
	}
	return ranked[0].Name, ranked[0].Count, true
}

// TopClient returns the client with the most rows.
func (t *Table) TopClient() (name string, count int, ok bool) {
	ranked := t.rank(func(r Row) string { return r.Client })
	if len(ranked) == 0 {
		return "", 0, false
	}
	return ranked[0].Name, ranked[0].Count, true
}

// ClientSummary answers "which client has the most activity".
func (t *Table) ClientSummary(boardName string) string {
	name, count, ok := t.TopClient()
	if !ok {
		return fmt.Sprintf("Não encontrei informações de cliente nos itens do board %s.", boardName)
	}
	return fmt.Sprintf("🏆 O cliente com mais atividades no board **%s** é **%s**, com **%d** atividade(s).", boardName, name, count)
}

// FormatTasks renders rows as a markdown list under title.
func FormatTasks(rows []Row, title string) string {
	if len(rows) == 0 {
		return fmt.Sprintf("📋 **%s**\n\nNenhuma tarefa encontrada.", title)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 **%s** (%d)\n", title, len(rows))
	for i, r := range rows {
		if i == maxListed {
			fmt.Fprintf(&b, "\n... e mais %d tarefa(s).", len(rows)-maxListed)
			break
		}
		responsible := r.Responsible
		if responsible == "" {
			responsible = "sem responsável"
		}
		fmt.Fprintf(&b, "\n- #%d **%s** (%s, %s, %s)", r.ID, r.Title, TitleCase(r.Type), r.State, responsible)
	}
	return b.String()
}

// Overview renders totals by state, by type and the busiest people.
func (t *Table) Overview(title string) string {
	states := map[string]int{}
	for _, r := range t.Rows {
		states[r.State]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 **%s**\n\n", title)
	fmt.Fprintf(&b, "- Total de itens: %d\n", len(t.Rows))
	fmt.Fprintf(&b, "- Em andamento: %d\n", states[StateInProgress])
	fmt.Fprintf(&b, "- A fazer: %d\n", states[StateTodo])
	fmt.Fprintf(&b, "- Concluídos: %d\n", states[StateDone])

	if types := t.rank(func(r Row) string { return r.Type }); len(types) > 0 {
		b.WriteString("\n**Por tipo:**\n")
		for _, ty := range types {
			fmt.Fprintf(&b, "- %s: %d\n", TitleCase(ty.Name), ty.Count)
		}
	}
	if people := t.rank(func(r Row) string { return r.Responsible }); len(people) > 0 {
		b.WriteString("\n**Responsáveis com mais itens:**\n")
		for i, p := range people {
			if i == maxTopListed {
				break
			}
			fmt.Fprintf(&b, "- %s: %d\n", p.Name, p.Count)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// TitleCase upper-cases the first letter of every space separated word.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
