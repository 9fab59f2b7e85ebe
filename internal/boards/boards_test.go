package boards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/sofia/internal/reliability"
)

func sonarTable(t *testing.T, includeEpics bool) *Table {
	t.Helper()
	items, err := NewMockClient(SampleItems()).FetchWorkItems(context.Background(), "sonar", 200)
	require.NoError(t, err)
	return ToTable(items, "Sonar", includeEpics)
}

func TestToTableSkipsEpicsByDefault(t *testing.T) {
	tbl := sonarTable(t, false)
	assert.Equal(t, 5, tbl.Len())
	for _, r := range tbl.Rows {
		assert.NotEqual(t, "epic", r.Type)
		assert.Empty(t, r.Client)
	}
	assert.Equal(t, 1, tbl.CountType("Bug"))
	assert.Equal(t, 4, tbl.CountType("task"))
}

func TestToTableInheritsEpicClient(t *testing.T) {
	tbl := sonarTable(t, true)
	assert.Equal(t, 7, tbl.Len())

	name, count, ok := tbl.TopClient()
	require.True(t, ok)
	assert.Equal(t, "Atlas", name)
	assert.Equal(t, 3, count)
	assert.Contains(t, tbl.ClientSummary("Operações"), "**Atlas**, com **3** atividade(s)")
}

func TestEpicClientFallsBackToTitleAndStopsOnCycles(t *testing.T) {
	items := []WorkItem{
		{ID: 1, Title: "Projeto Vega", Type: "Epic"},
		{ID: 2, Title: "Feature", Type: "Feature", ParentID: 1},
		{ID: 3, Title: "Task", Type: "Task", ParentID: 2},
		{ID: 4, Title: "Loop A", Type: "Task", ParentID: 5},
		{ID: 5, Title: "Loop B", Type: "Task", ParentID: 4},
	}
	tbl := ToTable(items, "X", true)
	clients := map[int]string{}
	for _, r := range tbl.Rows {
		clients[r.ID] = r.Client
	}
	assert.Equal(t, "Projeto Vega", clients[3])
	assert.Empty(t, clients[4])
}

func TestNormalizeState(t *testing.T) {
	cases := map[string]string{
		"Active":       StateInProgress,
		" In Progress": StateInProgress,
		"New":          StateTodo,
		"Closed":       StateDone,
		"Blocked":      "blocked",
	}
	for in, want := range cases {
		assert.Equalf(t, want, NormalizeState(in), "NormalizeState(%q)", in)
	}
}

func TestTableQueries(t *testing.T) {
	tbl := sonarTable(t, false)

	assert.Len(t, tbl.InProgress(), 2)
	assert.Len(t, tbl.ByResponsible("ana souza"), 2)
	assert.Len(t, tbl.ByResponsibleAndState("Ana Souza", StateTodo), 1)
	assert.Equal(t, []string{"Ana Souza", "Bruno Lima", "Carla Dias"}, tbl.Responsibles())

	// Ana and Bruno tie at two items; ties resolve by name.
	name, count, ok := tbl.TopResponsible()
	require.True(t, ok)
	assert.Equal(t, "Ana Souza", name)
	assert.Equal(t, 2, count)

	_, _, ok = (&Table{}).TopResponsible()
	assert.False(t, ok)
}

func TestFormatTasks(t *testing.T) {
	assert.Equal(t, "📋 **Vazio**\n\nNenhuma tarefa encontrada.", FormatTasks(nil, "Vazio"))

	out := FormatTasks([]Row{{ID: 7, Title: "Deploy", Type: "user story", State: StateTodo}}, "Fila")
	assert.Equal(t, "📋 **Fila** (1)\n\n- #7 **Deploy** (User Story, a fazer, sem responsável)", out)

	many := make([]Row, 25)
	for i := range many {
		many[i] = Row{ID: i, Title: fmt.Sprintf("t%d", i), Type: "task", State: StateTodo, Responsible: "Ana"}
	}
	out = FormatTasks(many, "Muitas")
	assert.Equal(t, 20, strings.Count(out, "\n- #"))
	assert.True(t, strings.HasSuffix(out, "... e mais 5 tarefa(s)."))
}

func TestOverview(t *testing.T) {
	out := sonarTable(t, false).Overview("Visão Geral do Board Operações")
	assert.True(t, strings.HasPrefix(out, "📊 **Visão Geral do Board Operações**"))
	assert.Contains(t, out, "- Total de itens: 5")
	assert.Contains(t, out, "- Em andamento: 2")
	assert.Contains(t, out, "- A fazer: 2")
	assert.Contains(t, out, "- Concluídos: 1")
	assert.Contains(t, out, "- Task: 4")
	assert.Contains(t, out, "- Ana Souza: 2")
}

type fakeAzure struct {
	*httptest.Server
	batches atomic.Int32
}

func newFakeAzure(t *testing.T, ids []int) *fakeAzure {
	t.Helper()
	fa := &fakeAzure{}
	wiql := func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "" || pass != "pat" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["query"], "@project")

		refs := make([]map[string]int, 0, len(ids))
		for _, id := range ids {
			refs = append(refs, map[string]int{"id": id})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"workItems": refs})
	}
	batch := func(w http.ResponseWriter, r *http.Request) {
		fa.batches.Add(1)
		var req batchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Fields, "Custom.Cliente")

		value := make([]map[string]any, 0, len(req.IDs))
		for _, id := range req.IDs {
			fields := map[string]any{
				"System.Title":        fmt.Sprintf("Item %d", id),
				"System.WorkItemType": "Task",
				"System.State":        "Active",
				"Custom.Cliente":      "Orion",
			}
			if id%2 == 0 {
				fields["System.AssignedTo"] = map[string]string{"displayName": "Diego Alves", "uniqueName": "diego@example.com"}
			} else {
				fields["System.AssignedTo"] = "Elisa Rocha <elisa@example.com>"
				fields["System.Parent"] = 1
			}
			value = append(value, map[string]any{"id": id, "fields": fields})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"value": value})
	}
	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		switch r.URL.Path {
		case "/acme/Sonar Labs/_apis/wit/wiql":
			wiql(w, r)
		case "/acme/_apis/wit/workitemsbatch":
			batch(w, r)
		default:
			http.NotFound(w, r)
		}
	})
	fa.Server = httptest.NewServer(mux)
	t.Cleanup(fa.Close)
	return fa
}

func azureConfig(base string) Config {
	return Config{BaseURL: base, Organization: "acme", PAT: "pat", ClientField: "Custom.Cliente", Timeout: 5 * time.Second}
}

func TestAzureClientFetchesInBatches(t *testing.T) {
	fa := newFakeAzure(t, []int{10, 11, 12, 13, 14})
	c := NewAzureClient(azureConfig(fa.URL))

	items, err := c.FetchWorkItems(context.Background(), "Sonar Labs", 2)
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.Equal(t, int32(3), fa.batches.Load())

	assert.Equal(t, WorkItem{ID: 10, Title: "Item 10", Type: "Task", State: "Active", AssignedTo: "Diego Alves", Client: "Orion"}, items[0])
	assert.Equal(t, "Elisa Rocha", items[1].AssignedTo)
	assert.Equal(t, 1, items[1].ParentID)
}

func TestAzureClientEmptyProject(t *testing.T) {
	fa := newFakeAzure(t, nil)
	c := NewAzureClient(azureConfig(fa.URL))

	items, err := c.FetchWorkItems(context.Background(), "Sonar Labs", 200)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int32(0), fa.batches.Load())
}

func TestAzureClientRejectsBadPAT(t *testing.T) {
	fa := newFakeAzure(t, []int{1})
	cfg := azureConfig(fa.URL)
	cfg.PAT = "wrong"

	_, err := NewAzureClient(cfg).FetchWorkItems(context.Background(), "Sonar Labs", 200)
	var se *reliability.StatusError
	require.True(t, errors.As(err, &se), "error = %v", err)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

func TestAzureClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"workItems":[]}`)
	}))
	t.Cleanup(srv.Close)

	c := NewAzureClient(azureConfig(srv.URL))
	c.retry = reliability.Policy{Attempts: 3, Base: time.Millisecond, Cap: time.Millisecond}

	items, err := c.FetchWorkItems(context.Background(), "Sonar", 200)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewClientModes(t *testing.T) {
	c, err := NewClient(Config{})
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, c)

	c, err = NewClient(azureConfig("http://azure.test"))
	require.NoError(t, err)
	assert.IsType(t, &AzureClient{}, c)

	_, err = NewClient(Config{Mode: "live"})
	assert.Error(t, err)
	_, err = NewClient(Config{Mode: "jira"})
	assert.Error(t, err)
}

func TestMockClientUnknownProject(t *testing.T) {
	items, err := NewMockClient(SampleItems()).FetchWorkItems(context.Background(), "Nenhum", 200)
	require.NoError(t, err)
	assert.Empty(t, items)
}
