package boards

import (
	"context"
	"strings"
)

// MockClient serves fixed work items keyed by project name.
type MockClient struct {
	projects map[string][]WorkItem
}

func NewMockClient(projects map[string][]WorkItem) *MockClient {
	byName := make(map[string][]WorkItem, len(projects))
	for name, items := range projects {
		byName[strings.ToLower(strings.TrimSpace(name))] = append([]WorkItem(nil), items...)
	}
	return &MockClient{projects: byName}
}

func (m *MockClient) FetchWorkItems(ctx context.Context, project string, _ int) ([]WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items := m.projects[strings.ToLower(strings.TrimSpace(project))]
	return append([]WorkItem(nil), items...), nil
}

// SampleItems is the demo dataset used when no Azure DevOps credentials are set.
func SampleItems() map[string][]WorkItem {
	return map[string][]WorkItem{
		"Sonar": {
			{ID: 100, Title: "Implantação Cliente Atlas", Type: "Epic", State: "Active", Client: "Atlas"},
			{ID: 101, Title: "Migrar servidor de arquivos", Type: "Task", State: "Active", AssignedTo: "Ana Souza", ParentID: 100},
			{ID: 102, Title: "Revisar backups noturnos", Type: "Task", State: "New", AssignedTo: "Ana Souza", ParentID: 100},
			{ID: 103, Title: "Falha no login da VPN", Type: "Bug", State: "Active", AssignedTo: "Bruno Lima"},
			{ID: 104, Title: "Atualizar inventário", Type: "Task", State: "Closed", AssignedTo: "Bruno Lima"},
			{ID: 200, Title: "Suporte Cliente Boreal", Type: "Epic", State: "New", Client: "Boreal"},
			{ID: 201, Title: "Configurar impressoras", Type: "Task", State: "New", AssignedTo: "Carla Dias", ParentID: 200},
		},
		"Sonar Labs": {
			{ID: 300, Title: "Plataforma Orion", Type: "Epic", State: "Active", Client: "Orion"},
			{ID: 301, Title: "Tela de cadastro", Type: "User Story", State: "Active", AssignedTo: "Diego Alves", ParentID: 300},
			{ID: 302, Title: "Erro ao salvar rascunho", Type: "Bug", State: "New", AssignedTo: "Diego Alves", ParentID: 300},
			{ID: 303, Title: "Pipeline de deploy", Type: "Task", State: "Done", AssignedTo: "Elisa Rocha"},
		},
	}
}
