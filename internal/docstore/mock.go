package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// MockClient serves a fixed in-memory file list.
type MockClient struct {
	files []FileRef
}

func NewMockClient(files []FileRef) *MockClient {
	sorted := append([]FileRef(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastModified.After(sorted[j].LastModified)
	})
	return &MockClient{files: sorted}
}

// SampleFiles is the demo drive used when no Graph credentials are set.
func SampleFiles(now time.Time) []FileRef {
	mk := func(name string, age time.Duration) FileRef {
		return FileRef{
			Name:         name,
			URLs:         map[string]string{"webUrl": "https://sharepoint.example/sites/sonar/" + name},
			LastModified: now.Add(-age).Truncate(time.Minute),
		}
	}
	return []FileRef{
		mk("relatorio_final.pdf", 2*time.Hour),
		mk("Ata Reunião Semanal.docx", 26*time.Hour),
		mk("planilha_custos_2026.xlsx", 50*time.Hour),
		mk("Apresentação Comercial.pptx", 74*time.Hour),
		mk("onboarding.md", 200*time.Hour),
	}
}

func (m *MockClient) ListRecent(ctx context.Context, limit int) ([]FileRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > len(m.files) {
		limit = len(m.files)
	}
	return append([]FileRef(nil), m.files[:limit]...), nil
}

func (m *MockClient) Search(ctx context.Context, term string) ([]FileRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return nil, nil
	}
	var out []FileRef
	for _, f := range m.files {
		if strings.Contains(strings.ToLower(f.Name), needle) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *MockClient) Diagnose(context.Context) []Check {
	return []Check{
		{Section: "config", Name: "mode", OK: true, Detail: "mock"},
		{Section: "endpoints", Name: "files", OK: len(m.files) > 0, Detail: fmt.Sprintf("%d arquivo(s)", len(m.files))},
	}
}
