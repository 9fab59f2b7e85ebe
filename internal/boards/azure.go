package boards

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ent0n29/sofia/internal/reliability"
)

const (
	apiVersion = "7.1"
	wiqlQuery  = "SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = @project ORDER BY [System.ChangedDate] DESC"
)

// AzureClient reads work items through the Azure DevOps REST API using a
// personal access token.
type AzureClient struct {
	cfg     Config
	baseURL string
	http    *http.Client
	retry   reliability.Policy
}

func NewAzureClient(cfg Config) *AzureClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://dev.azure.com"
	}
	return &AzureClient{
		cfg:     cfg,
		baseURL: base + "/" + url.PathEscape(strings.TrimSpace(cfg.Organization)),
		http:    &http.Client{Timeout: timeout},
		retry:   reliability.DefaultPolicy,
	}
}

type wiqlResponse struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

type batchRequest struct {
	IDs    []int    `json:"ids"`
	Fields []string `json:"fields"`
}

type batchResponse struct {
	Value []struct {
		ID     int                        `json:"id"`
		Fields map[string]json.RawMessage `json:"fields"`
	} `json:"value"`
}

func (c *AzureClient) FetchWorkItems(ctx context.Context, project string, batchSize int) ([]WorkItem, error) {
	project = strings.TrimSpace(project)
	if project == "" {
		return nil, fmt.Errorf("fetch work items: project is required")
	}
	if batchSize <= 0 {
		batchSize = 200
	}

	var ids wiqlResponse
	endpoint := c.baseURL + "/" + url.PathEscape(project) + "/_apis/wit/wiql?api-version=" + apiVersion
	if err := c.postJSON(ctx, endpoint, map[string]string{"query": wiqlQuery}, &ids); err != nil {
		return nil, fmt.Errorf("query work item ids for %s: %w", project, err)
	}

	all := make([]int, 0, len(ids.WorkItems))
	for _, wi := range ids.WorkItems {
		all = append(all, wi.ID)
	}

	items := make([]WorkItem, 0, len(all))
	for start := 0; start < len(all); start += batchSize {
		end := start + batchSize
		if end > len(all) {
			end = len(all)
		}
		batch, err := c.fetchBatch(ctx, all[start:end])
		if err != nil {
			return nil, fmt.Errorf("fetch work items %d-%d for %s: %w", start, end, project, err)
		}
		items = append(items, batch...)
	}
	return items, nil
}

func (c *AzureClient) fetchBatch(ctx context.Context, ids []int) ([]WorkItem, error) {
	fields := []string{"System.Id", "System.Title", "System.WorkItemType", "System.State", "System.AssignedTo", "System.Parent"}
	clientField := strings.TrimSpace(c.cfg.ClientField)
	if clientField != "" {
		fields = append(fields, clientField)
	}

	var res batchResponse
	endpoint := c.baseURL + "/_apis/wit/workitemsbatch?api-version=" + apiVersion
	if err := c.postJSON(ctx, endpoint, batchRequest{IDs: ids, Fields: fields}, &res); err != nil {
		return nil, err
	}

	out := make([]WorkItem, 0, len(res.Value))
	for _, v := range res.Value {
		out = append(out, WorkItem{
			ID:         v.ID,
			Title:      stringField(v.Fields["System.Title"]),
			Type:       stringField(v.Fields["System.WorkItemType"]),
			State:      stringField(v.Fields["System.State"]),
			AssignedTo: identityField(v.Fields["System.AssignedTo"]),
			ParentID:   intField(v.Fields["System.Parent"]),
			Client:     stringField(v.Fields[clientField]),
		})
	}
	return out, nil
}

func (c *AzureClient) postJSON(ctx context.Context, endpoint string, body, into any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return reliability.Retry(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.SetBasicAuth("", c.cfg.PAT)

		res, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer res.Body.Close()

		if err := reliability.CheckResponse("azure devops", res); err != nil {
			return err
		}
		if err := json.NewDecoder(res.Body).Decode(into); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func intField(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	return n
}

// identityField reads System.AssignedTo, which is an identity object in
// current API versions and a "Name <email>" string in older ones.
func identityField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var ident struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(raw, &ident); err == nil {
		return strings.TrimSpace(ident.DisplayName)
	}
	s := stringField(raw)
	if i := strings.Index(s, "<"); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}
