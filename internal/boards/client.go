// Package boards fetches Azure DevOps work items and answers analytic
// questions over them.
package boards

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// WorkItem is one board item as returned by the upstream service.
type WorkItem struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	State      string `json:"state"`
	AssignedTo string `json:"assigned_to,omitempty"`
	Client     string `json:"client,omitempty"`
	ParentID   int    `json:"parent_id,omitempty"`
}

type Client interface {
	// FetchWorkItems returns every work item of project, reading details in
	// batches of batchSize. An unknown project yields an empty slice.
	FetchWorkItems(ctx context.Context, project string, batchSize int) ([]WorkItem, error)
}

// Config controls client construction.
type Config struct {
	Mode         string
	BaseURL      string
	Organization string
	PAT          string
	// ClientField is the custom field holding the client name, for example
	// "Custom.Cliente". Empty disables the lookup.
	ClientField string
	Timeout     time.Duration
}

func (c Config) hasCredentials() bool {
	return strings.TrimSpace(c.Organization) != "" && strings.TrimSpace(c.PAT) != ""
}

func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if cfg.hasCredentials() {
			return NewAzureClient(cfg), nil
		}
		return NewMockClient(SampleItems()), nil
	case "live":
		if !cfg.hasCredentials() {
			return nil, fmt.Errorf("azure devops organization and PAT are required for live mode")
		}
		return NewAzureClient(cfg), nil
	case "mock":
		return NewMockClient(SampleItems()), nil
	default:
		return nil, fmt.Errorf("unsupported boards mode %q", cfg.Mode)
	}
}
