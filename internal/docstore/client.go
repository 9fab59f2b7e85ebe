// Package docstore lists and searches files in the shared document drive.
package docstore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FileRef is one file as returned by the drive. URLs holds every URL-like
// field of the upstream item keyed by its original field name.
type FileRef struct {
	ID           string            `json:"id,omitempty"`
	Name         string            `json:"name"`
	URLs         map[string]string `json:"urls,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

type Client interface {
	// ListRecent returns up to limit files, most recently modified first.
	ListRecent(ctx context.Context, limit int) ([]FileRef, error)
	// Search returns files matching term. No match is an empty slice.
	Search(ctx context.Context, term string) ([]FileRef, error)
}

// Check is one line of a diagnostics report.
type Check struct {
	Section string `json:"section"`
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Detail  string `json:"detail,omitempty"`
}

// Diagnoser is implemented by clients that can self-test their setup.
type Diagnoser interface {
	Diagnose(ctx context.Context) []Check
}

// Config controls client construction.
type Config struct {
	Mode         string
	BaseURL      string
	TokenURL     string
	TenantID     string
	ClientID     string
	ClientSecret string
	DriveID      string
	Timeout      time.Duration
}

func (c Config) hasCredentials() bool {
	return strings.TrimSpace(c.TenantID) != "" &&
		strings.TrimSpace(c.ClientID) != "" &&
		strings.TrimSpace(c.ClientSecret) != "" &&
		strings.TrimSpace(c.DriveID) != ""
}

func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if cfg.hasCredentials() {
			return NewGraphClient(cfg), nil
		}
		return NewMockClient(SampleFiles(time.Now())), nil
	case "live":
		if !cfg.hasCredentials() {
			return nil, fmt.Errorf("graph tenant, client id, client secret and drive id are required for live mode")
		}
		return NewGraphClient(cfg), nil
	case "mock":
		return NewMockClient(SampleFiles(time.Now())), nil
	default:
		return nil, fmt.Errorf("unsupported docstore mode %q", cfg.Mode)
	}
}
