package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ent0n29/sofia/internal/reliability"
)

const graphScope = "https://graph.microsoft.com/.default"

// GraphClient reads a Microsoft Graph drive using the client credentials
// grant.
type GraphClient struct {
	cfg     Config
	baseURL string
	creds   *clientcredentials.Config
	base    *http.Client
	authed  *http.Client
	retry   reliability.Policy
}

func NewGraphClient(cfg Config) *GraphClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = "https://login.microsoftonline.com/" + url.PathEscape(strings.TrimSpace(cfg.TenantID)) + "/oauth2/v2.0/token"
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com/v1.0"
	}
	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
	}
	base := &http.Client{Timeout: timeout}
	// The token source caches the token until shortly before it expires.
	tokens := creds.TokenSource(context.WithValue(context.Background(), oauth2.HTTPClient, base))
	return &GraphClient{
		cfg:     cfg,
		baseURL: baseURL,
		creds:   creds,
		base:    base,
		authed: &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: tokens, Base: base.Transport},
		},
		retry: reliability.DefaultPolicy,
	}
}

func (c *GraphClient) driveURL(suffix string) string {
	return c.baseURL + "/drives/" + url.PathEscape(c.cfg.DriveID) + suffix
}

func (c *GraphClient) ListRecent(ctx context.Context, limit int) ([]FileRef, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{}
	q.Set("$orderby", "lastModifiedDateTime desc")
	q.Set("$top", strconv.Itoa(limit))
	files, err := c.getItems(ctx, c.driveURL("/root/children")+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("list recent files: %w", err)
	}
	if len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func (c *GraphClient) Search(ctx context.Context, term string) ([]FileRef, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	quoted := strings.ReplaceAll(term, "'", "''")
	files, err := c.getItems(ctx, c.driveURL("/root/search(q='"+url.PathEscape(quoted)+"')"))
	if err != nil {
		return nil, fmt.Errorf("search files %q: %w", term, err)
	}
	return files, nil
}

type itemsPage struct {
	Value []map[string]json.RawMessage `json:"value"`
}

func (c *GraphClient) getItems(ctx context.Context, endpoint string) ([]FileRef, error) {
	var page itemsPage
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	out := make([]FileRef, 0, len(page.Value))
	for _, item := range page.Value {
		out = append(out, parseItem(item))
	}
	return out, nil
}

func (c *GraphClient) getJSON(ctx context.Context, endpoint string, into any) error {
	return reliability.Retry(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		res, err := c.authed.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer res.Body.Close()

		if err := reliability.CheckResponse("graph", res); err != nil {
			return err
		}
		if err := json.NewDecoder(res.Body).Decode(into); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

// parseItem keeps the name, id, modification time and every string field
// whose key mentions "url".
func parseItem(item map[string]json.RawMessage) FileRef {
	ref := FileRef{URLs: map[string]string{}}
	for key, raw := range item {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		switch {
		case key == "id":
			ref.ID = s
		case key == "name":
			ref.Name = s
		case key == "lastModifiedDateTime":
			ref.LastModified = ParseTimestamp(s)
		case strings.Contains(strings.ToLower(key), "url"):
			ref.URLs[key] = s
		}
	}
	return ref
}

// ParseTimestamp accepts ISO 8601 timestamps with or without fractional
// seconds and zone. Unparseable input yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Diagnose checks configuration, token acquisition and the drive endpoints.
func (c *GraphClient) Diagnose(ctx context.Context) []Check {
	checks := []Check{
		configCheck("GRAPH_TENANT_ID", c.cfg.TenantID),
		configCheck("GRAPH_CLIENT_ID", c.cfg.ClientID),
		configCheck("GRAPH_CLIENT_SECRET", c.cfg.ClientSecret),
		configCheck("GRAPH_DRIVE_ID", c.cfg.DriveID),
	}

	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, c.base)
	if _, err := c.creds.Token(tokenCtx); err != nil {
		checks = append(checks, Check{Section: "connectivity", Name: "token", OK: false, Detail: err.Error()})
		return checks
	}
	checks = append(checks, Check{Section: "connectivity", Name: "token", OK: true, Detail: "token obtido"})

	var drive map[string]any
	if err := c.getJSON(ctx, c.driveURL(""), &drive); err != nil {
		checks = append(checks, Check{Section: "endpoints", Name: "drive", OK: false, Detail: err.Error()})
	} else {
		name, _ := drive["name"].(string)
		checks = append(checks, Check{Section: "endpoints", Name: "drive", OK: true, Detail: name})
	}

	if files, err := c.ListRecent(ctx, 1); err != nil {
		checks = append(checks, Check{Section: "endpoints", Name: "root/children", OK: false, Detail: err.Error()})
	} else {
		checks = append(checks, Check{Section: "endpoints", Name: "root/children", OK: true, Detail: fmt.Sprintf("%d arquivo(s)", len(files))})
	}
	return checks
}

func configCheck(name, value string) Check {
	if strings.TrimSpace(value) == "" {
		return Check{Section: "config", Name: name, OK: false, Detail: "não configurado"}
	}
	return Check{Section: "config", Name: name, OK: true}
}
