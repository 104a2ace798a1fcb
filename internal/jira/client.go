package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/issuekit/jira-bridge/internal/config"
	"github.com/issuekit/jira-bridge/internal/logger"
	"github.com/issuekit/jira-bridge/internal/rpc"
)

const (
	apiPrefix         = "/rest/api/2"
	defaultIssueType  = "Task"
	defaultMaxResults = 50
)

// Client performs authenticated REST calls against a Jira-style issue
// tracker. One Client serves one RPC call; nothing is cached or pooled
// between calls beyond the transport defaults.
type Client struct {
	baseURL    string
	username   string
	apiToken   string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient builds a Client from the injected Config. It satisfies
// rpc.AdapterFactory.
func NewClient(cfg *config.Config) rpc.Adapter {
	return &Client{
		baseURL:    cfg.BaseURL,
		username:   cfg.Username,
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{},
		log:        logger.ForComponent("jira"),
	}
}

// CreateIssue performs POST /issue with the nested fields body the tracker
// expects. The created-issue payload comes back unshaped.
func (c *Client) CreateIssue(ctx context.Context, p rpc.CreateIssueParams) (interface{}, error) {
	issueType := p.IssueType
	if issueType == "" {
		issueType = defaultIssueType
	}

	fields := map[string]interface{}{
		"project":   map[string]string{"key": p.ProjectKey},
		"summary":   p.Summary,
		"issuetype": map[string]string{"name": issueType},
	}
	if p.Description != "" {
		fields["description"] = p.Description
	}

	return c.doRequest(ctx, http.MethodPost, "/issue", map[string]interface{}{"fields": fields})
}

// UpdateIssue performs PUT /issue/{key}. Jira answers 204 No Content on
// success, which normalizes to {ok: true}.
func (c *Client) UpdateIssue(ctx context.Context, p rpc.UpdateIssueParams) (interface{}, error) {
	path := "/issue/" + url.PathEscape(p.IssueKey)
	return c.doRequest(ctx, http.MethodPut, path, map[string]interface{}{"fields": p.Fields})
}

func (c *Client) GetIssue(ctx context.Context, p rpc.GetIssueParams) (interface{}, error) {
	path := "/issue/" + url.PathEscape(p.IssueKey)
	return c.doRequest(ctx, http.MethodGet, path, nil)
}

// SearchIssues performs POST /search with a JQL body. MaxResults defaults
// to 50; pagination beyond what the tracker returns is out of scope.
func (c *Client) SearchIssues(ctx context.Context, p rpc.SearchIssuesParams) (interface{}, error) {
	maxResults := p.MaxResults
	if maxResults == 0 {
		maxResults = defaultMaxResults
	}

	body := map[string]interface{}{
		"jql":        p.JQL,
		"maxResults": maxResults,
	}
	return c.doRequest(ctx, http.MethodPost, "/search", body)
}

// doRequest performs one REST call and translates the response into a plain
// result value. A 204 or empty successful body becomes {ok: true}; any other
// successful body is returned as decoded JSON; a non-2xx status becomes an
// error carrying the upstream status and body text.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (interface{}, error) {
	endpoint := c.baseURL + apiPrefix + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.SetBasicAuth(c.username, c.apiToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug("upstream request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to tracker failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracker response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := strings.TrimSpace(string(respBody))
		if detail == "" {
			detail = resp.Status
		}
		return nil, fmt.Errorf("tracker returned %d: %s", resp.StatusCode, detail)
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return map[string]interface{}{"ok": true}, nil
	}

	var result interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode tracker response: %w", err)
	}

	return result, nil
}
