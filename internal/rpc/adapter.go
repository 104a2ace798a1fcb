package rpc

import "context"

// CreateIssueParams are the inputs for create_issue. Only the upstream
// tracker decides whether a missing field is an error; the bridge forwards
// whatever it received.
type CreateIssueParams struct {
	ProjectKey  string `json:"projectKey"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	IssueType   string `json:"issuetype,omitempty"`
}

type UpdateIssueParams struct {
	IssueKey string                 `json:"issueKey"`
	Fields   map[string]interface{} `json:"fields"`
}

type GetIssueParams struct {
	IssueKey string `json:"issueKey"`
}

type SearchIssuesParams struct {
	JQL        string `json:"jql"`
	MaxResults int    `json:"maxResults,omitempty"`
}

// Adapter translates one RPC method invocation into one REST call against
// the issue tracker. Results are the upstream payloads, unshaped.
type Adapter interface {
	CreateIssue(ctx context.Context, p CreateIssueParams) (interface{}, error)
	UpdateIssue(ctx context.Context, p UpdateIssueParams) (interface{}, error)
	GetIssue(ctx context.Context, p GetIssueParams) (interface{}, error)
	SearchIssues(ctx context.Context, p SearchIssuesParams) (interface{}, error)
}
