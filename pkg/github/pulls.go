package github

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// repoPath builds /repos/{owner}/{repo}/{segments...} with every segment
// path-escaped.
func repoPath(owner, repo string, segments ...string) string {
	escaped := make([]string, 0, len(segments)+4)
	escaped = append(escaped, "", "repos", url.PathEscape(owner), url.PathEscape(repo))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return strings.Join(escaped, "/")
}

// PullRequest is the subset of the GitHub pull request resource the merge
// flow reads.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
	Head    Branch `json:"head"`
	Base    Branch `json:"base"`
	Merged  bool   `json:"merged"`
}

type Branch struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type ListPullRequestsOptions struct {
	// State is "open", "closed" or "all". Empty means GitHub's default, open.
	State string
	// Head filters by "owner:branch".
	Head string
	Base string
}

func (o ListPullRequestsOptions) query() string {
	values := url.Values{}
	if o.State != "" {
		values.Set("state", o.State)
	}
	if o.Head != "" {
		values.Set("head", o.Head)
	}
	if o.Base != "" {
		values.Set("base", o.Base)
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

func (c *Client) ListPullRequests(ctx context.Context, owner, repo string, opts ListPullRequestsOptions) ([]PullRequest, error) {
	var prs []PullRequest
	path := repoPath(owner, repo, "pulls") + opts.query()
	if err := c.do(ctx, http.MethodGet, path, nil, &prs); err != nil {
		return nil, err
	}
	return prs, nil
}

type CreatePullRequestRequest struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body,omitempty"`
}

func (c *Client) CreatePullRequest(ctx context.Context, owner, repo string, request CreatePullRequestRequest) (*PullRequest, error) {
	var pr PullRequest
	path := repoPath(owner, repo, "pulls")
	if err := c.do(ctx, http.MethodPost, path, request, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

type MergePullRequestRequest struct {
	// MergeMethod is "merge", "squash" or "rebase".
	MergeMethod   string `json:"merge_method,omitempty"`
	CommitTitle   string `json:"commit_title,omitempty"`
	CommitMessage string `json:"commit_message,omitempty"`
}

type MergeResult struct {
	SHA     string `json:"sha"`
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
}

func (c *Client) MergePullRequest(ctx context.Context, owner, repo string, number int, request MergePullRequestRequest) (*MergeResult, error) {
	var result MergeResult
	path := repoPath(owner, repo, "pulls", strconv.Itoa(number), "merge")
	if err := c.do(ctx, http.MethodPut, path, request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
