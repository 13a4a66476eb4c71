// Package merge drives the pull-request-to-main flow against GitHub.
package merge

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chatopsdesk/chatopsdesk/internal/config"
	"github.com/chatopsdesk/chatopsdesk/internal/task"
	"github.com/chatopsdesk/chatopsdesk/internal/taskerr"
	"github.com/chatopsdesk/chatopsdesk/internal/telemetry"
	"github.com/chatopsdesk/chatopsdesk/pkg/github"
)

const (
	PRTitle     = "chore: auto PR to main"
	PRBody      = "Automated PR from Local ChatOps Desk"
	CommitTitle = "chore: auto-merge via Local ChatOps"

	// RequiredScope names the permission a rejected merge needs.
	RequiredScope = "GITHUB_PAT: repo scope"

	defaultBase = "main"
)

type Result struct {
	PRNumber int
	URL      string
}

// Meta is the result as merged into the task's meta on success.
func (r *Result) Meta() map[string]any {
	return map[string]any{"prNumber": r.PRNumber, "url": r.URL}
}

type Adapter struct {
	secrets    func() config.Secrets
	httpClient *http.Client
}

func NewAdapter(secrets func() config.Secrets, httpClient *http.Client) *Adapter {
	return &Adapter{
		secrets:    secrets,
		httpClient: httpClient,
	}
}

// PRToMain finds or opens a pull request from head into base, squash-merges
// it and then tries to delete head. An empty base means the configured
// default branch.
func (a *Adapter) PRToMain(ctx context.Context, log task.Logger, head, base string) (result *Result, err error) {
	secrets := a.secrets()
	if missing := secrets.MissingForMerge(); len(missing) > 0 {
		return nil, &taskerr.MissingSecretError{Required: missing}
	}
	if base == "" {
		base = secrets.GitHubDefaultBase
	}
	if base == "" {
		base = defaultBase
	}
	owner, repo := secrets.GitHubOwner, secrets.GitHubRepo

	ctx, span := telemetry.Tracer().Start(ctx, "github.pr_to_main",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("github.repository", owner+"/"+repo),
			attribute.String("github.head", head),
			attribute.String("github.base", base),
		))
	defer func() { telemetry.End(span, err) }()

	client, err := github.NewClient(github.Config{
		BaseURL:    secrets.GitHubBaseURL(),
		Token:      secrets.GitHubPAT,
		HTTPClient: a.httpClient,
	})
	if err != nil {
		return nil, err
	}

	log.Log(ctx, task.LevelInfo, "Checking open PR", nil)
	open, err := client.ListPullRequests(ctx, owner, repo, github.ListPullRequestsOptions{
		State: "open",
		Head:  owner + ":" + head,
		Base:  base,
	})
	if err != nil {
		return nil, githubError(err)
	}

	var pr *github.PullRequest
	if len(open) > 0 {
		pr = &open[0]
		log.Log(ctx, task.LevelInfo, fmt.Sprintf("Reusing PR #%d", pr.Number), nil)
	} else {
		log.Log(ctx, task.LevelInfo, "Creating PR", nil)
		pr, err = client.CreatePullRequest(ctx, owner, repo, github.CreatePullRequestRequest{
			Title: PRTitle,
			Head:  head,
			Base:  base,
			Body:  PRBody,
		})
		if err != nil {
			return nil, githubError(err)
		}
	}
	span.SetAttributes(attribute.Int("github.pr_number", pr.Number))

	log.Log(ctx, task.LevelInfo, fmt.Sprintf("Squash-merge PR #%d", pr.Number), nil)
	if _, err := client.MergePullRequest(ctx, owner, repo, pr.Number, github.MergePullRequestRequest{
		MergeMethod: "squash",
		CommitTitle: CommitTitle,
	}); err != nil {
		if github.IsAuthError(err) {
			return nil, &taskerr.InsufficientScopeError{Required: []string{RequiredScope}, Err: err}
		}
		return nil, githubError(err)
	}
	log.Log(ctx, task.LevelOK, fmt.Sprintf("Merged PR #%d", pr.Number), nil)

	if err := client.DeleteRef(ctx, owner, repo, "heads/"+head); err != nil {
		log.Log(ctx, task.LevelWarn, fmt.Sprintf("Could not delete branch %s (protected?)", head), map[string]any{"error": err.Error()})
	} else {
		log.Log(ctx, task.LevelOK, fmt.Sprintf("Deleted branch %s", head), nil)
	}

	return &Result{PRNumber: pr.Number, URL: pr.HTMLURL}, nil
}

func githubError(err error) error {
	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		return &taskerr.ExternalCallError{
			ErrCode:    taskerr.CodeGitHubHTTP,
			StatusCode: apiErr.StatusCode,
			Err:        apiErr,
		}
	}
	return err
}
