package github

import (
	"context"
	"net/http"
	"strings"
)

// DeleteRef deletes a git reference. ref is relative to refs/, for example
// "heads/feature-x". Each slash-separated part of ref is escaped on its own.
func (c *Client) DeleteRef(ctx context.Context, owner, repo, ref string) error {
	parts := strings.Split(ref, "/")
	return c.do(ctx, http.MethodDelete, repoPath(owner, repo, append([]string{"git", "refs"}, parts...)...), nil, nil)
}
