package taskerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessages(t *testing.T) {
	assert.EqualError(t, &MissingSecretError{Required: []string{"GITHUB_OWNER", "GITHUB_REPO"}}, "Missing: GITHUB_OWNER, GITHUB_REPO")
	assert.EqualError(t, &MissingCredentialError{Name: "ANTHROPIC_API_KEY", ErrCode: CodeNoAnthropic}, "Missing ANTHROPIC_API_KEY")
	assert.EqualError(t, &InvalidTaskError{Type: "deploy"}, "Unknown task type: deploy")
	assert.EqualError(t, &ExternalCallError{ErrCode: CodeAnthropicHTTP, Err: errors.New("Anthropic HTTP 500: oops")}, "Anthropic HTTP 500: oops")
}

func TestCodes(t *testing.T) {
	cases := []struct {
		err  Error
		code string
	}{
		{&MissingSecretError{}, CodeMissingSecret},
		{&InsufficientScopeError{}, CodeInsufficientScope},
		{&MissingCredentialError{ErrCode: CodeNoAnthropic}, CodeNoAnthropic},
		{&MissingCredentialError{}, CodeGeneric},
		{&ExternalCallError{ErrCode: CodeGitHubHTTP}, CodeGitHubHTTP},
		{&ExternalCallError{}, CodeGeneric},
		{&InvalidTaskError{Type: "x"}, CodeGeneric},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, c.err.Code(), "%T", c.err)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("forbidden")
	err := fmt.Errorf("merge: %w", &InsufficientScopeError{Err: cause})

	var scope *InsufficientScopeError
	assert.ErrorAs(t, err, &scope)
	assert.ErrorIs(t, err, cause)
}
