// Package taskerr is the closed set of errors a task pass can end with. The
// runner switches over these to decide between a paused and a failed task.
package taskerr

import (
	"fmt"
	"strings"
)

const (
	CodeMissingSecret     = "MISSING_SECRET"
	CodeInsufficientScope = "INSUFFICIENT_SCOPE"
	CodeNoAnthropic       = "NO_ANTHROPIC"
	CodeAnthropicHTTP     = "ANTHROPIC_HTTP"
	CodeGitHubHTTP        = "GITHUB_HTTP"
	CodeTimeout           = "TIMEOUT"
	CodeGeneric           = "ERR"
)

// Error is implemented only by the types in this package.
type Error interface {
	error
	Code() string
	sealed()
}

// MissingSecretError pauses a task until the named configuration exists.
type MissingSecretError struct {
	Required []string
}

func (e *MissingSecretError) Error() string {
	return "Missing: " + strings.Join(e.Required, ", ")
}
func (*MissingSecretError) Code() string { return CodeMissingSecret }
func (*MissingSecretError) sealed()      {}

// InsufficientScopeError pauses a task whose credential was rejected.
type InsufficientScopeError struct {
	Required []string
	Err      error
}

func (e *InsufficientScopeError) Error() string {
	if e.Err != nil {
		return "insufficient scope: " + e.Err.Error()
	}
	return "insufficient scope"
}
func (e *InsufficientScopeError) Unwrap() error { return e.Err }
func (*InsufficientScopeError) Code() string    { return CodeInsufficientScope }
func (*InsufficientScopeError) sealed()         {}

// MissingCredentialError fails a task outright. Unlike MissingSecretError
// the task does not wait for configuration.
type MissingCredentialError struct {
	Name string
	// ErrCode overrides the reported code, e.g. NO_ANTHROPIC.
	ErrCode string
}

func (e *MissingCredentialError) Error() string { return "Missing " + e.Name }
func (e *MissingCredentialError) Code() string {
	if e.ErrCode == "" {
		return CodeGeneric
	}
	return e.ErrCode
}
func (*MissingCredentialError) sealed() {}

// ExternalCallError is a failed call to a collaborator API.
type ExternalCallError struct {
	ErrCode    string
	StatusCode int
	Err        error
}

func (e *ExternalCallError) Error() string {
	if e.Err == nil {
		return e.Code()
	}
	return e.Err.Error()
}
func (e *ExternalCallError) Unwrap() error { return e.Err }
func (e *ExternalCallError) Code() string {
	if e.ErrCode == "" {
		return CodeGeneric
	}
	return e.ErrCode
}
func (*ExternalCallError) sealed() {}

// InvalidTaskError is a task the runner cannot dispatch.
type InvalidTaskError struct {
	Type   string
	Reason string
}

func (e *InvalidTaskError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("Invalid task %s: %s", e.Type, e.Reason)
	}
	return "Unknown task type: " + e.Type
}
func (*InvalidTaskError) Code() string { return CodeGeneric }
func (*InvalidTaskError) sealed()      {}
