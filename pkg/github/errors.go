package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Message)
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	var wire struct {
		Message          string `json:"message"`
		DocumentationURL string `json:"documentation_url"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		apiErr.Message = wire.Message
		apiErr.DocumentationURL = wire.DocumentationURL
	} else {
		apiErr.Message = string(body)
	}
	return apiErr
}

func hasStatus(err error, codes ...int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.StatusCode == code {
			return true
		}
	}
	return false
}

// IsAuthError reports whether err is a 401 or 403 from GitHub, the two
// statuses a token without enough scope produces.
func IsAuthError(err error) bool {
	return hasStatus(err, http.StatusUnauthorized, http.StatusForbidden)
}

func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnprocessable reports a 422, which GitHub returns for protected or
// already-deleted refs and for unmergeable pull requests.
func IsUnprocessable(err error) bool {
	return hasStatus(err, http.StatusUnprocessableEntity)
}
