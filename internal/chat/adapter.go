// Package chat sends task prompts to the Anthropic Messages API.
package chat

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chatopsdesk/chatopsdesk/internal/config"
	"github.com/chatopsdesk/chatopsdesk/internal/taskerr"
	"github.com/chatopsdesk/chatopsdesk/internal/telemetry"
	"github.com/chatopsdesk/chatopsdesk/pkg/anthropic"
)

const (
	MaxTokens = 800
	NoContent = "(no content)"
)

type Adapter struct {
	secrets    func() config.Secrets
	httpClient *http.Client
}

// NewAdapter reads secrets on every call so that a reloaded dotenv file
// takes effect for the next task.
func NewAdapter(secrets func() config.Secrets, httpClient *http.Client) *Adapter {
	return &Adapter{
		secrets:    secrets,
		httpClient: httpClient,
	}
}

// Complete sends prompt as a single user message and returns the reply
// text. A missing API key fails without any network call.
func (a *Adapter) Complete(ctx context.Context, prompt string) (reply string, err error) {
	secrets := a.secrets()
	if secrets.AnthropicAPIKey == "" {
		return "", &taskerr.MissingCredentialError{Name: config.RequiredAnthropic, ErrCode: taskerr.CodeNoAnthropic}
	}
	model := secrets.Model()

	ctx, span := telemetry.Tracer().Start(ctx, "anthropic.messages",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("anthropic.model", model)))
	defer func() { telemetry.End(span, err) }()

	client, err := anthropic.NewClient(anthropic.Config{
		APIKey:     secrets.AnthropicAPIKey,
		BaseURL:    secrets.AnthropicBaseURL,
		HTTPClient: a.httpClient,
	})
	if err != nil {
		return "", err
	}

	resp, err := client.CreateMessage(ctx, anthropic.MessagesRequest{
		Model:     model,
		MaxTokens: MaxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) {
			span.SetAttributes(attribute.Int("http.status_code", apiErr.StatusCode))
			return "", &taskerr.ExternalCallError{
				ErrCode:    taskerr.CodeAnthropicHTTP,
				StatusCode: apiErr.StatusCode,
				Err:        apiErr,
			}
		}
		return "", err
	}

	text, ok := resp.FirstText()
	if !ok {
		return NoContent, nil
	}
	return text, nil
}
