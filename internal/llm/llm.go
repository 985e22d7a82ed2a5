// Package llm is the boundary to the external generative model.
package llm

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Client abstracts LLM providers.
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is a single prompt sent to the model.
type Request struct {
	System string
	Prompt string
	// JSON asks the provider to constrain output to a JSON object.
	JSON bool
}

// Response is the raw model reply and its accounting.
type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

var (
	// ErrTimeout means the model did not answer before the deadline.
	ErrTimeout = errors.New("model call timed out")
	// ErrUnavailable means the model could not be reached or refused the call.
	ErrUnavailable = errors.New("model unavailable")
	// ErrNotConfigured is returned by the placeholder client.
	ErrNotConfigured = errors.New("LLM provider not configured")
)

// PlaceholderClient stands in when no provider credentials are configured.
type PlaceholderClient struct{}

// Generate always fails with ErrNotConfigured, which callers treat as unavailable.
func (PlaceholderClient) Generate(context.Context, Request) (Response, error) {
	return Response{}, ErrNotConfigured
}

// ClassifyTransportError maps a provider transport error onto ErrTimeout or ErrUnavailable.
// A nil error stays nil and already classified errors pass through.
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Join(ErrTimeout, err)
	}
	if strings.Contains(err.Error(), "Client.Timeout") {
		return errors.Join(ErrTimeout, err)
	}
	return errors.Join(ErrUnavailable, err)
}
