package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"legaldoc-backend/internal/llm"
	"legaldoc-backend/internal/shared/telemetry"
)

var apiURL = "https://api.openai.com/v1/chat/completions"

const maxErrorBody = 4 << 10

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client. timeout bounds each HTTP call.
func NewClient(apiKey, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Generate sends one chat completion. Models that reject temperature 0 are retried once without it.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	withTemp := !noTemperatureZero(c.model)
	resp, err := c.complete(ctx, req, withTemp)
	if err != nil && withTemp && isTemperatureUnsupported(err) {
		telemetry.Info("llm.openai.retry_without_temperature", map[string]any{"model": c.model})
		resp, err = c.complete(ctx, req, false)
	}
	return resp, err
}

func (c *Client) complete(ctx context.Context, req llm.Request, withTemp bool) (llm.Response, error) {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
	}
	if req.JSON {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	if withTemp {
		temp := float32(0)
		reqBody.Temperature = &temp
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return llm.Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return llm.Response{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return llm.Response{}, fmt.Errorf("openai request: %w", llm.ClassifyTransportError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Response{}, fmt.Errorf("openai read body: %w", llm.ClassifyTransportError(err))
	}

	var parsed chatResponse
	if jsonErr := json.Unmarshal(body, &parsed); jsonErr != nil && resp.StatusCode < 300 {
		return llm.Response{}, fmt.Errorf("%w: openai response parse: %v", llm.ErrUnavailable, jsonErr)
	}
	if parsed.Error != nil {
		return llm.Response{}, fmt.Errorf("%w: openai error: %s (%s) http status %d",
			llm.ErrUnavailable, parsed.Error.Message, parsed.Error.Type, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return llm.Response{}, fmt.Errorf("%w: openai http status %d: %s",
			llm.ErrUnavailable, resp.StatusCode, truncate(string(body), maxErrorBody))
	}
	if len(parsed.Choices) == 0 {
		return llm.Response{}, fmt.Errorf("%w: openai response missing choices", llm.ErrUnavailable)
	}

	out := llm.Response{
		Text:  strings.TrimSpace(parsed.Choices[0].Message.Content),
		Model: parsed.Model,
	}
	if out.Model == "" {
		out.Model = c.model
	}
	if parsed.Usage != nil {
		out.PromptTokens = parsed.Usage.PromptTokens
		out.CompletionTokens = parsed.Usage.CompletionTokens
	}
	logUsage(out, time.Since(start))
	return out, nil
}

func logUsage(resp llm.Response, elapsed time.Duration) {
	telemetry.Info("llm.response", map[string]any{
		"provider":          "openai",
		"model":             resp.Model,
		"prompt_tokens":     resp.PromptTokens,
		"completion_tokens": resp.CompletionTokens,
		"duration_ms":       elapsed.Milliseconds(),
	})
}

// noTemperatureZero reports whether the model is known to reject temperature 0.
// LLM_NO_TEMP0_MODELS extends the built-in list with a comma-separated set of model names.
func noTemperatureZero(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	if isGPT5(m) {
		return true
	}
	for _, name := range strings.Split(os.Getenv("LLM_NO_TEMP0_MODELS"), ",") {
		if n := strings.ToLower(strings.TrimSpace(name)); n != "" && n == m {
			return true
		}
	}
	return false
}

func isTemperatureUnsupported(err error) bool {
	if err == nil || !errors.Is(err, llm.ErrUnavailable) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "temperature") && (strings.Contains(msg, "unsupported") || strings.Contains(msg, "does not support"))
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ llm.Client = (*Client)(nil)
