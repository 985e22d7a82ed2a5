package analyses

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"legaldoc-backend/internal/llm"
	"legaldoc-backend/internal/shared/metrics"
	"legaldoc-backend/internal/shared/telemetry"
)

const llmRetryBaseDelay = 300 * time.Millisecond

// retryingLLM retries a model call once on transient transport failures.
type retryingLLM struct {
	base       llm.Client
	delay      time.Duration
	requestID  string
	documentID string
}

func newRetryingLLM(base llm.Client, delay time.Duration, documentID, requestID string) llm.Client {
	if base == nil {
		return nil
	}
	if delay <= 0 {
		delay = llmRetryBaseDelay
	}
	return retryingLLM{
		base:       base,
		delay:      delay,
		requestID:  requestID,
		documentID: documentID,
	}
}

func (r retryingLLM) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	resp, err := r.base.Generate(ctx, req)
	if err == nil || ctx.Err() != nil || !shouldRetryLLM(err) {
		return resp, err
	}

	metrics.IncModelRetry()
	telemetry.Warn("llm.retry", map[string]any{
		"attempt":     1,
		"request_id":  r.requestID,
		"document_id": r.documentID,
		"error":       sanitizeError(err),
	})
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return llm.Response{}, ctx.Err()
	}

	return r.base.Generate(ctx, req)
}

func shouldRetryLLM(err error) bool {
	if err == nil || errors.Is(err, llm.ErrNotConfigured) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "http status 429") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "client.timeout") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}
