package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

const maxRetries = 2

// doWithRetry executes an HTTP request, retrying transient failures
// (network errors, 5xx, 429) with exponential backoff. buildReq runs
// once per attempt so the request body reader is always fresh.
func doWithRetry(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err == nil && !retryable(resp.StatusCode) {
			return resp, nil
		}
		if err == nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			err = fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
		}
		if attempt == maxRetries {
			return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
		}

		// Exponential backoff with jitter to prevent thundering herd.
		base := time.Duration((attempt+1)*(attempt+1)) * time.Second
		delay := base + time.Duration(rand.Int64N(int64(base/2+1)))
		logger.Warn("transient model failure, retrying", "attempt", attempt+1, "backoff", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// retryable reports whether the status marks a transient server
// condition: any 5xx or the 429 rate limit.
func retryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}
