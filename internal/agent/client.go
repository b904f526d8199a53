package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
)

const (
	defaultRequestTimeout = 60 * time.Second
	maxResponseBodySize   = 4 << 20
	maxErrorBodyLog       = 512
)

// CompletionRequest is one call to the text-generation service.
type CompletionRequest struct {
	Messages    []domain.ChatMessage
	MaxTokens   int
	Temperature float64
}

// Completer sends a conversation to the text-generation service and returns
// the text of the first choice.
type Completer interface {
	Complete(ctx context.Context, cfg *domain.AIConfig, req CompletionRequest) (string, error)
}

type completionBody struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
}

type completionEnvelope struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// HTTPCompleter talks to an OpenAI-compatible chat completions endpoint.
type HTTPCompleter struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPCompleter creates a completer whose calls are bounded by timeout.
func NewHTTPCompleter(timeout time.Duration) *HTTPCompleter {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPCompleter{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Complete posts the conversation to cfg.Endpoint with cfg.APIKey as bearer
// token. Every failure, including timeouts, is an *domain.ExternalServiceError.
// A successful reply without choices yields "".
func (c *HTTPCompleter) Complete(ctx context.Context, cfg *domain.AIConfig, req CompletionRequest) (string, error) {
	payload, err := json.Marshal(completionBody{
		Model:       cfg.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &domain.ExternalServiceError{Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("request timed out after %s: %w", c.timeout, err)
		}
		slog.Warn("Text generation request failed", "user_id", cfg.UserID, "model", cfg.Model, "error", err)
		return "", &domain.ExternalServiceError{Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("Failed to close completion response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return "", &domain.ExternalServiceError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("Text generation service returned an error",
			"user_id", cfg.UserID,
			"status", resp.StatusCode,
			"body", truncate(string(body), maxErrorBodyLog),
		)
		return "", &domain.ExternalServiceError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var env completionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", &domain.ExternalServiceError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}

	slog.Info("Text generation completed",
		"user_id", cfg.UserID,
		"model", cfg.Model,
		"choices", len(env.Choices),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if len(env.Choices) == 0 {
		return "", nil
	}
	return env.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
