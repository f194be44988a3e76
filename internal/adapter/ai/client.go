// Package ai implements the LLM analyst and clusterer on an
// OpenAI-compatible chat completions API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/pain-radar/internal/config"
	"github.com/fairyhunter13/pain-radar/internal/domain"
	"github.com/fairyhunter13/pain-radar/internal/observability"
)

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	initial     time.Duration
	maxInterval time.Duration
	maxAttempts int
}

// NewClient builds the LLM client from config.
func NewClient(cfg config.Config) *Client {
	initial, maxInterval, attempts := cfg.GetAIBackoffConfig()
	return &Client{
		httpClient:  &http.Client{Timeout: 120 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		baseURL:     cfg.OpenAIBaseURL,
		apiKey:      cfg.OpenAIAPIKey,
		model:       cfg.OpenAIModel,
		maxTokens:   cfg.AIMaxTokens,
		initial:     initial,
		maxInterval: maxInterval,
		maxAttempts: attempts,
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatJSON sends one chat completion request in JSON mode and returns the
// message content. Only transport timeouts and connection errors are
// retried; HTTP-level failures are permanent.
func (c *Client) ChatJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY missing", domain.ErrInvalidArgument)
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0.2,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("op=ai.ChatJSON: %w", err)
	}

	var out chatResponse
	start := time.Now()
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		defer func() { _ = resp.Body.Close() }()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet := string(bodyBytes)
			if len(snippet) > 512 {
				snippet = snippet[:512]
			}
			slog.Warn("ai provider non-2xx",
				slog.Int("status", resp.StatusCode),
				slog.String("model", c.model),
				slog.String("body", snippet))
			return backoff.Permanent(fmt.Errorf("chat status %d", resp.StatusCode))
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.initial
	expo.MaxInterval = c.maxInterval
	bo := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.maxAttempts-1)), ctx)

	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		slog.Warn("ai request retry",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err))
	}

	err = backoff.RetryNotify(op, bo, notify)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.AIRequestsTotal.WithLabelValues("chat", outcome).Inc()
	observability.AIRequestDuration.WithLabelValues("chat").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("op=ai.ChatJSON: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("op=ai.ChatJSON: empty choices")
	}
	return out.Choices[0].Message.Content, nil
}

// isTransient reports whether an error is a transport timeout or a
// connection failure.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded)
}
