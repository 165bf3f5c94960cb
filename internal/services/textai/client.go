package textai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bookforge/internal/config"
	"bookforge/internal/logging"
	"bookforge/internal/services"
)

const (
	maxAttempts       = 3
	baseRetryDelay    = 2 * time.Second
	maxResponseBytes  = 4 << 20
	completionsSuffix = "/chat/completions"
)

// Client is a minimal chat-completions client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client from AI configuration.
func NewClient(cfg config.AI, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "textai", "new_client",
			"AI API key is not configured", nil)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "textai"),
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one system+user exchange and returns the assistant reply.
// Transient failures (429, 5xx, network errors) are retried with backoff.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "textai", "complete",
			"encode chat request", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := baseRetryDelay * time.Duration(1<<(attempt-2))
			c.logger.Warn("retrying chat completion",
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		reply, retryable, err := c.complete(ctx, payload)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}
	return "", services.Wrap(services.ErrTransient, "textai", "complete",
		fmt.Sprintf("chat completion failed after %d attempts", maxAttempts), lastErr)
}

func (c *Client) complete(ctx context.Context, payload []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+completionsSuffix, bytes.NewReader(payload))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", false, err
		}
		return "", true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", true, err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, truncate(body, 200))
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, services.Wrap(services.ErrExternalTool, "textai", "complete",
			fmt.Sprintf("chat endpoint returned %d", resp.StatusCode),
			errors.New(truncate(body, 200)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, services.Wrap(services.ErrExternalTool, "textai", "complete",
			"decode chat response", err)
	}
	if parsed.Error != nil {
		return "", false, services.Wrap(services.ErrExternalTool, "textai", "complete",
			"chat endpoint error", errors.New(parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", false, services.Wrap(services.ErrExternalTool, "textai", "complete",
			"chat response contained no choices", nil)
	}
	return parsed.Choices[0].Message.Content, false, nil
}

func truncate(body []byte, limit int) string {
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
