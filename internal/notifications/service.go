// Package notifications pushes workflow outcome notifications over ntfy.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bookforge/internal/config"
)

const userAgent = "BookForge/0.1.0"

// Service is the notification surface the workflow manager reports through.
type Service interface {
	WorkflowCompleted(ctx context.Context, title, outputPath string) error
	WorkflowFailed(ctx context.Context, title, reason string) error
	Test(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when a topic is
// configured, a no-op otherwise.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) WorkflowCompleted(ctx context.Context, title, outputPath string) error {
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Audiobook ready: %s", title)
	if outputPath = strings.TrimSpace(outputPath); outputPath != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, outputPath)
	}
	return n.send(ctx, payload{
		title:    "BookForge - Complete",
		message:  message,
		tags:     []string{"bookforge", "workflow", "completed"},
		priority: "high",
	})
}

func (n *ntfyService) WorkflowFailed(ctx context.Context, title, reason string) error {
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Workflow failed: %s", title)
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("%s\n%s", message, reason)
	}
	return n.send(ctx, payload{
		title:    "BookForge - Failed",
		message:  message,
		tags:     []string{"bookforge", "workflow", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) Test(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "BookForge - Test",
		message:  "Notification system test",
		tags:     []string{"bookforge", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) WorkflowCompleted(context.Context, string, string) error { return nil }
func (noopService) WorkflowFailed(context.Context, string, string) error    { return nil }
func (noopService) Test(context.Context) error                              { return nil }
