// Package notifications pushes terminal job events to an ntfy topic.
package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"autodub/internal/config"
	"autodub/internal/jobs"
	"autodub/internal/logging"
)

const userAgent = "autodub/0.1.0"

// NewService builds a notifier backed by ntfy when a topic is configured.
// Without a topic, a noop implementation is returned.
func NewService(cfg *config.Config, logger *slog.Logger) jobs.Notifier {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		sendCompletion: cfg.Notifications.Completion,
		sendErrors:     cfg.Notifications.Errors,
		logger:         logging.NewComponentLogger(logger, "notifications"),
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	sendCompletion bool
	sendErrors     bool
	logger         *slog.Logger
}

// JobCompleted announces a finished dub. Delivery failures are logged,
// never surfaced; notifications are best-effort.
func (n *ntfyService) JobCompleted(ctx context.Context, job jobs.Job) {
	if !n.sendCompletion {
		return
	}
	data := payload{
		title: "Autodub - Job Completed",
		message: fmt.Sprintf("Dubbed %s to %s\nOutput: %s",
			strings.TrimSpace(job.Source), job.TargetLanguage, job.OutputPath),
		tags: []string{"autodub", "job", "completed"},
	}
	if err := n.send(ctx, data); err != nil {
		n.logger.Warn("could not deliver completion notification",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
	}
}

// JobFailed announces a failed dub.
func (n *ntfyService) JobFailed(ctx context.Context, job jobs.Job) {
	if !n.sendErrors {
		return
	}
	data := payload{
		title: "Autodub - Job Failed",
		message: fmt.Sprintf("Dubbing %s failed at %d%%: %s",
			strings.TrimSpace(job.Source), job.Progress, job.Error),
		tags:     []string{"autodub", "job", "failed"},
		priority: "high",
	}
	if err := n.send(ctx, data); err != nil {
		n.logger.Warn("could not deliver failure notification",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
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
	if data.priority != "" {
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

func (noopService) JobCompleted(context.Context, jobs.Job) {}

func (noopService) JobFailed(context.Context, jobs.Job) {}
