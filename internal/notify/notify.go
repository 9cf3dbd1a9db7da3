// Package notify posts run outcomes to a Slack webhook. A nil webhook
// configuration degrades to a no-op notifier so callers never branch.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"packmule/internal/catalog"
	"packmule/internal/logging"
)

// Status classifies a notification and selects its accent color.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusWarning Status = "WARNING"
	StatusError   Status = "ERROR"
)

func (s Status) color() string {
	switch s {
	case StatusSuccess:
		return "00FF00"
	case StatusWarning:
		return "E8793B"
	default:
		return "FF0000"
	}
}

// Notifier delivers a formatted message. Implementations must be safe to
// call with an empty titleLink.
type Notifier interface {
	Notify(ctx context.Context, status Status, title, body, titleLink string) error
}

// New returns a Slack notifier for the webhook URL, or a no-op notifier
// when the URL is empty.
func New(webhookURL string, logger *slog.Logger) Notifier {
	if webhookURL == "" {
		return noopNotifier{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &slackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Status, string, string, string) error { return nil }

type slackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

type attachment struct {
	Color     string `json:"color"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	TitleLink string `json:"title_link,omitempty"`
}

func (s *slackNotifier) Notify(ctx context.Context, status Status, title, body, titleLink string) error {
	if titleLink != "" {
		titleLink = catalog.EnsureHTTPS(titleLink)
	}
	payload := map[string][]attachment{
		"attachments": {{
			Color:     status.color(),
			Title:     fmt.Sprintf("%s: %s", status, title),
			Text:      body,
			TitleLink: titleLink,
		}},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode > 204 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("post notification: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	s.logger.Info("posted notification", "status", string(status), "title", title)
	return nil
}
