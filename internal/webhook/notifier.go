// Package webhook delivers run-completion notifications to registered
// webhook endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/siteloom/llmstxt-worker/internal/crawl"
)

// Delivery constants shared with webhook consumers.
const (
	EventRunComplete = "run.complete"
	HeaderSecret     = "X-Webhook-Secret"
	DefaultTimeout   = 30 * time.Second
	UserAgent        = "llmstxt-worker/1.0"

	maxLoggedBody = 1000
)

// Payload is the JSON body POSTed to each webhook.
type Payload struct {
	CreatedAt   string `json:"created_at"`
	LLMSTextURL string `json:"llms_txt_url"`
}

// Notifier loads a project's active webhooks and calls each one. Every
// attempt, successful or not, is recorded as a webhook event. Delivery
// failures are soft: they are logged and never fail the run.
type Notifier struct {
	repo   crawl.Repository
	client *http.Client
	clock  crawl.Clock
	logger *zap.Logger
}

// NewNotifier constructs a Notifier.
func NewNotifier(repo crawl.Repository, client *http.Client, clock crawl.Clock, logger *zap.Logger) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{repo: repo, client: client, clock: clock, logger: logger}
}

// NotifyProject calls all active webhooks for a project with the generated
// artifact URL.
func (n *Notifier) NotifyProject(ctx context.Context, projectID, runID, llmsTextURL string) {
	webhooks, err := n.repo.GetActiveWebhooks(ctx, projectID)
	if err != nil {
		n.logger.Error("load webhooks failed", zap.String("project_id", projectID), zap.Error(err))
		return
	}
	if len(webhooks) == 0 {
		n.logger.Info("no active webhooks", zap.String("project_id", projectID))
		return
	}

	payload := Payload{
		CreatedAt:   n.clock.Now().Format(time.RFC3339),
		LLMSTextURL: llmsTextURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("marshal webhook payload failed", zap.Error(err))
		return
	}

	for _, hook := range webhooks {
		n.callOne(ctx, hook, body, runID)
	}
}

func (n *Notifier) callOne(ctx context.Context, hook crawl.Webhook, body []byte, runID string) {
	n.logger.Info("calling webhook",
		zap.String("webhook_id", hook.ID),
		zap.String("url", hook.URL),
		zap.String("run_id", runID),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		n.logEvent(ctx, hook.ID, body, 0, err.Error())
		n.logger.Error("build webhook request failed", zap.String("webhook_id", hook.ID), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if hook.Secret != "" {
		req.Header.Set(HeaderSecret, hook.Secret)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logEvent(ctx, hook.ID, body, 0, err.Error())
		n.logger.Error("webhook request failed", zap.String("webhook_id", hook.ID), zap.Error(err))
		return
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			n.logger.Warn("close webhook response failed", zap.Error(closeErr))
		}
	}()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	n.logEvent(ctx, hook.ID, body, resp.StatusCode, string(respBody))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		n.logger.Info("webhook delivered",
			zap.String("webhook_id", hook.ID),
			zap.Int("status", resp.StatusCode),
		)
	} else {
		n.logger.Warn("webhook returned error status",
			zap.String("webhook_id", hook.ID),
			zap.Int("status", resp.StatusCode),
		)
	}
}

func (n *Notifier) logEvent(ctx context.Context, webhookID string, payload []byte, status int, responseBody string) {
	event := crawl.WebhookEvent{
		WebhookID:    webhookID,
		EventType:    EventRunComplete,
		Payload:      payload,
		StatusCode:   status,
		ResponseBody: responseBody,
		AttemptedAt:  n.clock.Now(),
	}
	if err := n.repo.LogWebhookEvent(ctx, event); err != nil {
		n.logger.Error("log webhook event failed", zap.String("webhook_id", webhookID), zap.Error(err))
	}
}
