// Package notify delivers operator notifications: hot replies, objections
// and A/B winners.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

// Kind identifies the event behind a notification.
type Kind string

const (
	KindPositiveReply Kind = "positive_reply"
	KindObjection     Kind = "objection"
	KindABWinner      Kind = "ab_winner"
	KindQuota         Kind = "quota_exhausted"
)

// Priority levels.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// Notification is one message to an operator.
type Notification struct {
	Kind      Kind              `json:"kind"`
	OrgID     string            `json:"org_id"`
	Priority  string            `json:"priority"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a LogNotifier on the global logger.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: zap.L().With(zap.String("component", "notify"))}
}

// Notify logs n. Urgent notifications are logged at warn level.
func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	fields := []zap.Field{
		zap.String("kind", string(n.Kind)),
		zap.String("org_id", n.OrgID),
		zap.String("priority", n.Priority),
		zap.String("message", n.Message),
	}
	for k, v := range n.Details {
		fields = append(fields, zap.String(k, v))
	}
	if n.Priority == PriorityUrgent {
		l.log.Warn(n.Title, fields...)
		return nil
	}
	l.log.Info(n.Title, fields...)
	return nil
}

// WebhookNotifier posts notifications as JSON, retrying transient failures.
type WebhookNotifier struct {
	url    string
	client *http.Client
	retry  resilience.RetryConfig
}

// NewWebhookNotifier creates a WebhookNotifier. A nil client uses a 10s
// timeout.
func NewWebhookNotifier(url string, client *http.Client, retry resilience.RetryConfig) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	retry.OnRetry = resilience.RetryLogger("notify", "webhook")
	return &WebhookNotifier{url: url, client: client, retry: retry}
}

// Notify posts n to the webhook URL.
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return eris.Wrap(err, "notify: marshal notification")
	}
	return resilience.Do(ctx, w.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
		if err != nil {
			return eris.Wrap(err, "notify: create webhook request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			return resilience.NewTransientError(eris.Wrap(err, "notify: webhook request"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return resilience.StatusError("notify: webhook", resp.StatusCode, string(body))
		}
		return nil
	})
}

// Multi fans a notification out to every notifier. Failures are logged and
// the first one is returned after all notifiers ran.
type Multi []Notifier

// Notify sends n to every notifier.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var first error
	for _, x := range m {
		if err := x.Notify(ctx, n); err != nil {
			zap.L().Error("notify: delivery failed", zap.String("kind", string(n.Kind)), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(context.Context, Notification) error { return nil })
