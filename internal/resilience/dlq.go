package resilience

import (
	"time"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Error classes stored on dead letters.
const (
	ErrorTransient = "transient"
	ErrorPermanent = "permanent"
)

// DeadLetter is a contact whose pipeline run failed and may be replayed.
type DeadLetter struct {
	ID          string        `json:"id"`
	OrgID       string        `json:"org_id"`
	Contact     model.Contact `json:"contact"`
	Stage       string        `json:"stage,omitempty"`
	Error       string        `json:"error"`
	ErrorType   string        `json:"error_type"`
	RetryCount  int           `json:"retry_count"`
	MaxRetries  int           `json:"max_retries"`
	NextRetryAt time.Time     `json:"next_retry_at"`
	CreatedAt   time.Time     `json:"created_at"`
}

// CanRetry reports whether the entry is transient and has retries left.
func (d *DeadLetter) CanRetry() bool {
	return d.ErrorType == ErrorTransient && d.RetryCount < d.MaxRetries
}

// Backoff schedules the next replay using the retry policy's curve.
func (d *DeadLetter) Backoff(cfg RetryConfig, now time.Time) {
	cfg = applyDefaults(cfg)
	cfg.JitterFraction = 0
	d.NextRetryAt = now.Add(computeBackoff(d.RetryCount, cfg))
}

// ClassifyError returns ErrorTransient or ErrorPermanent.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return ErrorTransient
	}
	return ErrorPermanent
}
