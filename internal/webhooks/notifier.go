// Package webhooks delivers signed completion callbacks for solve runs.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nearp/internal/metrics"
)

// Payload is the JSON body of every delivery.
type Payload struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`
	Data any       `json:"data"`
}

type Notifier struct {
	HTTP        *http.Client
	Secret      string
	MaxAttempts int
	// Backoff returns the wait before retry n (0-based). Defaults to nextBackoff.
	Backoff func(n int) time.Duration
	Log     *zap.Logger
}

func NewNotifier(secret string, maxAttempts int, timeout time.Duration, log *zap.Logger) *Notifier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		HTTP:        &http.Client{Timeout: timeout},
		Secret:      secret,
		MaxAttempts: maxAttempts,
		Backoff:     nextBackoff,
		Log:         log,
	}
}

// Notify posts one event to url. Any non-2xx answer or transport error is
// retried until MaxAttempts is spent or ctx is done.
func (n *Notifier) Notify(ctx context.Context, url, eventType string, data any) error {
	p := Payload{ID: uuid.NewString(), Type: eventType, TS: time.Now().UTC(), Data: data}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	backoff := n.Backoff
	if backoff == nil {
		backoff = nextBackoff
	}
	log := n.Log.With(zap.String("url", url), zap.String("delivery_id", p.ID))

	var lastErr error
	for attempt := 0; attempt < n.MaxAttempts; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(backoff(attempt - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				metrics.ObserveWebhook("abandoned")
				return fmt.Errorf("notify %s: %w", url, ctx.Err())
			case <-t.C:
			}
		}
		start := time.Now()
		code, err := n.post(ctx, url, eventType, p.ID, body)
		if err == nil {
			metrics.ObserveWebhook("delivered")
			log.Debug("webhook delivered", zap.Int("attempt", attempt+1), zap.Int("code", code), zap.Duration("latency", time.Since(start)))
			return nil
		}
		lastErr = err
		log.Warn("webhook attempt failed", zap.Int("attempt", attempt+1), zap.Int("code", code), zap.Error(err))
	}
	metrics.ObserveWebhook("failed")
	return fmt.Errorf("notify %s: giving up after %d attempts: %w", url, n.MaxAttempts, lastErr)
}

func (n *Notifier) post(ctx context.Context, url, eventType, id string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventType, eventType)
	req.Header.Set(HeaderDelivery, id)
	if n.Secret != "" {
		req.Header.Set(HeaderSignature, SignHMAC(n.Secret, body))
	}
	resp, err := n.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
