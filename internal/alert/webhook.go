package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"controlling_tanks/internal/logger"
	"controlling_tanks/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

const (
	webhookRetries      = 4
	breakerFailures     = 3
	breakerOpenTimeout  = time.Minute
	breakerCountWindow  = 5 * time.Minute
	defaultWebhookLimit = 10 * time.Second
)

// Webhook posts alerts as JSON to an HTTP endpoint (chat bridge, pager...).
// Transient failures are retried with exponential backoff; repeated failures
// open a circuit breaker so a dead endpoint does not hold up every alert.
type Webhook struct {
	url        string
	client     *http.Client
	cb         *gobreaker.CircuitBreaker
	newBackOff func() backoff.BackOff
	log        *logger.Logger
}

type webhookPayload struct {
	Text  string             `json:"text"`
	Event models.SafetyEvent `json:"event"`
}

func NewWebhook(url string, timeout time.Duration, log *logger.Logger) *Webhook {
	if timeout <= 0 {
		timeout = defaultWebhookLimit
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "alert-webhook",
			Interval: breakerCountWindow,
			Timeout:  breakerOpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= breakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warnw("circuit_breaker_state", "name", name, "from", from.String(), "to", to.String())
			},
		}),
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 250 * time.Millisecond
			bo.MaxElapsedTime = 15 * time.Second
			return bo
		},
		log: log,
	}
}

// Alert delivers e. It returns gobreaker.ErrOpenState without trying while the breaker is open.
func (w *Webhook) Alert(ctx context.Context, e models.SafetyEvent) error {
	body, err := json.Marshal(webhookPayload{Text: fmt.Sprintf("[%s] %s", e.Type, e.Description), Event: e})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	_, err = w.cb.Execute(func() (any, error) {
		bo := backoff.WithContext(backoff.WithMaxRetries(w.newBackOff(), webhookRetries), ctx)
		return nil, backoff.Retry(func() error { return w.post(ctx, body) }, bo)
	})
	if err != nil {
		return fmt.Errorf("webhook alert %s: %w", e.EventID, err)
	}
	w.log.Infow("alert_sent", "channel", "webhook", "event_id", e.EventID)
	return nil
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook returned %s", resp.Status)
	default:
		// the endpoint rejected the request; retrying will not help
		return backoff.Permanent(fmt.Errorf("webhook returned %s", resp.Status))
	}
}
