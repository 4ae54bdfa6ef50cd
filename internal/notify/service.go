// Package notify publishes committed ledger events to webhook subscribers.
//
// Deliveries are queued and sent by a single background worker so Execute
// never waits on a subscriber. Each request is a JSON POST with optional
// HMAC-SHA256 signing, retried with exponential backoff.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/agentoven/ledger/internal/ledger"
	"github.com/agentoven/agentoven/ledger/internal/metrics"
)

// DefaultQueueSize bounds the number of undelivered events held in memory.
const DefaultQueueSize = 1024

// Webhook is one subscriber.
type Webhook struct {
	URL    string
	Secret string
	// Methods limits delivery to these message methods. Empty or "*" means all.
	Methods []string
}

func (w Webhook) subscribes(method string) bool {
	if len(w.Methods) == 0 {
		return true
	}
	for _, m := range w.Methods {
		if m == method || m == "*" {
			return true
		}
	}
	return false
}

// Delivery is the webhook payload.
type Delivery struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Result    *ledger.Result `json:"result"`
}

// ── Service ──────────────────────────────────────────────────

// Service queues and delivers ledger events.
type Service struct {
	hooks      []Webhook
	client     *http.Client
	queue      chan Delivery
	maxRetries uint64
	interval   time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithClient overrides the HTTP client.
func WithClient(c *http.Client) Option { return func(s *Service) { s.client = c } }

// WithRetry sets the retry budget and the initial backoff interval.
func WithRetry(maxRetries uint64, initial time.Duration) Option {
	return func(s *Service) {
		s.maxRetries = maxRetries
		s.interval = initial
	}
}

// NewService starts a delivery worker for hooks. Call Close to drain it.
func NewService(hooks []Webhook, queueSize int, opts ...Option) *Service {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	s := &Service{
		hooks:      hooks,
		client:     &http.Client{Timeout: 15 * time.Second},
		queue:      make(chan Delivery, queueSize),
		maxRetries: 2,
		interval:   500 * time.Millisecond,
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	for _, h := range hooks {
		log.Info().Str("url", h.URL).Strs("methods", h.Methods).Msg("Registered event webhook")
	}
	go s.run()
	return s
}

// Publish enqueues res for delivery. It never blocks; when the queue is full
// the event is dropped and counted.
func (s *Service) Publish(res *ledger.Result) {
	if len(s.hooks) == 0 || res == nil {
		return
	}
	d := Delivery{ID: uuid.New().String(), Timestamp: time.Now().UTC(), Result: res}
	defer func() {
		// Publish after Close is a drop, not a panic.
		if recover() != nil {
			metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
		}
	}()
	select {
	case s.queue <- d:
	default:
		metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
		log.Warn().Str("method", res.Method).Msg("Event queue full, dropping webhook delivery")
	}
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to end.
func (s *Service) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.queue) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) run() {
	defer close(s.done)
	for d := range s.queue {
		for _, h := range s.hooks {
			if !h.subscribes(d.Result.Method) {
				continue
			}
			if err := s.send(context.Background(), h, d); err != nil {
				metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
				log.Warn().Err(err).Str("url", h.URL).Str("delivery", d.ID).Msg("Webhook delivery failed")
				continue
			}
			metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
			log.Debug().Str("url", h.URL).Str("delivery", d.ID).Str("method", d.Result.Method).Msg("Webhook delivered")
		}
	}
}

// send posts d to h, retrying transport errors and 5xx responses.
func (s *Service) send(ctx context.Context, h Webhook, d Delivery) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.interval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.maxRetries), ctx)

	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build webhook request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Ledger-Webhook/1.0")
		req.Header.Set("X-Ledger-Event", d.Result.Method)
		req.Header.Set("X-Ledger-Delivery", d.ID)
		if h.Secret != "" {
			req.Header.Set("X-Ledger-Signature", "sha256="+Sign(h.Secret, body))
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("webhook HTTP %d from %s", resp.StatusCode, h.URL)
		default:
			return backoff.Permanent(fmt.Errorf("webhook HTTP %d from %s", resp.StatusCode, h.URL))
		}
	}, policy)
}

// Sign returns the hex HMAC-SHA256 of body under secret, as sent in the
// X-Ledger-Signature header.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
