// Package webhook notifies owner-registered endpoints about document events.
//
// Each delivery is a JSON POST signed with HMAC-SHA256 over the body (sent
// as X-Webhook-Signature) and is retried with increasing delays. Every
// attempt is recorded as a webhook delivery row.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// Delivery statuses.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// DefaultRetryDelays are the waits before each attempt.
var DefaultRetryDelays = []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}

// Store is the persistence the service needs. *database.DB implements it.
type Store interface {
	GetActiveWebhooksForEvent(ctx context.Context, ownerID, event string) ([]models.Webhook, error)
	CreateWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error
	UpdateWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error
}

// Service handles webhook notification delivery.
type Service struct {
	store       Store
	client      *http.Client
	logger      *zap.Logger
	retryDelays []time.Duration

	shutdownCh   chan struct{} // Signals pending deliveries to stop
	shutdownOnce sync.Once
	inflight     sync.WaitGroup
}

// New creates a new webhook service.
func New(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store: store,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:      logger,
		retryDelays: DefaultRetryDelays,
		shutdownCh:  make(chan struct{}),
	}
}

// SetRetryDelays overrides the delay schedule; its length is the attempt count.
func (s *Service) SetRetryDelays(delays []time.Duration) {
	s.retryDelays = delays
}

// Shutdown signals all pending webhook deliveries to stop.
// Call this during graceful server shutdown.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// Wait blocks until every delivery started so far has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// GenerateSecret creates a random HMAC secret for a webhook.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SignPayload creates an HMAC-SHA256 signature for a payload.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// NotifyEvent sends event to every active webhook of ownerID subscribed to
// it. Delivery happens asynchronously with retry logic.
func (s *Service) NotifyEvent(ctx context.Context, ownerID, event string, data interface{}) {
	webhooks, err := s.store.GetActiveWebhooksForEvent(ctx, ownerID, event)
	if err != nil {
		s.logger.Warn("failed to get webhooks for event", zap.String("event", event), zap.Error(err))
		return
	}
	if len(webhooks) == 0 {
		return
	}

	payloadJSON, err := json.Marshal(models.WebhookPayload{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to marshal webhook payload", zap.Error(err))
		return
	}

	for _, wh := range webhooks {
		s.inflight.Add(1)
		go func(wh models.Webhook) {
			defer s.inflight.Done()
			s.deliverWithRetry(wh, event, payloadJSON)
		}(wh)
	}
}

// deliverWithRetry attempts to deliver a webhook, waiting retryDelays[i]
// before attempt i. Delivery respects shutdown signals.
func (s *Service) deliverWithRetry(wh models.Webhook, event string, payloadJSON []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log := s.logger.With(zap.String("event", event), zap.String("webhook_id", wh.ID))

	delivery := &models.WebhookDelivery{
		WebhookID: wh.ID,
		Event:     event,
		Payload:   string(payloadJSON),
		Status:    StatusPending,
	}
	if err := s.store.CreateWebhookDelivery(ctx, delivery); err != nil {
		log.Warn("failed to create webhook delivery record", zap.Error(err))
		return
	}

	for attempt, delay := range s.retryDelays {
		if delay > 0 {
			select {
			case <-s.shutdownCh:
				s.finish(ctx, log, delivery, "shutdown during delivery")
				return
			case <-ctx.Done():
				s.finish(ctx, log, delivery, "delivery timeout")
				return
			case <-time.After(delay):
			}
		}

		delivery.Attempts = attempt + 1
		statusCode, err := s.deliver(ctx, wh, payloadJSON)
		delivery.ResponseCode = statusCode

		if err == nil && statusCode >= 200 && statusCode < 300 {
			delivered := time.Now().UTC()
			delivery.Status = StatusSuccess
			delivery.DeliveredAt = &delivered
			delivery.LastError = ""
			s.update(ctx, log, delivery)
			log.Info("webhook delivered", zap.Int("attempt", attempt+1))
			return
		}

		if err != nil {
			delivery.LastError = err.Error()
		} else {
			delivery.LastError = fmt.Sprintf("HTTP %d", statusCode)
		}
		s.update(ctx, log, delivery)
		log.Warn("webhook delivery attempt failed",
			zap.Int("attempt", attempt+1), zap.Int("max_attempts", len(s.retryDelays)),
			zap.String("error", delivery.LastError))
	}

	s.finish(ctx, log, delivery, delivery.LastError)
}

// finish marks the delivery permanently failed.
func (s *Service) finish(ctx context.Context, log *zap.Logger, d *models.WebhookDelivery, reason string) {
	d.Status = StatusFailed
	d.LastError = reason
	s.update(context.WithoutCancel(ctx), log, d)
	log.Warn("webhook delivery failed permanently", zap.String("error", reason))
}

func (s *Service) update(ctx context.Context, log *zap.Logger, d *models.WebhookDelivery) {
	if err := s.store.UpdateWebhookDelivery(ctx, d); err != nil {
		log.Warn("failed to update delivery record", zap.Error(err))
	}
}

// deliver sends a single webhook HTTP request with context support.
func (s *Service) deliver(ctx context.Context, wh models.Webhook, payloadJSON []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(payloadJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "DocVault-Webhook/1.0")
	if wh.Secret != "" {
		req.Header.Set("X-Webhook-Signature", SignPayload(payloadJSON, wh.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
