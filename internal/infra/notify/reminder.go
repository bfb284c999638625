// Package notify delivers payment reminders to an external channel.
// Delivery is best-effort: the ledger records that a reminder round ran,
// the channel owns actual fan-out to residents.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/arvetta/condo-ledger-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("notify")

// WebhookSender posts reminders to a configured webhook URL, wrapped in a
// circuit breaker so a dead channel cannot stall billing operations.
type WebhookSender struct {
	httpClient *http.Client
	url        string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewWebhookSender creates a webhook-backed reminder sender.
func NewWebhookSender(httpClient *http.Client, url string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *WebhookSender {
	return &WebhookSender{
		httpClient: httpClient,
		url:        url,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

type reminderPayload struct {
	AccountID string `json:"account_id"`
	InvoiceID string `json:"invoice_id"`
	Message   string `json:"message"`
}

// SendReminder delivers one reminder through the webhook.
func (s *WebhookSender) SendReminder(ctx context.Context, accountID, invoiceID, message string) error {
	ctx, span := tracer.Start(ctx, "WebhookSender.SendReminder")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	_, err := s.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, s.cfg, func() error {
			body, err := json.Marshal(reminderPayload{
				AccountID: accountID,
				InvoiceID: invoiceID,
				Message:   message,
			})
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := s.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return fmt.Errorf("reminder webhook returned status %d", resp.StatusCode)
			}
			return nil
		})
		return nil, innerErr
	})
	if err != nil {
		s.logger.Warn("reminder delivery failed",
			zap.String("account_id", accountID),
			zap.String("invoice_id", invoiceID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// NopSender discards reminders. Used when no webhook is configured.
type NopSender struct{}

func (NopSender) SendReminder(ctx context.Context, accountID, invoiceID, message string) error {
	return nil
}
