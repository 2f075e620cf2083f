package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/inventory"
	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/circuitbreaker"
	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/idempotency"
)

// ErrRejected marks a webhook answer that retrying will not change.
var ErrRejected = errors.New("supplier rejected alert")

// Alert is the body posted to a supplier webhook.
type Alert struct {
	EventID      string    `json:"event_id"`
	ItemID       string    `json:"item_id"`
	Name         string    `json:"name"`
	Category     string    `json:"category,omitempty"`
	Supplier     string    `json:"supplier"`
	Quantity     int       `json:"quantity"`
	ReorderLevel int       `json:"reorder_level"`
	Unit         string    `json:"unit,omitempty"`
	RaisedAt     time.Time `json:"raised_at"`
}

func newAlert(eventID string, d inventory.EventData, at time.Time) Alert {
	return Alert{
		EventID:      eventID,
		ItemID:       d.ItemID,
		Name:         d.Name,
		Category:     d.Category,
		Supplier:     d.Supplier,
		Quantity:     d.Quantity,
		ReorderLevel: d.ReorderLevel,
		Unit:         d.Unit,
		RaisedAt:     at.UTC(),
	}
}

// Alerter delivers low-stock alerts.
type Alerter interface {
	Notify(ctx context.Context, alert Alert) error
}

// BreakerConfig is the breaker template for supplier webhooks. Rejected
// alerts do not count against the supplier.
func BreakerConfig() circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig("supplier")
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrRejected)
	}
	return cfg
}

// Webhook posts alerts as JSON, one breaker per supplier so a single
// unreachable supplier does not hold up the others.
type Webhook struct {
	url      string
	client   *http.Client
	breakers *circuitbreaker.Manager
	logger   *zap.Logger
}

func NewWebhook(rawURL string, breakers *circuitbreaker.Manager, timeout time.Duration, logger *zap.Logger) (*Webhook, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("supplier webhook url: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{url: rawURL, client: &http.Client{Timeout: timeout}, breakers: breakers, logger: logger}, nil
}

func (w *Webhook) Notify(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	cb, err := w.breakers.Get(breakerName(alert.Supplier))
	if err != nil {
		return err
	}
	return cb.Run(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", alert.EventID)

		resp, err := w.client.Do(req)
		if err != nil {
			return fmt.Errorf("supplier webhook: %w", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("supplier webhook: status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return idempotency.Permanent(fmt.Errorf("status %d: %w", resp.StatusCode, ErrRejected))
		}
		return nil
	})
}

func breakerName(supplier string) string {
	supplier = strings.ToLower(strings.TrimSpace(supplier))
	if supplier == "" {
		supplier = "unknown"
	}
	return "supplier:" + supplier
}

// LogAlerter records alerts in the log when no webhook is configured.
type LogAlerter struct {
	Logger *zap.Logger
}

func (l LogAlerter) Notify(_ context.Context, alert Alert) error {
	l.Logger.Warn("low stock",
		zap.String("item_id", alert.ItemID),
		zap.String("name", alert.Name),
		zap.String("supplier", alert.Supplier),
		zap.Int("quantity", alert.Quantity),
		zap.Int("reorder_level", alert.ReorderLevel))
	return nil
}
