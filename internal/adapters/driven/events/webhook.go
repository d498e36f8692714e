package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/core/ports/driven"
)

// Ensure WebhookSink implements the interface.
var _ driven.EventSink = (*WebhookSink)(nil)

// WebhookSink POSTs each event as JSON to a fixed URL. A token-bucket
// limiter caps the outbound rate so a burst of watcher activity cannot
// hammer the receiver.
type WebhookSink struct {
	url     string
	auth    string
	client  *http.Client
	limiter *rate.Limiter
}

// WebhookConfig configures a webhook sink.
type WebhookConfig struct {
	URL string

	// Auth, when set, is sent verbatim as the Authorization header.
	Auth string

	// Timeout bounds each delivery. Defaults to 5s.
	Timeout time.Duration

	// RatePerSecond caps deliveries. Defaults to 10 with a burst of 20.
	RatePerSecond float64
	Burst         int
}

// NewWebhookSink creates a webhook sink.
func NewWebhookSink(cfg WebhookConfig) (*WebhookSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: webhook url required", domain.ErrInvalidInput)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	return &WebhookSink{
		url:     cfg.URL,
		auth:    cfg.Auth,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
	}, nil
}

// Name returns the sink identifier.
func (s *WebhookSink) Name() string { return "webhook" }

// Emit POSTs the event, waiting for a rate token first.
func (s *WebhookSink) Emit(ctx context.Context, event domain.Event) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate token: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.auth != "" {
		req.Header.Set("Authorization", s.auth)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
