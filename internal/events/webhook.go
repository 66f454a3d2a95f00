// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package events

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/logging"
	"github.com/plantedfoods/discovery-engine/internal/metrics"
)

// WebhookNotifier POSTs sync.executed events to an operator-configured
// URL. It is a Consume-side counterpart to Publisher: the engine
// process both publishes to the bus and, if a webhook URL is
// configured, drains TopicSyncExecuted itself rather than requiring a
// separate subscriber process. Generalized from
// internal/sync/event_publisher.go's optional, nil-safe dispatch.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier returns nil if url is empty, so callers can wire
// it unconditionally: a nil *WebhookNotifier's Notify is a no-op.
func NewWebhookNotifier(url string) *WebhookNotifier {
	if url == "" {
		return nil
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify delivers event to the configured webhook URL. Delivery is
// best-effort: errors are logged and recorded in
// metrics.WebhookDeliveries but never propagated, since a notification
// failure must not roll back or retry a sync execution that already
// committed.
func (w *WebhookNotifier) Notify(ctx context.Context, event *Event) {
	if w == nil {
		return
	}
	metrics.RecordEventConsumed(event.Topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(event.Payload))
	if err != nil {
		logging.Warn().Err(err).Str("topic", event.Topic).Msg("events: build webhook request failed")
		metrics.RecordWebhookDelivery(event.Topic, false)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Id", event.ID)
	req.Header.Set("X-Event-Topic", event.Topic)

	resp, err := w.client.Do(req)
	if err != nil {
		logging.Warn().Err(err).Str("topic", event.Topic).Msg("events: webhook delivery failed")
		metrics.RecordWebhookDelivery(event.Topic, false)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logging.Warn().Int("status", resp.StatusCode).Str("topic", event.Topic).Msg("events: webhook rejected")
		metrics.RecordWebhookDelivery(event.Topic, false)
		return
	}
	metrics.RecordWebhookDelivery(event.Topic, true)
}
