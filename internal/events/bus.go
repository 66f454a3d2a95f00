// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package events

import (
	"context"
	"fmt"

	"github.com/plantedfoods/discovery-engine/internal/config"
)

// Bus is the engine process's single entry point for emitting
// run-report events: it publishes every event to the bus, and for
// TopicSyncExecuted additionally fires the webhook notifier inline
// (rather than running a separate Watermill subscriber process, since
// this engine is a single long-lived binary per SPEC_FULL §5 and has
// no second process to subscribe from).
type Bus struct {
	publisher Publisher
	webhook   *WebhookNotifier
}

// NewBus wires a Publisher from cfg (NoopPublisher when cfg.Enabled is
// false) and an optional WebhookNotifier from webhookURL.
func NewBus(cfg config.EventsConfig, webhookURL string) (*Bus, error) {
	var pub Publisher = NoopPublisher{}
	if cfg.Enabled {
		natsPub, err := NewNATSPublisher(cfg)
		if err != nil {
			return nil, fmt.Errorf("events: new bus: %w", err)
		}
		pub = natsPub
	}
	return &Bus{publisher: pub, webhook: NewWebhookNotifier(webhookURL)}, nil
}

// Emit publishes payload under topic. Errors are returned so callers
// (the CLI's run commands) can decide whether a publish failure should
// affect the process exit code; SPEC_FULL treats the bus as additive,
// so callers should log and continue rather than fail the run.
func (b *Bus) Emit(ctx context.Context, topic string, payload interface{}) error {
	event, err := New(topic, payload)
	if err != nil {
		return err
	}
	if err := b.publisher.Publish(ctx, event); err != nil {
		return err
	}
	if topic == TopicSyncExecuted {
		b.webhook.Notify(ctx, event)
	}
	return nil
}

// Close shuts down the underlying publisher.
func (b *Bus) Close() error {
	return b.publisher.Close()
}
